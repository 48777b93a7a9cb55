// Package ledger analyses a record's audit trail for integrity anomalies.
// Detection is advisory: anomalies are surfaced to operators alongside
// otherwise-successful reads and never block anything.
package ledger

import (
	"fmt"
	"time"

	"github.com/mizan-app/mizan/server/internal/zakat/types"
)

// Anomaly kinds reported by BuildReport.
const (
	AnomalyTimestampRegression = "TIMESTAMP_REGRESSION"
	AnomalySequenceGap         = "SEQUENCE_GAP"
	AnomalyUnlockUnresolved    = "UNLOCK_WITHOUT_REFINALIZE"
)

// Anomaly is one advisory finding, anchored to the entry where it was seen.
type Anomaly struct {
	Seq    int64  `json:"seq"`
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// Report summarizes one record's ledger.
type Report struct {
	TotalEvents int        `json:"total_events"`
	FirstEvent  *time.Time `json:"first_event,omitempty"`
	LastEvent   *time.Time `json:"last_event,omitempty"`
	Anomalies   []Anomaly  `json:"anomalies"`
}

// BuildReport scans entries (which must already be in sequence order, as
// ListForRecord returns them) against the record's current status.
func BuildReport(entries []types.AuditTrailEntry, currentStatus types.Status) Report {
	report := Report{
		TotalEvents: len(entries),
		Anomalies:   []Anomaly{},
	}
	if len(entries) == 0 {
		return report
	}

	first := entries[0].Timestamp
	last := entries[len(entries)-1].Timestamp
	report.FirstEvent = &first
	report.LastEvent = &last

	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]

		// Append order is causal order; a timestamp strictly earlier than
		// its predecessor means a skewed or tampered clock somewhere.
		if cur.Timestamp.Before(prev.Timestamp) {
			report.Anomalies = append(report.Anomalies, Anomaly{
				Seq:  cur.Seq,
				Kind: AnomalyTimestampRegression,
				Detail: fmt.Sprintf("entry %d timestamp %s precedes entry %d timestamp %s",
					cur.Seq, cur.Timestamp.Format(time.RFC3339),
					prev.Seq, prev.Timestamp.Format(time.RFC3339)),
			})
		}

		if cur.Seq != prev.Seq+1 {
			report.Anomalies = append(report.Anomalies, Anomaly{
				Seq:    cur.Seq,
				Kind:   AnomalySequenceGap,
				Detail: fmt.Sprintf("sequence jumps from %d to %d", prev.Seq, cur.Seq),
			})
		}
	}

	// An UNLOCKED entry with no later FINALIZED/REFINALIZED while the
	// record itself claims not to be UNLOCKED is a data-consistency
	// contradiction: the ledger and the record disagree about how the
	// unlock ended.
	if currentStatus != types.StatusUnlocked {
		lastUnlock := -1
		for i, e := range entries {
			if e.Event == types.EventUnlocked {
				lastUnlock = i
			}
		}
		if lastUnlock >= 0 {
			resolved := false
			for _, e := range entries[lastUnlock+1:] {
				if e.Event == types.EventFinalized || e.Event == types.EventRefinalized {
					resolved = true
					break
				}
			}
			if !resolved {
				report.Anomalies = append(report.Anomalies, Anomaly{
					Seq:  entries[lastUnlock].Seq,
					Kind: AnomalyUnlockUnresolved,
					Detail: fmt.Sprintf(
						"UNLOCKED entry %d has no subsequent finalize but record status is %s",
						entries[lastUnlock].Seq, currentStatus),
				})
			}
		}
	}

	return report
}
