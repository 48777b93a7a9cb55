package ledger_test

import (
	"testing"
	"time"

	"github.com/mizan-app/mizan/server/internal/zakat/ledger"
	"github.com/mizan-app/mizan/server/internal/zakat/types"
)

func entry(seq int64, event types.EventType, at time.Time) types.AuditTrailEntry {
	return types.AuditTrailEntry{
		RecordID:  "rec-1",
		Seq:       seq,
		Event:     event,
		ActorID:   "user-1",
		Timestamp: at,
	}
}

func TestBuildReport_CleanLedger(t *testing.T) {
	base := time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)
	entries := []types.AuditTrailEntry{
		entry(1, types.EventCreated, base),
		entry(2, types.EventEdited, base.Add(time.Hour)),
		entry(3, types.EventFinalized, base.Add(2*time.Hour)),
	}

	report := ledger.BuildReport(entries, types.StatusFinalized)
	if report.TotalEvents != 3 {
		t.Errorf("expected 3 events, got %d", report.TotalEvents)
	}
	if len(report.Anomalies) != 0 {
		t.Errorf("expected no anomalies, got %v", report.Anomalies)
	}
	if report.FirstEvent == nil || !report.FirstEvent.Equal(base) {
		t.Errorf("unexpected first event: %v", report.FirstEvent)
	}
	if report.LastEvent == nil || !report.LastEvent.Equal(base.Add(2*time.Hour)) {
		t.Errorf("unexpected last event: %v", report.LastEvent)
	}
}

func TestBuildReport_EmptyLedger(t *testing.T) {
	report := ledger.BuildReport(nil, types.StatusDraft)
	if report.TotalEvents != 0 {
		t.Errorf("expected 0 events, got %d", report.TotalEvents)
	}
	if report.FirstEvent != nil || report.LastEvent != nil {
		t.Error("expected nil date range for empty ledger")
	}
	if len(report.Anomalies) != 0 {
		t.Errorf("expected no anomalies, got %v", report.Anomalies)
	}
}

func TestBuildReport_TimestampRegression(t *testing.T) {
	base := time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)
	entries := []types.AuditTrailEntry{
		entry(1, types.EventCreated, base),
		entry(2, types.EventEdited, base.Add(-time.Minute)), // skewed clock
	}

	report := ledger.BuildReport(entries, types.StatusDraft)
	if len(report.Anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %v", report.Anomalies)
	}
	if report.Anomalies[0].Kind != ledger.AnomalyTimestampRegression {
		t.Errorf("expected timestamp regression, got %s", report.Anomalies[0].Kind)
	}
	if report.Anomalies[0].Seq != 2 {
		t.Errorf("anomaly should anchor to seq 2, got %d", report.Anomalies[0].Seq)
	}
}

func TestBuildReport_SequenceGap(t *testing.T) {
	base := time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)
	entries := []types.AuditTrailEntry{
		entry(1, types.EventCreated, base),
		entry(3, types.EventFinalized, base.Add(time.Hour)), // seq 2 missing
	}

	report := ledger.BuildReport(entries, types.StatusFinalized)
	if len(report.Anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %v", report.Anomalies)
	}
	if report.Anomalies[0].Kind != ledger.AnomalySequenceGap {
		t.Errorf("expected sequence gap, got %s", report.Anomalies[0].Kind)
	}
}

func TestBuildReport_UnlockWithoutRefinalize(t *testing.T) {
	base := time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)
	entries := []types.AuditTrailEntry{
		entry(1, types.EventCreated, base),
		entry(2, types.EventFinalized, base.Add(time.Hour)),
		entry(3, types.EventUnlocked, base.Add(2*time.Hour)),
	}

	// Record claims FINALIZED but the ledger never saw a re-finalize after
	// the unlock: contradiction.
	report := ledger.BuildReport(entries, types.StatusFinalized)
	if len(report.Anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %v", report.Anomalies)
	}
	if report.Anomalies[0].Kind != ledger.AnomalyUnlockUnresolved {
		t.Errorf("expected unlock anomaly, got %s", report.Anomalies[0].Kind)
	}

	// Same ledger is consistent while the record is actually UNLOCKED.
	report = ledger.BuildReport(entries, types.StatusUnlocked)
	if len(report.Anomalies) != 0 {
		t.Errorf("expected no anomalies for an open unlock, got %v", report.Anomalies)
	}
}

func TestBuildReport_UnlockResolvedByRefinalize(t *testing.T) {
	base := time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)
	entries := []types.AuditTrailEntry{
		entry(1, types.EventCreated, base),
		entry(2, types.EventFinalized, base.Add(time.Hour)),
		entry(3, types.EventUnlocked, base.Add(2*time.Hour)),
		entry(4, types.EventEdited, base.Add(3*time.Hour)),
		entry(5, types.EventRefinalized, base.Add(4*time.Hour)),
	}

	report := ledger.BuildReport(entries, types.StatusFinalized)
	if len(report.Anomalies) != 0 {
		t.Errorf("expected no anomalies, got %v", report.Anomalies)
	}
}
