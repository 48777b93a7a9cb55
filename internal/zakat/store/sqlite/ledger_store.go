package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mizan-app/mizan/server/internal/zakat/types"
)

// LedgerStore reads the append-only audit trail.  Appends happen only
// through RecordStore transitions; this type never writes.
type LedgerStore struct {
	db *sql.DB
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// ListForRecord returns the record's entries ordered by sequence number.
// Ordering by seq, not occurred_at_ms: clock skew between appenders must
// not reorder the ledger.
func (s *LedgerStore) ListForRecord(ctx context.Context, recordID string) ([]types.AuditTrailEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT record_id, seq, entry_id, event_type, actor_id, occurred_at_ms,
       before_state, after_state, encrypted_reason, interruption, early_override
FROM audit_trail
WHERE record_id = ?
ORDER BY seq;`, recordID)
	if err != nil {
		return nil, fmt.Errorf("ListForRecord query: %w", err)
	}
	defer rows.Close()

	var out []types.AuditTrailEntry
	for rows.Next() {
		var (
			entry         types.AuditTrailEntry
			eventType     string
			occurredMs    int64
			before, after sql.NullString
			interruption  sql.NullString
			reason        []byte
			override      int
		)

		if err := rows.Scan(
			&entry.RecordID, &entry.Seq, &entry.ID, &eventType, &entry.ActorID,
			&occurredMs, &before, &after, &reason, &interruption, &override,
		); err != nil {
			return nil, fmt.Errorf("ListForRecord scan: %w", err)
		}

		entry.Event = types.EventType(eventType)
		entry.Timestamp = time.UnixMilli(occurredMs).UTC()
		entry.EncryptedReason = reason
		entry.EarlyOverride = override == 1

		if before.Valid {
			if err := json.Unmarshal([]byte(before.String), &entry.BeforeState); err != nil {
				return nil, fmt.Errorf("ListForRecord before state: %w", err)
			}
		}
		if after.Valid {
			if err := json.Unmarshal([]byte(after.String), &entry.AfterState); err != nil {
				return nil, fmt.Errorf("ListForRecord after state: %w", err)
			}
		}
		if interruption.Valid {
			var d types.InterruptionDetails
			if err := json.Unmarshal([]byte(interruption.String), &d); err != nil {
				return nil, fmt.Errorf("ListForRecord interruption: %w", err)
			}
			entry.Interruption = &d
		}

		out = append(out, entry)
	}
	return out, rows.Err()
}
