package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	dbpkg "github.com/mizan-app/mizan/server/internal/db"
	"github.com/mizan-app/mizan/server/internal/zakat/store"
	"github.com/mizan-app/mizan/server/internal/zakat/types"
)

// RecordStore persists NisabYearRecords and their audit trail in SQLite.
// All writes go through the single-writer Worker so a transition's record
// update and audit append commit in one transaction.
type RecordStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewRecordStore(db *sql.DB, writer *dbpkg.Worker) *RecordStore {
	return &RecordStore{db: db, writer: writer}
}

const recordColumns = `
id, owner_id, status, nisab_basis, currency,
hawl_start_at_ms, hawl_completion_at_ms, hawl_start_hijri, hawl_completion_hijri,
nisab_threshold_at_start, total_wealth, zakatable_wealth,
zakat_amount, final_zakat_amount, wealth_at_start, minimum_wealth,
selected_asset_ids, prior_interruptions, version, created_at_ms, updated_at_ms`

func (s *RecordStore) CreateRecord(ctx context.Context, rec types.NisabYearRecord, entry types.AuditTrailEntry) (types.NisabYearRecord, error) {
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := insertRecord(ctx, tx, rec); err != nil {
			return err
		}
		assigned, err := appendEntry(ctx, tx, rec.ID, entry)
		if err != nil {
			return err
		}
		entry = assigned
		return nil
	})
	if err != nil {
		return types.NisabYearRecord{}, err
	}
	return rec, nil
}

func (s *RecordStore) GetRecord(ctx context.Context, id string) (types.NisabYearRecord, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+recordColumns+`
FROM nisab_year_records
WHERE id = ?;`, id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return types.NisabYearRecord{}, store.ErrNotFound
	}
	if err != nil {
		return types.NisabYearRecord{}, fmt.Errorf("GetRecord %s: %w", id, err)
	}
	return rec, nil
}

func (s *RecordStore) ListRecordsByStatus(ctx context.Context, status types.Status) ([]types.NisabYearRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+recordColumns+`
FROM nisab_year_records
WHERE status = ?
ORDER BY id;`, string(status))
	if err != nil {
		return nil, fmt.Errorf("ListRecordsByStatus query: %w", err)
	}
	defer rows.Close()

	var out []types.NisabYearRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("ListRecordsByStatus scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *RecordStore) ApplyTransition(ctx context.Context, rec types.NisabYearRecord, expectedVersion int64, entry types.AuditTrailEntry) (types.NisabYearRecord, types.AuditTrailEntry, error) {
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		assetIDs, err := json.Marshal(rec.SelectedAssetIDs)
		if err != nil {
			return fmt.Errorf("ApplyTransition marshal asset ids: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
UPDATE nisab_year_records SET
  status = ?,
  hawl_start_at_ms = ?,
  hawl_completion_at_ms = ?,
  hawl_start_hijri = ?,
  hawl_completion_hijri = ?,
  nisab_threshold_at_start = ?,
  total_wealth = ?,
  zakatable_wealth = ?,
  zakat_amount = ?,
  final_zakat_amount = ?,
  wealth_at_start = ?,
  minimum_wealth = ?,
  selected_asset_ids = ?,
  prior_interruptions = ?,
  version = ?,
  updated_at_ms = ?
WHERE id = ? AND version = ?;`,
			string(rec.Status),
			optionalMs(rec.HawlStartDate),
			optionalMs(rec.HawlCompletionDate),
			rec.HawlStartDateHijri,
			rec.HawlCompletionDateHijri,
			rec.NisabThresholdAtStart.String(),
			rec.TotalWealth.String(),
			rec.ZakatableWealth.String(),
			rec.ZakatAmount.String(),
			rec.FinalZakatAmount.String(),
			rec.WealthAtStart.String(),
			rec.MinimumWealthDuringPeriod.String(),
			string(assetIDs),
			rec.PriorInterruptions,
			rec.Version,
			rec.UpdatedAt.UTC().UnixMilli(),
			rec.ID, expectedVersion,
		)
		if err != nil {
			return fmt.Errorf("ApplyTransition update: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("ApplyTransition rows affected: %w", err)
		}
		if affected == 0 {
			// Distinguish a missing record from a version conflict.
			var one int
			err := tx.QueryRowContext(ctx,
				`SELECT 1 FROM nisab_year_records WHERE id = ?;`, rec.ID).Scan(&one)
			if err == sql.ErrNoRows {
				return store.ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("ApplyTransition existence check: %w", err)
			}
			return store.ErrStaleVersion
		}

		assigned, err := appendEntry(ctx, tx, rec.ID, entry)
		if err != nil {
			return err
		}
		entry = assigned
		return nil
	})
	if err != nil {
		return types.NisabYearRecord{}, types.AuditTrailEntry{}, err
	}
	return rec, entry, nil
}

func insertRecord(ctx context.Context, tx *sql.Tx, rec types.NisabYearRecord) error {
	assetIDs, err := json.Marshal(rec.SelectedAssetIDs)
	if err != nil {
		return fmt.Errorf("insertRecord marshal asset ids: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO nisab_year_records(`+recordColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		rec.ID, rec.OwnerID, string(rec.Status), string(rec.NisabBasis), rec.Currency,
		optionalMs(rec.HawlStartDate), optionalMs(rec.HawlCompletionDate),
		rec.HawlStartDateHijri, rec.HawlCompletionDateHijri,
		rec.NisabThresholdAtStart.String(),
		rec.TotalWealth.String(), rec.ZakatableWealth.String(),
		rec.ZakatAmount.String(), rec.FinalZakatAmount.String(),
		rec.WealthAtStart.String(), rec.MinimumWealthDuringPeriod.String(),
		string(assetIDs), rec.PriorInterruptions,
		rec.Version, rec.CreatedAt.UTC().UnixMilli(), rec.UpdatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insertRecord: %w", err)
	}
	return nil
}

// appendEntry assigns the next per-record sequence number and inserts the
// entry.  Runs inside the same transaction as the record write, so the
// gap-free sequence invariant holds even under concurrent transitions.
func appendEntry(ctx context.Context, tx *sql.Tx, recordID string, entry types.AuditTrailEntry) (types.AuditTrailEntry, error) {
	entry.RecordID = recordID

	err := tx.QueryRowContext(ctx, `
SELECT COALESCE(MAX(seq), 0) + 1 FROM audit_trail WHERE record_id = ?;`,
		recordID).Scan(&entry.Seq)
	if err != nil {
		return entry, fmt.Errorf("appendEntry next seq: %w", err)
	}

	before, err := marshalOptional(entry.BeforeState)
	if err != nil {
		return entry, fmt.Errorf("appendEntry before state: %w", err)
	}
	after, err := marshalOptional(entry.AfterState)
	if err != nil {
		return entry, fmt.Errorf("appendEntry after state: %w", err)
	}

	var interruption any
	if entry.Interruption != nil {
		b, err := json.Marshal(entry.Interruption)
		if err != nil {
			return entry, fmt.Errorf("appendEntry interruption: %w", err)
		}
		interruption = string(b)
	}

	var reason any
	if len(entry.EncryptedReason) > 0 {
		reason = entry.EncryptedReason
	}

	var override int
	if entry.EarlyOverride {
		override = 1
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO audit_trail(
  record_id, seq, entry_id, event_type, actor_id, occurred_at_ms,
  before_state, after_state, encrypted_reason, interruption, early_override
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		entry.RecordID, entry.Seq, entry.ID, string(entry.Event), entry.ActorID,
		entry.Timestamp.UTC().UnixMilli(),
		before, after, reason, interruption, override,
	); err != nil {
		return entry, fmt.Errorf("appendEntry insert: %w", err)
	}

	return entry, nil
}

func optionalMs(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().UnixMilli()
}

func marshalOptional(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (types.NisabYearRecord, error) {
	var (
		rec                   types.NisabYearRecord
		status, basis         string
		startMs, completionMs sql.NullInt64
		threshold, total, zak string
		amount, finalAmount   string
		atStart, minimum      string
		assetIDs              string
		createdMs, updatedMs  int64
	)

	err := row.Scan(
		&rec.ID, &rec.OwnerID, &status, &basis, &rec.Currency,
		&startMs, &completionMs, &rec.HawlStartDateHijri, &rec.HawlCompletionDateHijri,
		&threshold, &total, &zak,
		&amount, &finalAmount, &atStart, &minimum,
		&assetIDs, &rec.PriorInterruptions, &rec.Version, &createdMs, &updatedMs,
	)
	if err != nil {
		return rec, err
	}

	rec.Status = types.Status(status)
	rec.NisabBasis = types.NisabBasis(basis)

	if startMs.Valid {
		t := time.UnixMilli(startMs.Int64).UTC()
		rec.HawlStartDate = &t
	}
	if completionMs.Valid {
		t := time.UnixMilli(completionMs.Int64).UTC()
		rec.HawlCompletionDate = &t
	}

	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&rec.NisabThresholdAtStart, threshold},
		{&rec.TotalWealth, total},
		{&rec.ZakatableWealth, zak},
		{&rec.ZakatAmount, amount},
		{&rec.FinalZakatAmount, finalAmount},
		{&rec.WealthAtStart, atStart},
		{&rec.MinimumWealthDuringPeriod, minimum},
	} {
		d, err := decimal.NewFromString(f.src)
		if err != nil {
			return rec, fmt.Errorf("parse decimal %q: %w", f.src, err)
		}
		*f.dst = d
	}

	if err := json.Unmarshal([]byte(assetIDs), &rec.SelectedAssetIDs); err != nil {
		return rec, fmt.Errorf("parse asset ids: %w", err)
	}

	rec.CreatedAt = time.UnixMilli(createdMs).UTC()
	rec.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	return rec, nil
}
