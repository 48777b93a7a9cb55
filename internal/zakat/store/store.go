package store

import (
	"context"
	"errors"

	"github.com/mizan-app/mizan/server/internal/zakat/types"
)

var (
	// ErrNotFound: no record with the given id.
	ErrNotFound = errors.New("record not found")

	// ErrStaleVersion: the caller's expected version no longer matches the
	// stored record.  The caller must re-read and retry; the write is never
	// merged silently.
	ErrStaleVersion = errors.New("stale record version")
)

// RecordStore persists NisabYearRecords together with their audit trail.
//
// CreateRecord and ApplyTransition are the only write paths and both are
// all-or-nothing: the record mutation and the audit append land together or
// not at all.  An un-audited mutation must never become observable.
type RecordStore interface {
	// CreateRecord inserts a new record and its CREATED entry.  The entry's
	// sequence number is assigned by the store.
	CreateRecord(ctx context.Context, rec types.NisabYearRecord, entry types.AuditTrailEntry) (types.NisabYearRecord, error)

	GetRecord(ctx context.Context, id string) (types.NisabYearRecord, error)

	ListRecordsByStatus(ctx context.Context, status types.Status) ([]types.NisabYearRecord, error)

	// ApplyTransition writes rec (whose Version must already be
	// expectedVersion+1) and appends entry in one atomic step, guarded by
	// compare-and-swap on expectedVersion.  Returns ErrStaleVersion when
	// the stored version differs and ErrNotFound when the record is gone.
	ApplyTransition(ctx context.Context, rec types.NisabYearRecord, expectedVersion int64, entry types.AuditTrailEntry) (types.NisabYearRecord, types.AuditTrailEntry, error)
}

// LedgerStore reads the append-only audit trail.  Entries come back ordered
// by sequence number — append order, never wall-clock order, so clock skew
// cannot reorder the ledger.
type LedgerStore interface {
	ListForRecord(ctx context.Context, recordID string) ([]types.AuditTrailEntry, error)
}
