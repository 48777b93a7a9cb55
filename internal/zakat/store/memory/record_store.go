package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mizan-app/mizan/server/internal/zakat/store"
	"github.com/mizan-app/mizan/server/internal/zakat/types"
)

// RecordStore is an in-memory store.RecordStore + store.LedgerStore for
// tests and dev environments.  One mutex covers records and entries so a
// transition's record write and audit append are atomic, matching the
// transactional guarantee of the sqlite store.
type RecordStore struct {
	mu      sync.Mutex
	records map[string]types.NisabYearRecord
	entries map[string][]types.AuditTrailEntry
}

func NewRecordStore() *RecordStore {
	return &RecordStore{
		records: make(map[string]types.NisabYearRecord),
		entries: make(map[string][]types.AuditTrailEntry),
	}
}

func (s *RecordStore) CreateRecord(_ context.Context, rec types.NisabYearRecord, entry types.AuditTrailEntry) (types.NisabYearRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.RecordID = rec.ID
	entry.Seq = int64(len(s.entries[rec.ID])) + 1

	s.records[rec.ID] = cloneRecord(rec)
	s.entries[rec.ID] = append(s.entries[rec.ID], entry)
	return rec, nil
}

func (s *RecordStore) GetRecord(_ context.Context, id string) (types.NisabYearRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return types.NisabYearRecord{}, store.ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (s *RecordStore) ListRecordsByStatus(_ context.Context, status types.Status) ([]types.NisabYearRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []types.NisabYearRecord
	for _, rec := range s.records {
		if rec.Status == status {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *RecordStore) ApplyTransition(_ context.Context, rec types.NisabYearRecord, expectedVersion int64, entry types.AuditTrailEntry) (types.NisabYearRecord, types.AuditTrailEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[rec.ID]
	if !ok {
		return types.NisabYearRecord{}, types.AuditTrailEntry{}, store.ErrNotFound
	}
	if current.Version != expectedVersion {
		return types.NisabYearRecord{}, types.AuditTrailEntry{}, store.ErrStaleVersion
	}

	entry.RecordID = rec.ID
	entry.Seq = int64(len(s.entries[rec.ID])) + 1

	s.records[rec.ID] = cloneRecord(rec)
	s.entries[rec.ID] = append(s.entries[rec.ID], entry)
	return rec, entry, nil
}

func (s *RecordStore) ListForRecord(_ context.Context, recordID string) ([]types.AuditTrailEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src := s.entries[recordID]
	out := make([]types.AuditTrailEntry, len(src))
	copy(out, src)
	return out, nil
}

// Entries returns every audit entry for a record.  Test-only helper, same
// ordering as ListForRecord.
func (s *RecordStore) Entries(recordID string) []types.AuditTrailEntry {
	out, _ := s.ListForRecord(context.Background(), recordID)
	return out
}

func cloneRecord(rec types.NisabYearRecord) types.NisabYearRecord {
	out := rec
	if rec.HawlStartDate != nil {
		t := *rec.HawlStartDate
		out.HawlStartDate = &t
	}
	if rec.HawlCompletionDate != nil {
		t := *rec.HawlCompletionDate
		out.HawlCompletionDate = &t
	}
	out.SelectedAssetIDs = append([]string(nil), rec.SelectedAssetIDs...)
	return out
}
