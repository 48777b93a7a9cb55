package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType names a lifecycle transition in the audit trail.
type EventType string

const (
	EventCreated         EventType = "CREATED"
	EventNisabAchieved   EventType = "NISAB_ACHIEVED"
	EventHawlInterrupted EventType = "HAWL_INTERRUPTED"
	EventEdited          EventType = "EDITED"
	EventFinalized       EventType = "FINALIZED"
	EventUnlocked        EventType = "UNLOCKED"
	EventRefinalized     EventType = "REFINALIZED"
)

func (e EventType) Valid() bool {
	switch e {
	case EventCreated, EventNisabAchieved, EventHawlInterrupted,
		EventEdited, EventFinalized, EventUnlocked, EventRefinalized:
		return true
	default:
		return false
	}
}

// InterruptionDetails is attached to HAWL_INTERRUPTED entries so the ledger
// explains the reset without needing the record's history.
type InterruptionDetails struct {
	WealthAtInterruption    decimal.Decimal `json:"wealth_at_interruption"`
	ThresholdAtInterruption decimal.Decimal `json:"threshold_at_interruption"`
	DaysCompleted           int             `json:"days_completed"`
}

// AuditTrailEntry is one append-only ledger row.  Entries are created only
// as the side effect of a successful lifecycle transition and are never
// updated or deleted.  Seq is assigned by the store: strictly increasing
// and gap-free per record, and it — not Timestamp — is the ledger's order.
type AuditTrailEntry struct {
	ID       string    `json:"id"`
	RecordID string    `json:"record_id"`
	Seq      int64     `json:"seq"`
	Event    EventType `json:"event"`

	ActorID   string    `json:"actor_id"`
	Timestamp time.Time `json:"timestamp"`

	// BeforeState/AfterState hold structural snapshots of the mutated
	// fields for EDITED entries, not full records.
	BeforeState map[string]any `json:"before_state,omitempty"`
	AfterState  map[string]any `json:"after_state,omitempty"`

	// EncryptedReason is set only on UNLOCKED entries.  The plaintext is
	// length-validated before encryption and never stored.
	EncryptedReason []byte `json:"encrypted_reason,omitempty"`

	// Interruption is set only on HAWL_INTERRUPTED entries.
	Interruption *InterruptionDetails `json:"interruption,omitempty"`

	// EarlyOverride marks FINALIZED/REFINALIZED entries where the caller
	// explicitly acknowledged an incomplete Hawl.
	EarlyOverride bool `json:"early_override,omitempty"`
}
