package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a NisabYearRecord.  The set is closed:
// every switch over Status must carry a default branch that rejects the
// value, never fall through.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusFinalized Status = "FINALIZED"
	StatusUnlocked  Status = "UNLOCKED"
)

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusFinalized, StatusUnlocked:
		return true
	default:
		return false
	}
}

// NisabBasis selects which metal reference the Nisab threshold is derived
// from.  The gram weights are fixed by the fiqh rules; the per-gram price
// comes from the external price source.
type NisabBasis string

const (
	BasisGold   NisabBasis = "GOLD"
	BasisSilver NisabBasis = "SILVER"
)

func (b NisabBasis) Valid() bool {
	return b == BasisGold || b == BasisSilver
}

// ZakatRate is the fixed 2.5% levy applied to zakatable wealth once the
// Hawl completes.
var ZakatRate = decimal.RequireFromString("0.025")

// NisabYearRecord is one Hawl cycle for one user.
//
// Version is an optimistic-concurrency counter: every successful lifecycle
// transition increments it by exactly 1, and stores reject writes whose
// expected version does not match the stored one.
type NisabYearRecord struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`

	Status     Status     `json:"status"`
	NisabBasis NisabBasis `json:"nisab_basis"`
	Currency   string     `json:"currency"`

	// HawlStartDate is nil until the wealth first reaches the threshold
	// ("pending" Hawl).  HawlCompletionDate is always start + 354 days,
	// recomputed only when the Hawl restarts after an interruption, or
	// frozen to the finalize time on an early-override finalize.
	HawlStartDate           *time.Time `json:"hawl_start_date,omitempty"`
	HawlCompletionDate      *time.Time `json:"hawl_completion_date,omitempty"`
	HawlStartDateHijri      string     `json:"hawl_start_date_hijri,omitempty"`
	HawlCompletionDateHijri string     `json:"hawl_completion_date_hijri,omitempty"`

	// NisabThresholdAtStart is frozen when the Hawl starts and never moves
	// afterwards, so re-pricing during the year cannot move the goalposts.
	NisabThresholdAtStart decimal.Decimal `json:"nisab_threshold_at_start"`

	TotalWealth     decimal.Decimal `json:"total_wealth"`
	ZakatableWealth decimal.Decimal `json:"zakatable_wealth"`

	// ZakatAmount tracks the live 2.5% figure; FinalZakatAmount is the copy
	// frozen by finalize (and recomputed by a re-finalize).
	ZakatAmount      decimal.Decimal `json:"zakat_amount"`
	FinalZakatAmount decimal.Decimal `json:"final_zakat_amount"`

	// WealthAtStart and MinimumWealthDuringPeriod feed the live tracking
	// view.  The minimum resets when an interruption restarts the Hawl.
	WealthAtStart             decimal.Decimal `json:"wealth_at_start"`
	MinimumWealthDuringPeriod decimal.Decimal `json:"minimum_wealth_during_period"`

	SelectedAssetIDs   []string `json:"selected_asset_ids"`
	PriorInterruptions int      `json:"prior_interruptions"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HawlStarted reports whether the Hawl clock is running.
func (r *NisabYearRecord) HawlStarted() bool {
	return r.HawlStartDate != nil
}

// TrackingStatus classifies the live view of a record's Hawl.
type TrackingStatus string

const (
	// TrackingActive: clock running, wealth at or above threshold.
	TrackingActive TrackingStatus = "ACTIVE"
	// TrackingComplete: the 354 days have elapsed without interruption.
	TrackingComplete TrackingStatus = "COMPLETE"
	// TrackingInterrupted: current wealth sits below the frozen threshold;
	// the clock is about to reset (or has not started).
	TrackingInterrupted TrackingStatus = "INTERRUPTED"
	// TrackingTerminated: the record left DRAFT; figures are frozen.
	TrackingTerminated TrackingStatus = "TERMINATED"
)

// HawlTrackingState is the derived, non-authoritative live view of one
// record.  It is recomputed on every poll or edit while the record is DRAFT
// and frozen once the record leaves DRAFT.
type HawlTrackingState struct {
	RecordID string         `json:"record_id"`
	Status   TrackingStatus `json:"status"`

	WealthAtStart             decimal.Decimal `json:"wealth_at_start"`
	CurrentWealth             decimal.Decimal `json:"current_wealth"`
	MinimumWealthDuringPeriod decimal.Decimal `json:"minimum_wealth_during_period"`

	NisabThreshold decimal.Decimal `json:"nisab_threshold"`

	DaysElapsed   int     `json:"days_elapsed"`
	DaysRemaining int     `json:"days_remaining"`
	HawlProgress  float64 `json:"hawl_progress"` // 0-100, clamped for display

	PriorInterruptions int       `json:"prior_interruptions"`
	LastUpdated        time.Time `json:"last_updated"`
}
