package service

import (
	"context"
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mizan-app/mizan/server/internal/zakat/crypto"
	"github.com/mizan-app/mizan/server/internal/zakat/hawl"
	"github.com/mizan-app/mizan/server/internal/zakat/hijri"
	"github.com/mizan-app/mizan/server/internal/zakat/ledger"
	"github.com/mizan-app/mizan/server/internal/zakat/store"
	"github.com/mizan-app/mizan/server/internal/zakat/types"
)

// minReasonChars is the minimum plaintext length for an unlock reason,
// checked before encryption.  The ciphertext is what gets stored.
const minReasonChars = 10

// SystemActor is recorded on transitions triggered by the live tracker
// rather than a user.
const SystemActor = "system"

// LifecycleService is the record state machine.  Every mutation validates
// the transition against the current status, bumps the optimistic version
// by exactly one, and lands together with its audit entry or not at all.
type LifecycleService struct {
	records store.RecordStore
	trail   store.LedgerStore
	wealth  WealthAggregator
	prices  PriceSource
	cipher  crypto.ReasonCipher
	logger  *log.Logger
	now     func() time.Time
}

// Deps holds the collaborators for NewLifecycleService.  Now is optional
// and defaults to the UTC wall clock; tests pin it.
type Deps struct {
	Records store.RecordStore
	Trail   store.LedgerStore
	Wealth  WealthAggregator
	Prices  PriceSource
	Cipher  crypto.ReasonCipher
	Logger  *log.Logger
	Now     func() time.Time
}

func NewLifecycleService(d Deps) *LifecycleService {
	now := d.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &LifecycleService{
		records: d.Records,
		trail:   d.Trail,
		wealth:  d.Wealth,
		prices:  d.Prices,
		cipher:  d.Cipher,
		logger:  d.Logger,
		now:     now,
	}
}

// CreateParams are the inputs for Create.
type CreateParams struct {
	OwnerID          string
	SelectedAssetIDs []string
	NisabBasis       types.NisabBasis
	Currency         string
}

// Create opens a new DRAFT record.  If the computed wealth already meets
// the Nisab threshold the Hawl starts immediately and the threshold is
// frozen; otherwise the record sits in the legal "pending" state until an
// edit or poll sees the wealth cross the line.
func (s *LifecycleService) Create(ctx context.Context, p CreateParams) (types.NisabYearRecord, error) {
	if p.OwnerID == "" {
		return types.NisabYearRecord{}, fmt.Errorf("%w: owner id is required", ErrValidation)
	}
	if len(p.SelectedAssetIDs) == 0 {
		return types.NisabYearRecord{}, ErrEmptyAssetSelection
	}
	if !p.NisabBasis.Valid() {
		return types.NisabYearRecord{}, fmt.Errorf("%w: nisab basis must be GOLD or SILVER", ErrValidation)
	}
	if p.Currency == "" {
		return types.NisabYearRecord{}, fmt.Errorf("%w: currency is required", ErrValidation)
	}

	total, zakatable, err := s.wealth.Snapshot(ctx, p.SelectedAssetIDs)
	if err != nil {
		return types.NisabYearRecord{}, fmt.Errorf("wealth snapshot: %w", err)
	}
	if err := checkWealthFigures(total, zakatable); err != nil {
		return types.NisabYearRecord{}, err
	}

	threshold, err := s.prices.NisabThreshold(ctx, p.NisabBasis, p.Currency)
	if err != nil {
		return types.NisabYearRecord{}, fmt.Errorf("nisab threshold: %w", err)
	}

	now := s.now()
	rec := types.NisabYearRecord{
		ID:               uuid.NewString(),
		OwnerID:          p.OwnerID,
		Status:           types.StatusDraft,
		NisabBasis:       p.NisabBasis,
		Currency:         p.Currency,
		TotalWealth:      total,
		ZakatableWealth:  zakatable,
		ZakatAmount:      zakatable.Mul(types.ZakatRate),
		SelectedAssetIDs: append([]string(nil), p.SelectedAssetIDs...),
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if zakatable.GreaterThanOrEqual(threshold) {
		startHawl(&rec, now, threshold, zakatable)
	}

	entry := s.newEntry(rec.ID, types.EventCreated, p.OwnerID, now)
	created, err := s.records.CreateRecord(ctx, rec, entry)
	if err != nil {
		return types.NisabYearRecord{}, fmt.Errorf("create record: %w", err)
	}
	return created, nil
}

// Record returns the current stored state of a record.
func (s *LifecycleService) Record(ctx context.Context, recordID string) (types.NisabYearRecord, error) {
	return s.records.GetRecord(ctx, recordID)
}

// EditParams are the caller-mutable fields.  A nil SelectedAssetIDs leaves
// the selection unchanged; wealth figures are always recomputed.
type EditParams struct {
	SelectedAssetIDs []string
}

// Edit mutates a DRAFT or UNLOCKED record's asset selection and refreshes
// its wealth figures.  For DRAFT records it then re-evaluates the Hawl:
// crossing the threshold starts it (NISAB_ACHIEVED), dropping below the
// frozen threshold interrupts it (HAWL_INTERRUPTED) as a follow-up entry.
func (s *LifecycleService) Edit(ctx context.Context, recordID string, expectedVersion int64, actorID string, p EditParams) (types.NisabYearRecord, error) {
	rec, err := s.records.GetRecord(ctx, recordID)
	if err != nil {
		return types.NisabYearRecord{}, err
	}

	switch rec.Status {
	case types.StatusDraft, types.StatusUnlocked:
	case types.StatusFinalized:
		return types.NisabYearRecord{}, fmt.Errorf("%w: finalized records must be unlocked before editing", ErrIllegalTransition)
	default:
		return types.NisabYearRecord{}, fmt.Errorf("%w: unknown status %q", ErrIllegalTransition, rec.Status)
	}

	if p.SelectedAssetIDs != nil && len(p.SelectedAssetIDs) == 0 {
		return types.NisabYearRecord{}, ErrEmptyAssetSelection
	}

	assetIDs := rec.SelectedAssetIDs
	if p.SelectedAssetIDs != nil {
		assetIDs = append([]string(nil), p.SelectedAssetIDs...)
	}

	total, zakatable, err := s.wealth.Snapshot(ctx, assetIDs)
	if err != nil {
		return types.NisabYearRecord{}, fmt.Errorf("wealth snapshot: %w", err)
	}
	if err := checkWealthFigures(total, zakatable); err != nil {
		return types.NisabYearRecord{}, err
	}

	now := s.now()
	before := map[string]any{
		"selected_asset_ids": rec.SelectedAssetIDs,
		"total_wealth":       rec.TotalWealth.String(),
		"zakatable_wealth":   rec.ZakatableWealth.String(),
	}

	rec.SelectedAssetIDs = assetIDs
	rec.TotalWealth = total
	rec.ZakatableWealth = zakatable
	rec.ZakatAmount = zakatable.Mul(types.ZakatRate)
	if rec.Status == types.StatusDraft && rec.HawlStarted() &&
		zakatable.LessThan(rec.MinimumWealthDuringPeriod) {
		rec.MinimumWealthDuringPeriod = zakatable
	}
	rec.UpdatedAt = now
	rec.Version = expectedVersion + 1

	entry := s.newEntry(rec.ID, types.EventEdited, actorID, now)
	entry.BeforeState = before
	entry.AfterState = map[string]any{
		"selected_asset_ids": assetIDs,
		"total_wealth":       total.String(),
		"zakatable_wealth":   zakatable.String(),
	}

	updated, _, err := s.records.ApplyTransition(ctx, rec, expectedVersion, entry)
	if err != nil {
		return types.NisabYearRecord{}, err
	}

	if updated.Status != types.StatusDraft {
		return updated, nil
	}
	return s.evaluateHawl(ctx, updated, actorID)
}

// Finalize locks the record's figures.  From DRAFT it emits FINALIZED;
// from UNLOCKED it re-finalizes with recomputed figures and emits
// REFINALIZED.  An incomplete Hawl needs the explicit earlyOverride
// acknowledgement, which is then recorded on the audit entry.
func (s *LifecycleService) Finalize(ctx context.Context, recordID string, expectedVersion int64, actorID string, earlyOverride bool) (types.NisabYearRecord, error) {
	rec, err := s.records.GetRecord(ctx, recordID)
	if err != nil {
		return types.NisabYearRecord{}, err
	}

	var event types.EventType
	switch rec.Status {
	case types.StatusDraft:
		event = types.EventFinalized
	case types.StatusUnlocked:
		event = types.EventRefinalized
	case types.StatusFinalized:
		return types.NisabYearRecord{}, fmt.Errorf("%w: record is already finalized", ErrIllegalTransition)
	default:
		return types.NisabYearRecord{}, fmt.Errorf("%w: unknown status %q", ErrIllegalTransition, rec.Status)
	}

	if !rec.HawlStarted() {
		return types.NisabYearRecord{}, ErrHawlNotStarted
	}

	now := s.now()
	complete, err := hawl.IsComplete(*rec.HawlStartDate, now, hawl.LunarYearDays)
	if err != nil {
		// now < start is a defect, not a domain state.  Fail closed.
		s.logger.Printf("finalize %s: invalid time range: %v", recordID, err)
		return types.NisabYearRecord{}, err
	}
	if !complete && !earlyOverride {
		return types.NisabYearRecord{}, ErrHawlIncomplete
	}

	rec.Status = types.StatusFinalized
	rec.FinalZakatAmount = rec.ZakatableWealth.Mul(types.ZakatRate)
	rec.ZakatAmount = rec.FinalZakatAmount
	if !complete {
		// Early override: the cycle ends now, not at day 354.
		completion := now
		rec.HawlCompletionDate = &completion
		rec.HawlCompletionDateHijri = hijri.FromTime(completion).String()
	}
	rec.UpdatedAt = now
	rec.Version = expectedVersion + 1

	entry := s.newEntry(rec.ID, event, actorID, now)
	entry.EarlyOverride = !complete

	updated, _, err := s.records.ApplyTransition(ctx, rec, expectedVersion, entry)
	if err != nil {
		return types.NisabYearRecord{}, err
	}
	return updated, nil
}

// Unlock reopens a FINALIZED record for correction.  The justification is
// validated in plaintext, then encrypted; only the ciphertext reaches the
// ledger and nothing is stored on the record itself.
func (s *LifecycleService) Unlock(ctx context.Context, recordID string, expectedVersion int64, actorID, reason string) (types.NisabYearRecord, error) {
	rec, err := s.records.GetRecord(ctx, recordID)
	if err != nil {
		return types.NisabYearRecord{}, err
	}

	switch rec.Status {
	case types.StatusFinalized:
	case types.StatusDraft:
		return types.NisabYearRecord{}, fmt.Errorf("%w: draft records are already editable", ErrIllegalTransition)
	case types.StatusUnlocked:
		return types.NisabYearRecord{}, fmt.Errorf("%w: record is already unlocked", ErrIllegalTransition)
	default:
		return types.NisabYearRecord{}, fmt.Errorf("%w: unknown status %q", ErrIllegalTransition, rec.Status)
	}

	if utf8.RuneCountInString(reason) < minReasonChars {
		return types.NisabYearRecord{}, ErrReasonTooShort
	}

	ciphertext, err := s.cipher.Encrypt(reason)
	if err != nil {
		return types.NisabYearRecord{}, fmt.Errorf("encrypt unlock reason: %w", err)
	}

	now := s.now()
	rec.Status = types.StatusUnlocked
	rec.UpdatedAt = now
	rec.Version = expectedVersion + 1

	entry := s.newEntry(rec.ID, types.EventUnlocked, actorID, now)
	entry.EncryptedReason = ciphertext

	updated, _, err := s.records.ApplyTransition(ctx, rec, expectedVersion, entry)
	if err != nil {
		return types.NisabYearRecord{}, err
	}
	return updated, nil
}

// RecordInterruption resets the Hawl clock after the wealth dropped below
// the frozen threshold.  It is internal machinery: only edits and the live
// tracker trigger it, never callers directly.
func (s *LifecycleService) RecordInterruption(ctx context.Context, recordID string, expectedVersion int64, actorID string) (types.NisabYearRecord, error) {
	rec, err := s.records.GetRecord(ctx, recordID)
	if err != nil {
		return types.NisabYearRecord{}, err
	}

	if rec.Status != types.StatusDraft {
		return types.NisabYearRecord{}, fmt.Errorf("%w: interruptions apply only to draft records", ErrIllegalTransition)
	}
	if !rec.HawlStarted() {
		return types.NisabYearRecord{}, fmt.Errorf("%w: hawl has not started", ErrIllegalTransition)
	}

	total, zakatable, err := s.wealth.Snapshot(ctx, rec.SelectedAssetIDs)
	if err != nil {
		return types.NisabYearRecord{}, fmt.Errorf("wealth snapshot: %w", err)
	}
	if zakatable.GreaterThanOrEqual(rec.NisabThresholdAtStart) {
		return types.NisabYearRecord{}, fmt.Errorf("%w: wealth is not below the threshold", ErrIllegalTransition)
	}

	now := s.now()
	daysCompleted, err := hawl.DaysElapsed(*rec.HawlStartDate, now)
	if err != nil {
		s.logger.Printf("interruption %s: invalid time range: %v", recordID, err)
		return types.NisabYearRecord{}, err
	}

	details := &types.InterruptionDetails{
		WealthAtInterruption:    zakatable,
		ThresholdAtInterruption: rec.NisabThresholdAtStart,
		DaysCompleted:           daysCompleted,
	}

	// Reset the clock.  The threshold stays frozen: an interruption moves
	// the start date, not the goalposts.
	startHawl(&rec, now, rec.NisabThresholdAtStart, zakatable)
	rec.TotalWealth = total
	rec.ZakatableWealth = zakatable
	rec.ZakatAmount = zakatable.Mul(types.ZakatRate)
	rec.PriorInterruptions++
	rec.UpdatedAt = now
	rec.Version = expectedVersion + 1

	entry := s.newEntry(rec.ID, types.EventHawlInterrupted, actorID, now)
	entry.Interruption = details

	updated, _, err := s.records.ApplyTransition(ctx, rec, expectedVersion, entry)
	if err != nil {
		return types.NisabYearRecord{}, err
	}
	return updated, nil
}

// AuditTrail pairs a record's ordered ledger with its integrity report.
type AuditTrail struct {
	Entries   []types.AuditTrailEntry `json:"entries"`
	Integrity ledger.Report           `json:"integrity"`
}

// GetAuditTrail returns the full ledger for a record plus the advisory
// integrity report.  Anomalies never turn the read into a failure.
func (s *LifecycleService) GetAuditTrail(ctx context.Context, recordID string) (AuditTrail, error) {
	rec, err := s.records.GetRecord(ctx, recordID)
	if err != nil {
		return AuditTrail{}, err
	}

	entries, err := s.trail.ListForRecord(ctx, recordID)
	if err != nil {
		return AuditTrail{}, fmt.Errorf("list audit trail: %w", err)
	}

	return AuditTrail{
		Entries:   entries,
		Integrity: ledger.BuildReport(entries, rec.Status),
	}, nil
}

// evaluateHawl re-checks a DRAFT record after its wealth changed: a pending
// record that crossed the threshold starts its Hawl, an active record that
// fell below the frozen threshold gets interrupted.
func (s *LifecycleService) evaluateHawl(ctx context.Context, rec types.NisabYearRecord, actorID string) (types.NisabYearRecord, error) {
	if rec.Status != types.StatusDraft {
		return rec, nil
	}

	if !rec.HawlStarted() {
		threshold, err := s.prices.NisabThreshold(ctx, rec.NisabBasis, rec.Currency)
		if err != nil {
			return rec, fmt.Errorf("nisab threshold: %w", err)
		}
		if rec.ZakatableWealth.GreaterThanOrEqual(threshold) {
			return s.achieveNisab(ctx, rec, actorID, threshold)
		}
		return rec, nil
	}

	now := s.now()
	complete, err := hawl.IsComplete(*rec.HawlStartDate, now, hawl.LunarYearDays)
	if err != nil {
		s.logger.Printf("evaluate %s: invalid time range: %v", rec.ID, err)
		return rec, err
	}
	if !complete && rec.ZakatableWealth.LessThan(rec.NisabThresholdAtStart) {
		return s.RecordInterruption(ctx, rec.ID, rec.Version, actorID)
	}
	return rec, nil
}

// achieveNisab starts the Hawl on a pending record and freezes the
// threshold that was met.
func (s *LifecycleService) achieveNisab(ctx context.Context, rec types.NisabYearRecord, actorID string, threshold decimal.Decimal) (types.NisabYearRecord, error) {
	now := s.now()
	expectedVersion := rec.Version

	startHawl(&rec, now, threshold, rec.ZakatableWealth)
	rec.UpdatedAt = now
	rec.Version = expectedVersion + 1

	entry := s.newEntry(rec.ID, types.EventNisabAchieved, actorID, now)

	updated, _, err := s.records.ApplyTransition(ctx, rec, expectedVersion, entry)
	if err != nil {
		return types.NisabYearRecord{}, err
	}
	return updated, nil
}

func (s *LifecycleService) newEntry(recordID string, event types.EventType, actorID string, at time.Time) types.AuditTrailEntry {
	if actorID == "" {
		actorID = SystemActor
	}
	return types.AuditTrailEntry{
		ID:        uuid.NewString(),
		RecordID:  recordID,
		Event:     event,
		ActorID:   actorID,
		Timestamp: at,
	}
}

// startHawl sets the clock fields for a (re)starting Hawl: start now,
// completion at start + 354 days, Hijri mirrors, frozen threshold, and
// fresh per-period wealth tracking.
func startHawl(rec *types.NisabYearRecord, now time.Time, threshold, currentWealth decimal.Decimal) {
	start := now
	completion := hawl.CompletionDate(start, hawl.LunarYearDays)

	rec.HawlStartDate = &start
	rec.HawlCompletionDate = &completion
	rec.HawlStartDateHijri = hijri.FromTime(start).String()
	rec.HawlCompletionDateHijri = hijri.FromTime(completion).String()
	rec.NisabThresholdAtStart = threshold
	rec.WealthAtStart = currentWealth
	rec.MinimumWealthDuringPeriod = currentWealth
}

func checkWealthFigures(total, zakatable decimal.Decimal) error {
	if total.IsNegative() || zakatable.IsNegative() {
		return ErrNegativeWealth
	}
	if zakatable.GreaterThan(total) {
		return fmt.Errorf("%w: zakatable wealth exceeds total wealth", ErrValidation)
	}
	return nil
}
