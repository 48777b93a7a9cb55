package service

import (
	"context"
	"fmt"

	"github.com/mizan-app/mizan/server/internal/zakat/hawl"
	"github.com/mizan-app/mizan/server/internal/zakat/nisab"
	"github.com/mizan-app/mizan/server/internal/zakat/types"
)

// GetLiveTrackingState computes the live Hawl view for a record.  For DRAFT
// records it is a pure function of the current wealth, the frozen threshold
// and the clock: calling it twice with no intervening wealth change yields
// identical output.  Once a record leaves DRAFT the view is frozen at the
// record's last update.
func (s *LifecycleService) GetLiveTrackingState(ctx context.Context, recordID string) (types.HawlTrackingState, error) {
	rec, err := s.records.GetRecord(ctx, recordID)
	if err != nil {
		return types.HawlTrackingState{}, err
	}

	if rec.Status != types.StatusDraft {
		return frozenTracking(rec), nil
	}

	_, zakatable, err := s.wealth.Snapshot(ctx, rec.SelectedAssetIDs)
	if err != nil {
		return types.HawlTrackingState{}, fmt.Errorf("wealth snapshot: %w", err)
	}

	state := types.HawlTrackingState{
		RecordID:           rec.ID,
		Status:             types.TrackingActive,
		WealthAtStart:      rec.WealthAtStart,
		CurrentWealth:      zakatable,
		NisabThreshold:     rec.NisabThresholdAtStart,
		PriorInterruptions: rec.PriorInterruptions,
		LastUpdated:        s.now(),
	}

	state.MinimumWealthDuringPeriod = rec.MinimumWealthDuringPeriod
	if rec.HawlStarted() && zakatable.LessThan(state.MinimumWealthDuringPeriod) {
		state.MinimumWealthDuringPeriod = zakatable
	}

	if !rec.HawlStarted() {
		// Pending: legal ACTIVE state with the clock not yet running.  The
		// threshold shown is the live one, since nothing is frozen yet.
		threshold, err := s.prices.NisabThreshold(ctx, rec.NisabBasis, rec.Currency)
		if err != nil {
			return types.HawlTrackingState{}, fmt.Errorf("nisab threshold: %w", err)
		}
		state.NisabThreshold = threshold
		state.DaysRemaining = hawl.LunarYearDays
		return state, nil
	}

	now := s.now()
	elapsed, err := hawl.DaysElapsed(*rec.HawlStartDate, now)
	if err != nil {
		s.logger.Printf("tracking %s: invalid time range: %v", recordID, err)
		return types.HawlTrackingState{}, err
	}
	remaining, _ := hawl.DaysRemaining(*rec.HawlStartDate, now, hawl.LunarYearDays)
	progress, _ := hawl.ProgressPercent(*rec.HawlStartDate, now, hawl.LunarYearDays)

	state.DaysElapsed = elapsed
	state.DaysRemaining = remaining
	state.HawlProgress = clampPercent(progress)

	cmp := nisab.Compare(zakatable, rec.NisabThresholdAtStart)
	switch {
	case elapsed >= hawl.LunarYearDays:
		state.Status = types.TrackingComplete
	case !cmp.IsAbove:
		state.Status = types.TrackingInterrupted
	default:
		state.Status = types.TrackingActive
	}
	return state, nil
}

// RefreshTracking is the tracker's per-tick unit of work: compute the live
// state and, when it shows the wealth below the frozen threshold, apply the
// interruption; when it shows a pending record at or above the live
// threshold, start the Hawl.  These are the only mutations the read path
// may trigger.
func (s *LifecycleService) RefreshTracking(ctx context.Context, recordID string) (types.HawlTrackingState, error) {
	rec, err := s.records.GetRecord(ctx, recordID)
	if err != nil {
		return types.HawlTrackingState{}, err
	}
	if rec.Status != types.StatusDraft {
		return frozenTracking(rec), nil
	}

	state, err := s.GetLiveTrackingState(ctx, recordID)
	if err != nil {
		return types.HawlTrackingState{}, err
	}

	switch {
	case state.Status == types.TrackingInterrupted:
		if _, err := s.RecordInterruption(ctx, recordID, rec.Version, SystemActor); err != nil {
			// A lost version race means a concurrent transition already
			// changed the record; the next tick re-evaluates.
			s.logger.Printf("tracker %s: interruption not applied: %v", recordID, err)
			return state, nil
		}
		return s.GetLiveTrackingState(ctx, recordID)

	case !rec.HawlStarted() && state.CurrentWealth.GreaterThanOrEqual(state.NisabThreshold):
		if _, err := s.achieveNisab(ctx, rec, SystemActor, state.NisabThreshold); err != nil {
			s.logger.Printf("tracker %s: nisab promotion not applied: %v", recordID, err)
			return state, nil
		}
		return s.GetLiveTrackingState(ctx, recordID)
	}

	return state, nil
}

// frozenTracking renders the terminal view for records that left DRAFT:
// figures come from the record, the clock stops at the last update.
func frozenTracking(rec types.NisabYearRecord) types.HawlTrackingState {
	state := types.HawlTrackingState{
		RecordID:                  rec.ID,
		Status:                    types.TrackingTerminated,
		WealthAtStart:             rec.WealthAtStart,
		CurrentWealth:             rec.ZakatableWealth,
		MinimumWealthDuringPeriod: rec.MinimumWealthDuringPeriod,
		NisabThreshold:            rec.NisabThresholdAtStart,
		PriorInterruptions:        rec.PriorInterruptions,
		LastUpdated:               rec.UpdatedAt,
	}

	if rec.HawlStarted() {
		if elapsed, err := hawl.DaysElapsed(*rec.HawlStartDate, rec.UpdatedAt); err == nil {
			state.DaysElapsed = elapsed
			remaining, _ := hawl.DaysRemaining(*rec.HawlStartDate, rec.UpdatedAt, hawl.LunarYearDays)
			state.DaysRemaining = remaining
			progress, _ := hawl.ProgressPercent(*rec.HawlStartDate, rec.UpdatedAt, hawl.LunarYearDays)
			state.HawlProgress = clampPercent(progress)
		}
	}
	return state
}

func clampPercent(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
