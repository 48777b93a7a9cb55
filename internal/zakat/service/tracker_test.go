package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mizan-app/mizan/server/internal/zakat/service"
	"github.com/mizan-app/mizan/server/internal/zakat/store/memory"
	"github.com/mizan-app/mizan/server/internal/zakat/types"
)

// countingAggregator counts wealth snapshots so debounce tests can assert
// how many recomputations actually happened.
type countingAggregator struct {
	inner *memory.WealthAggregator

	mu    sync.Mutex
	calls int
}

func (a *countingAggregator) Snapshot(ctx context.Context, assetIDs []string) (decimal.Decimal, decimal.Decimal, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	return a.inner.Snapshot(ctx, assetIDs)
}

func (a *countingAggregator) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func newTrackedService(t *testing.T, cfg service.TrackerConfig) (*service.LifecycleService, *service.Tracker, *memory.WealthAggregator, *countingAggregator, *fakeClock) {
	t.Helper()

	st := memory.NewRecordStore()
	inner := memory.NewWealthAggregator()
	agg := &countingAggregator{inner: inner}
	clock := newFakeClock()

	svc := service.NewLifecycleService(service.Deps{
		Records: st,
		Trail:   st,
		Wealth:  agg,
		Prices:  fixedPrices{threshold: dec("5000")},
		Cipher:  testCipher(t),
		Logger:  silentLogger(),
		Now:     clock.Now,
	})

	tracker := service.NewTracker(svc, cfg, silentLogger())
	t.Cleanup(tracker.Stop)
	return svc, tracker, inner, agg, clock
}

func TestTracker_TrackIsIdempotent(t *testing.T) {
	svc, tracker, inner, _, _ := newTrackedService(t, service.TrackerConfig{
		Interval: time.Hour, // no background ticks during the test
	})
	rec := createTrackedRecord(t, svc, inner, "50000")

	ctx := context.Background()
	tracker.Track(ctx, rec.ID)
	tracker.Track(ctx, rec.ID)

	if !tracker.Tracked(rec.ID) {
		t.Fatal("expected record to be tracked")
	}

	tracker.Untrack(rec.ID)
	if tracker.Tracked(rec.ID) {
		t.Fatal("expected record to be untracked")
	}
	// A second untrack is a no-op, not a deadlock.
	tracker.Untrack(rec.ID)
}

func TestTracker_LoopAppliesInterruption(t *testing.T) {
	svc, tracker, inner, _, clock := newTrackedService(t, service.TrackerConfig{
		Interval: 5 * time.Millisecond,
		Debounce: time.Nanosecond,
	})
	rec := createTrackedRecord(t, svc, inner, "50000")

	tracker.Track(context.Background(), rec.ID)

	clock.AdvanceDays(100)
	inner.SetAsset("asset-1", dec("4000"), dec("4000"))

	deadline := time.Now().Add(2 * time.Second)
	for {
		cur, err := svc.Record(context.Background(), rec.ID)
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
		if cur.PriorInterruptions == 1 {
			if !cur.HawlStartDate.Equal(clock.Now()) {
				t.Errorf("expected hawl restart at %s, got %s", clock.Now(), cur.HawlStartDate)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("tracker never applied the interruption")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTracker_StopsWhenRecordLeavesDraft(t *testing.T) {
	svc, tracker, inner, _, clock := newTrackedService(t, service.TrackerConfig{
		Interval: 5 * time.Millisecond,
		Debounce: time.Nanosecond,
	})
	rec := createTrackedRecord(t, svc, inner, "50000")

	tracker.Track(context.Background(), rec.ID)

	clock.AdvanceDays(354)
	if _, err := svc.Finalize(context.Background(), rec.ID, rec.Version, "user-1", false); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for tracker.Tracked(rec.ID) {
		if time.Now().After(deadline) {
			t.Fatal("tracker loop did not stop after finalization")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTracker_DebounceCoalescesBursts(t *testing.T) {
	svc, tracker, inner, counting, _ := newTrackedService(t, service.TrackerConfig{
		Interval: time.Hour,
		Debounce: time.Second,
	})
	rec := createTrackedRecord(t, svc, inner, "50000")

	before := counting.Calls()
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if _, err := tracker.Snapshot(ctx, rec.ID); err != nil {
			t.Fatalf("Snapshot %d: %v", i, err)
		}
	}

	// One recomputation for the burst: the other nine served from cache.
	if got := counting.Calls() - before; got != 1 {
		t.Errorf("expected 1 wealth snapshot for the burst, got %d", got)
	}
}

func TestTracker_SnapshotMatchesService(t *testing.T) {
	svc, tracker, inner, _, clock := newTrackedService(t, service.TrackerConfig{
		Interval: time.Hour,
		Debounce: time.Nanosecond,
	})
	rec := createTrackedRecord(t, svc, inner, "50000")
	clock.AdvanceDays(42)

	got, err := tracker.Snapshot(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if got.DaysElapsed != 42 {
		t.Errorf("expected 42 days elapsed, got %d", got.DaysElapsed)
	}
	if got.Status != types.TrackingActive {
		t.Errorf("expected ACTIVE, got %s", got.Status)
	}
}

func createTrackedRecord(t *testing.T, svc *service.LifecycleService, agg *memory.WealthAggregator, wealth string) types.NisabYearRecord {
	t.Helper()

	agg.SetAsset("asset-1", dec(wealth), dec(wealth))
	rec, err := svc.Create(context.Background(), service.CreateParams{
		OwnerID:          "user-1",
		SelectedAssetIDs: []string{"asset-1"},
		NisabBasis:       types.BasisGold,
		Currency:         "USD",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return rec
}
