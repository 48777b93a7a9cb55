package service

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mizan-app/mizan/server/internal/zakat/types"
)

// TrackerConfig holds the parameters for NewTracker.
type TrackerConfig struct {
	// Interval is how often each tracked record is recomputed.
	// Defaults to 15s.
	Interval time.Duration

	// Debounce is the window within which repeated snapshot requests for
	// the same record coalesce into one recomputation.  Defaults to 300ms.
	// Debouncing is a noise reducer, not a correctness mechanism: an
	// interruption missed inside the window is applied on the next
	// recomputation.
	Debounce time.Duration
}

// Tracker runs one lightweight polling loop per actively-tracked DRAFT
// record.  Loops are registered by record id, cancel cooperatively between
// ticks, and remove themselves once the record leaves DRAFT.  The only
// mutations a loop can trigger are the ones RefreshTracking owns.
type Tracker struct {
	svc      *LifecycleService
	interval time.Duration
	debounce time.Duration
	logger   *log.Logger

	group singleflight.Group

	mu     sync.Mutex
	tasks  map[string]*trackTask
	cached map[string]cachedState
}

type trackTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

type cachedState struct {
	state types.HawlTrackingState
	at    time.Time
}

func NewTracker(svc *LifecycleService, cfg TrackerConfig, logger *log.Logger) *Tracker {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	return &Tracker{
		svc:      svc,
		interval: interval,
		debounce: debounce,
		logger:   logger,
		tasks:    make(map[string]*trackTask),
		cached:   make(map[string]cachedState),
	}
}

// Track starts a polling loop for the record.  Tracking an already-tracked
// record is a no-op.
func (t *Tracker) Track(ctx context.Context, recordID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.tasks[recordID]; ok {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	task := &trackTask{cancel: cancel, done: make(chan struct{})}
	t.tasks[recordID] = task

	go t.loop(ctx, recordID, task)
}

// Untrack stops the record's loop and waits for it to finish.
func (t *Tracker) Untrack(recordID string) {
	t.mu.Lock()
	task, ok := t.tasks[recordID]
	if ok {
		delete(t.tasks, recordID)
	}
	t.mu.Unlock()

	if ok {
		task.cancel()
		<-task.done
	}
}

// Stop cancels every loop and waits for all of them.
func (t *Tracker) Stop() {
	t.mu.Lock()
	tasks := make([]*trackTask, 0, len(t.tasks))
	for id, task := range t.tasks {
		tasks = append(tasks, task)
		delete(t.tasks, id)
	}
	t.mu.Unlock()

	for _, task := range tasks {
		task.cancel()
		<-task.done
	}
}

// Tracked reports whether a loop is currently registered for the record.
func (t *Tracker) Tracked(recordID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.tasks[recordID]
	return ok
}

// Snapshot returns the record's live tracking state, coalescing concurrent
// and rapid-fire requests into a single recomputation per debounce window.
func (t *Tracker) Snapshot(ctx context.Context, recordID string) (types.HawlTrackingState, error) {
	return t.refresh(ctx, recordID)
}

func (t *Tracker) loop(ctx context.Context, recordID string, task *trackTask) {
	defer close(task.done)

	// Recompute immediately so a freshly tracked record has a snapshot.
	t.tick(ctx, recordID)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if done := t.tick(ctx, recordID); done {
				// Record left DRAFT; remove the registry entry without
				// waiting on our own done channel.
				t.mu.Lock()
				if cur, ok := t.tasks[recordID]; ok && cur == task {
					delete(t.tasks, recordID)
				}
				t.mu.Unlock()
				return
			}
		}
	}
}

// tick refreshes one record and reports whether the loop should stop.
func (t *Tracker) tick(ctx context.Context, recordID string) (stop bool) {
	state, err := t.refresh(ctx, recordID)
	if err != nil {
		t.logger.Printf("tracker %s: refresh: %v", recordID, err)
		return false
	}
	return state.Status == types.TrackingTerminated
}

// refresh runs RefreshTracking through singleflight, so polls for the same
// record are serialized, and through the debounce cache, so bursts reuse
// the previous result.
func (t *Tracker) refresh(ctx context.Context, recordID string) (types.HawlTrackingState, error) {
	v, err, _ := t.group.Do(recordID, func() (any, error) {
		t.mu.Lock()
		if c, ok := t.cached[recordID]; ok && time.Since(c.at) < t.debounce {
			t.mu.Unlock()
			return c.state, nil
		}
		t.mu.Unlock()

		state, err := t.svc.RefreshTracking(ctx, recordID)
		if err != nil {
			return types.HawlTrackingState{}, err
		}

		t.mu.Lock()
		t.cached[recordID] = cachedState{state: state, at: time.Now()}
		t.mu.Unlock()
		return state, nil
	})
	if err != nil {
		return types.HawlTrackingState{}, err
	}
	return v.(types.HawlTrackingState), nil
}
