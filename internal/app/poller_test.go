package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hotel_intake/internal/app"
	"hotel_intake/internal/domain"
)

// ---- fakes ----

// fakeClock advances virtual time instantly on Sleep. With blockAfter > 0 it
// parks the loop on the ctx after that many sleeps, which models a watch
// sitting idle between ticks.
type fakeClock struct {
	mu         sync.Mutex
	now        time.Time
	sleeps     int
	blockAfter int
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) bool {
	c.mu.Lock()
	c.sleeps++
	if c.blockAfter > 0 && c.sleeps > c.blockAfter {
		c.mu.Unlock()
		<-ctx.Done()
		return false
	}
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return true
}

// scriptedStore answers Status by call number.
type scriptedStore struct {
	mu    sync.Mutex
	calls int
	fn    func(call int) (domain.RequestStatus, error)
}

func (s *scriptedStore) Status(_ context.Context, _ string) (domain.RequestStatus, error) {
	s.mu.Lock()
	s.calls++
	c := s.calls
	s.mu.Unlock()
	return s.fn(c)
}

func (s *scriptedStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *scriptedStore) Create(context.Context, domain.HotelRequest) error { return nil }
func (s *scriptedStore) Results(context.Context, string) ([]domain.ResultRow, error) {
	return nil, nil
}
func (s *scriptedStore) Summary(context.Context, string) (domain.RequestSummary, error) {
	return domain.RequestSummary{}, nil
}

type fakeTracker struct {
	mu sync.Mutex
	m  map[string]domain.PollState
}

func newTracker() *fakeTracker { return &fakeTracker{m: map[string]domain.PollState{}} }

func (t *fakeTracker) Get(_ context.Context, id string) (domain.PollState, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.m[id]
	return st, ok, nil
}

func (t *fakeTracker) Set(_ context.Context, id string, state domain.PollState, _ int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m[id] = state
	return nil
}

func (t *fakeTracker) get(id string) (domain.PollState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.m[id]
	return st, ok
}

func notReady() (domain.RequestStatus, error) {
	return domain.RequestStatus{CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}, nil
}

// ---- tests ----

// interval 10, timeout 30, ready on the tick at t=30: the machine must reach
// ready having made exactly 4 status calls (t=0,10,20,30).
func TestWatch_ReadyAtFourthTick(t *testing.T) {
	store := &scriptedStore{fn: func(call int) (domain.RequestStatus, error) {
		if call < 4 {
			return notReady()
		}
		return domain.RequestStatus{Ready: true, WorkbookURL: "https://wb/1"}, nil
	}}
	tracker := newTracker()
	mgr := app.NewWatchManager(store, tracker, newClock(), app.WatchConfig{
		Interval: 10 * time.Second,
		Timeout:  30 * time.Second,
	})

	snap, err := mgr.Wait(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if snap.State != domain.PollReady || snap.WorkbookURL != "https://wb/1" {
		t.Fatalf("unexpected terminal snapshot: %+v", snap)
	}
	if got := store.count(); got != 4 {
		t.Fatalf("status calls = %d, want exactly 4", got)
	}
	if st, ok := tracker.get("req-1"); !ok || st != domain.PollReady {
		t.Fatalf("ready outcome must be marked, got %q ok=%v", st, ok)
	}
}

func TestWatch_TimeoutThenNoFurtherCalls(t *testing.T) {
	store := &scriptedStore{fn: func(int) (domain.RequestStatus, error) { return notReady() }}
	tracker := newTracker()
	mgr := app.NewWatchManager(store, tracker, newClock(), app.WatchConfig{
		Interval: 10 * time.Second,
		Timeout:  30 * time.Second,
	})

	snap, err := mgr.Wait(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if snap.State != domain.PollTimedOut {
		t.Fatalf("state = %s, want timed_out", snap.State)
	}
	calls := store.count()
	if calls != 4 { // t=0,10,20,30; the t=40 wake-up times out before calling
		t.Fatalf("status calls = %d, want 4", calls)
	}
	time.Sleep(20 * time.Millisecond)
	if store.count() != calls {
		t.Fatalf("no store calls may follow the terminal state")
	}
	if st, _ := tracker.get("req-1"); st != domain.PollTimedOut {
		t.Fatalf("timed_out outcome must be marked, got %q", st)
	}
}

func TestWatch_TransientErrorSkipAndContinue(t *testing.T) {
	store := &scriptedStore{fn: func(call int) (domain.RequestStatus, error) {
		switch call {
		case 2:
			return domain.RequestStatus{}, &domain.StoreError{Op: "status", Err: errors.New("blip")}
		case 4:
			return domain.RequestStatus{Ready: true}, nil
		default:
			return notReady()
		}
	}}
	mgr := app.NewWatchManager(store, newTracker(), newClock(), app.WatchConfig{
		Interval:      10 * time.Second,
		Timeout:       600 * time.Second,
		FailureBudget: 3,
	})

	snap, err := mgr.Wait(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if snap.State != domain.PollReady {
		t.Fatalf("one transient failure must not settle the watch, got %s", snap.State)
	}
}

func TestWatch_FailureBudgetExhausted(t *testing.T) {
	store := &scriptedStore{fn: func(int) (domain.RequestStatus, error) {
		return domain.RequestStatus{}, &domain.StoreError{Op: "status", Err: errors.New("down")}
	}}
	tracker := newTracker()
	mgr := app.NewWatchManager(store, tracker, newClock(), app.WatchConfig{
		Interval:      10 * time.Second,
		Timeout:       600 * time.Second,
		FailureBudget: 3,
	})

	snap, err := mgr.Wait(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if snap.State != domain.PollStoreError || snap.Failures != 3 {
		t.Fatalf("expected store_error after 3 consecutive failures, got %+v", snap)
	}
	if store.count() != 3 {
		t.Fatalf("status calls = %d, want 3", store.count())
	}
	// store_error is per-session: nothing persisted, a later entry may recover
	if _, ok := tracker.get("req-1"); ok {
		t.Fatalf("store_error must not be marked")
	}
}

// pending then ready, never back: after a check has seen ready, later checks
// settle from the marker without consulting the store again.
func TestCheck_ReadyIsMonotonic(t *testing.T) {
	var ready bool
	var mu sync.Mutex
	store := &scriptedStore{fn: func(int) (domain.RequestStatus, error) {
		mu.Lock()
		defer mu.Unlock()
		if ready {
			return domain.RequestStatus{Ready: true, WorkbookURL: "https://wb/1"}, nil
		}
		return notReady()
	}}
	clock := newClock()
	mgr := app.NewWatchManager(store, newTracker(), clock, app.WatchConfig{
		Interval: 10 * time.Second,
		Timeout:  600 * time.Second,
	})
	ctx := context.Background()

	snap, err := mgr.Check(ctx, "req-1")
	if err != nil || snap.State != domain.PollPending {
		t.Fatalf("expected pending, got %+v err=%v", snap, err)
	}
	if snap.Progress < 0 || snap.Progress >= 1 {
		t.Fatalf("pending progress must be in [0,1), got %f", snap.Progress)
	}

	mu.Lock()
	ready = true
	mu.Unlock()
	snap, err = mgr.Check(ctx, "req-1")
	if err != nil || snap.State != domain.PollReady {
		t.Fatalf("expected ready, got %+v err=%v", snap, err)
	}

	// the store reverting must not drag the view back to pending
	mu.Lock()
	ready = false
	mu.Unlock()
	before := store.count()
	snap, err = mgr.Check(ctx, "req-1")
	if err != nil || snap.State != domain.PollReady {
		t.Fatalf("ready must never revert, got %+v err=%v", snap, err)
	}
	if store.count() != before {
		t.Fatalf("a marked-ready identifier must not hit the store")
	}
}

func TestSubscribe_ReadyMarkerSkipsStore(t *testing.T) {
	store := &scriptedStore{fn: func(int) (domain.RequestStatus, error) { return notReady() }}
	tracker := newTracker()
	tracker.m["req-1"] = domain.PollReady
	mgr := app.NewWatchManager(store, tracker, newClock(), app.WatchConfig{})

	snap, err := mgr.Wait(context.Background(), "req-1")
	if err != nil || snap.State != domain.PollReady {
		t.Fatalf("expected ready from marker, got %+v err=%v", snap, err)
	}
	if store.count() != 0 {
		t.Fatalf("ready marker must settle without store calls, got %d", store.count())
	}
}

func TestCheck_TimedOutMarkerUpgradesOnRecheck(t *testing.T) {
	store := &scriptedStore{fn: func(int) (domain.RequestStatus, error) {
		return domain.RequestStatus{Ready: true, WorkbookURL: "https://wb/late"}, nil
	}}
	tracker := newTracker()
	tracker.m["req-1"] = domain.PollTimedOut
	mgr := app.NewWatchManager(store, tracker, newClock(), app.WatchConfig{})

	snap, err := mgr.Check(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if snap.State != domain.PollReady || snap.WorkbookURL != "https://wb/late" {
		t.Fatalf("late results should upgrade a timed_out marker, got %+v", snap)
	}
	if store.count() != 1 {
		t.Fatalf("re-check is exactly one store call, got %d", store.count())
	}
	if st, _ := tracker.get("req-1"); st != domain.PollReady {
		t.Fatalf("marker should be upgraded to ready, got %q", st)
	}
}

func TestCheck_TimedOutMarkerStaysWithoutResults(t *testing.T) {
	store := &scriptedStore{fn: func(int) (domain.RequestStatus, error) { return notReady() }}
	tracker := newTracker()
	tracker.m["req-1"] = domain.PollTimedOut
	mgr := app.NewWatchManager(store, tracker, newClock(), app.WatchConfig{})

	snap, err := mgr.Check(context.Background(), "req-1")
	if err != nil || snap.State != domain.PollTimedOut {
		t.Fatalf("expected timed_out to hold, got %+v err=%v", snap, err)
	}
}

func TestCheck_UnknownIdentifier(t *testing.T) {
	store := &scriptedStore{fn: func(int) (domain.RequestStatus, error) {
		return domain.RequestStatus{}, domain.ErrNotFound
	}}
	mgr := app.NewWatchManager(store, newTracker(), newClock(), app.WatchConfig{})

	_, err := mgr.Check(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWatch_LastObserverDepartureStopsLoop(t *testing.T) {
	store := &scriptedStore{fn: func(int) (domain.RequestStatus, error) { return notReady() }}
	clock := newClock()
	clock.blockAfter = 2 // two fast ticks, then park between ticks
	mgr := app.NewWatchManager(store, newTracker(), clock, app.WatchConfig{
		Interval: 10 * time.Second,
		Timeout:  600 * time.Second,
	})

	sub, err := mgr.Subscribe(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// drain until the loop is parked in its sleep
	deadline := time.After(2 * time.Second)
	for store.count() < 3 {
		select {
		case <-sub.Updates():
		case <-deadline:
			t.Fatalf("loop never reached the parked tick, calls=%d", store.count())
		}
	}

	calls := store.count()
	sub.Close()
	time.Sleep(50 * time.Millisecond)
	if store.count() != calls {
		t.Fatalf("closing the last observer must stop the loop")
	}
}

func TestWatch_ConcurrentObserversShareOneLoop(t *testing.T) {
	store := &scriptedStore{fn: func(call int) (domain.RequestStatus, error) {
		if call < 3 {
			return notReady()
		}
		return domain.RequestStatus{Ready: true}, nil
	}}
	mgr := app.NewWatchManager(store, newTracker(), newClock(), app.WatchConfig{
		Interval: 10 * time.Second,
		Timeout:  600 * time.Second,
	})

	var wg sync.WaitGroup
	states := make([]domain.PollState, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := mgr.Wait(context.Background(), "req-1")
			if err != nil {
				t.Errorf("wait[%d]: %v", i, err)
				return
			}
			states[i] = snap.State
		}(i)
	}
	wg.Wait()

	for i, st := range states {
		if st != domain.PollReady {
			t.Fatalf("observer %d saw %s, want ready", i, st)
		}
	}
	// one loop plus at most a few marker re-checks; never 4x the ticks
	if store.count() > 4 {
		t.Fatalf("observers must share one loop, got %d status calls", store.count())
	}
}
