package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"hotel_intake/internal/adapters/observability"
	"hotel_intake/internal/domain"
)

// WatchConfig carries the polling contract: one status call per Interval
// until readiness, a hard Timeout bound, and a consecutive-failure budget
// below which store errors are skip-and-continue.
type WatchConfig struct {
	Interval      time.Duration
	Timeout       time.Duration
	FailureBudget int
	TrackTTLSec   int
}

func (c *WatchConfig) defaults() {
	if c.Interval <= 0 {
		c.Interval = 10 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 600 * time.Second
	}
	if c.FailureBudget <= 0 {
		c.FailureBudget = 3
	}
}

// Snapshot is one observable point of the watch. Progress is elapsed over
// the timeout bound clamped to [0,1]; it drives an indicator and carries no
// weight in the transitions themselves.
type Snapshot struct {
	State       domain.PollState
	Progress    float64
	WorkbookURL string
	Failures    int
}

// WatchManager owns at most one running poll loop per identifier. The first
// observer starts the loop, the last observer's departure cancels it, and a
// settled ready/timed_out outcome is persisted to the tracker so a reopened
// view never replays the waiting loop. store_error outcomes are deliberately
// not persisted: a later view entry restarts the loop and may recover.
type WatchManager struct {
	store   domain.RequestStore
	tracker domain.Tracker
	clock   Clock
	cfg     WatchConfig

	sf singleflight.Group // dedups one-shot status probes across callers

	mu      sync.Mutex
	watches map[string]*watch
}

func NewWatchManager(store domain.RequestStore, tracker domain.Tracker, clock Clock, cfg WatchConfig) *WatchManager {
	cfg.defaults()
	if clock == nil {
		clock = RealClock()
	}
	return &WatchManager{
		store:   store,
		tracker: tracker,
		clock:   clock,
		cfg:     cfg,
		watches: map[string]*watch{},
	}
}

type watch struct {
	id     string
	cancel context.CancelFunc

	mu      sync.Mutex
	snap    Snapshot
	settled bool
	subs    map[*Subscription]struct{}
}

// Subscription observes one watch. Updates delivers snapshots per tick and is
// closed after the terminal one; Close detaches the observer, and detaching
// the last observer stops the loop.
type Subscription struct {
	w  *watch
	ch chan Snapshot
}

func (s *Subscription) Updates() <-chan Snapshot { return s.ch }

func (s *Subscription) Close() { s.w.drop(s) }

// Subscribe attaches an observer to the watch for id, starting the poll loop
// if the identifier has neither a running loop nor a persisted outcome.
func (m *WatchManager) Subscribe(ctx context.Context, id string) (*Subscription, error) {
	m.mu.Lock()
	if w, ok := m.watches[id]; ok {
		sub := w.attach()
		m.mu.Unlock()
		return sub, nil
	}
	m.mu.Unlock()

	if snap, settled := m.resolveMarker(ctx, id); settled {
		return settledSub(snap), nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.watches[id]; ok { // raced with another subscriber
		return w.attach(), nil
	}
	lctx, cancel := context.WithCancel(context.Background())
	w := &watch{
		id:     id,
		cancel: cancel,
		snap:   Snapshot{State: domain.PollPending},
		subs:   map[*Subscription]struct{}{},
	}
	m.watches[id] = w
	sub := w.attach()
	go m.run(lctx, w)
	return sub, nil
}

// Check is the one-shot resolution used by the plain tracking endpoint: it
// never starts a loop. Precedence is running watch, then persisted marker,
// then a single deduplicated status probe. An identifier found ready here is
// marked so later checks skip the store entirely — ready is monotonic.
func (m *WatchManager) Check(ctx context.Context, id string) (Snapshot, error) {
	m.mu.Lock()
	if w, ok := m.watches[id]; ok {
		snap := w.snapshot()
		m.mu.Unlock()
		return snap, nil
	}
	m.mu.Unlock()

	if snap, settled := m.resolveMarker(ctx, id); settled {
		return snap, nil
	}

	st, err := m.probe(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	if st.Ready {
		m.mark(id, domain.PollReady)
		return Snapshot{State: domain.PollReady, Progress: 1, WorkbookURL: st.WorkbookURL}, nil
	}
	elapsed := m.clock.Now().Sub(st.CreatedAt)
	return Snapshot{State: domain.PollPending, Progress: progressOf(elapsed, m.cfg.Timeout)}, nil
}

// Wait drives a subscription to its terminal snapshot.
func (m *WatchManager) Wait(ctx context.Context, id string) (Snapshot, error) {
	sub, err := m.Subscribe(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	defer sub.Close()

	last := Snapshot{State: domain.PollPending}
	for {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case snap, ok := <-sub.Updates():
			if !ok {
				return last, nil
			}
			last = snap
			if snap.State.Terminal() {
				return snap, nil
			}
		}
	}
}

// run is the poll loop: status at t=0, then one call per interval, until
// readiness, the timeout bound, or a run of failures past the budget. The
// loop never re-enters pending after settling and never overlaps store
// calls for one identifier.
func (m *WatchManager) run(ctx context.Context, w *watch) {
	defer m.remove(w.id)

	start := m.clock.Now()
	deadline := start.Add(m.cfg.Timeout)
	failures := 0

	for {
		st, err := m.store.Status(ctx, w.id)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			observability.ObservePollTick("error")
			log.Warn().Err(err).Str("request_id", w.id).Int("failures", failures).Msg("status poll failed")
			if failures >= m.cfg.FailureBudget {
				w.settle(Snapshot{State: domain.PollStoreError, Progress: 1, Failures: failures})
				// not persisted: a later view entry may recover
				return
			}
			w.publish(Snapshot{State: domain.PollPending, Progress: m.progressSince(start), Failures: failures})
		} else {
			failures = 0
			if st.Ready {
				observability.ObservePollTick("ready")
				m.mark(w.id, domain.PollReady)
				w.settle(Snapshot{State: domain.PollReady, Progress: 1, WorkbookURL: st.WorkbookURL})
				return
			}
			observability.ObservePollTick("pending")
			w.publish(Snapshot{State: domain.PollPending, Progress: m.progressSince(start)})
		}

		if !m.clock.Sleep(ctx, m.cfg.Interval) {
			return // last observer left
		}
		if m.clock.Now().After(deadline) {
			m.mark(w.id, domain.PollTimedOut)
			w.settle(Snapshot{State: domain.PollTimedOut, Progress: 1, Failures: failures})
			return
		}
	}
}

// resolveMarker settles from the tracker without a loop. A timed_out marker
// gets exactly one deduplicated re-check: results may have arrived after the
// session gave up, and in that case the marker is upgraded. A ready marker
// settles with no store call at all.
func (m *WatchManager) resolveMarker(ctx context.Context, id string) (Snapshot, bool) {
	st, ok, err := m.tracker.Get(ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("request_id", id).Msg("tracker read failed")
		return Snapshot{}, false
	}
	if !ok {
		return Snapshot{}, false
	}
	switch st {
	case domain.PollReady:
		return Snapshot{State: domain.PollReady, Progress: 1}, true
	case domain.PollTimedOut:
		if rs, err := m.probe(ctx, id); err == nil && rs.Ready {
			m.mark(id, domain.PollReady)
			return Snapshot{State: domain.PollReady, Progress: 1, WorkbookURL: rs.WorkbookURL}, true
		}
		return Snapshot{State: domain.PollTimedOut, Progress: 1}, true
	}
	return Snapshot{}, false
}

func (m *WatchManager) probe(ctx context.Context, id string) (domain.RequestStatus, error) {
	v, err, _ := m.sf.Do("status:"+id, func() (any, error) {
		return m.store.Status(ctx, id)
	})
	if err != nil {
		return domain.RequestStatus{}, err
	}
	return v.(domain.RequestStatus), nil
}

func (m *WatchManager) mark(id string, state domain.PollState) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.tracker.Set(ctx, id, state, m.cfg.TrackTTLSec); err != nil {
		log.Warn().Err(err).Str("request_id", id).Msg("tracker write failed")
	}
}

func (m *WatchManager) remove(id string) {
	m.mu.Lock()
	delete(m.watches, id)
	m.mu.Unlock()
}

func (m *WatchManager) progressSince(start time.Time) float64 {
	return progressOf(m.clock.Now().Sub(start), m.cfg.Timeout)
}

func progressOf(elapsed, timeout time.Duration) float64 {
	if timeout <= 0 || elapsed <= 0 {
		return 0
	}
	p := float64(elapsed) / float64(timeout)
	if p > 1 {
		return 1
	}
	return p
}

func (w *watch) attach() *Subscription {
	sub := &Subscription{w: w, ch: make(chan Snapshot, 1)}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.settled { // raced with the terminal tick
		sub.ch <- w.snap
		close(sub.ch)
		return sub
	}
	w.subs[sub] = struct{}{}
	return sub
}

func (w *watch) drop(sub *Subscription) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.subs[sub]; !ok {
		return
	}
	delete(w.subs, sub)
	if len(w.subs) == 0 && !w.settled {
		w.cancel() // poll lifetime is bound to its observers
	}
}

func (w *watch) snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snap
}

// publish replaces any stale undelivered snapshot; slow observers only ever
// lag, they never block the loop.
func (w *watch) publish(snap Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.settled {
		return
	}
	w.snap = snap
	for sub := range w.subs {
		select {
		case sub.ch <- snap:
		default:
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- snap:
			default:
			}
		}
	}
}

func (w *watch) settle(snap Snapshot) {
	w.mu.Lock()
	if w.settled {
		w.mu.Unlock()
		return
	}
	w.settled = true
	w.snap = snap
	subs := make([]*Subscription, 0, len(w.subs))
	for sub := range w.subs {
		subs = append(subs, sub)
	}
	w.mu.Unlock()

	observability.ObserveSettled(string(snap.State))
	for _, sub := range subs {
		select {
		case sub.ch <- snap:
		default:
			select {
			case <-sub.ch:
			default:
			}
			sub.ch <- snap
		}
		close(sub.ch)
	}
}

// settledSub is a pre-resolved subscription: one terminal snapshot, then done.
func settledSub(snap Snapshot) *Subscription {
	w := &watch{settled: true, snap: snap, subs: map[*Subscription]struct{}{}, cancel: func() {}}
	sub := &Subscription{w: w, ch: make(chan Snapshot, 1)}
	sub.ch <- snap
	close(sub.ch)
	return sub
}
