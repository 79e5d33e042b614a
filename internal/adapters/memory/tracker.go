package memory

import (
	"context"
	"sync"
	"time"

	"hotel_intake/internal/adapters/observability"
	"hotel_intake/internal/domain"
)

// Tracker is the single-process settled-marker store, used when no Redis is
// configured. Same contract as the Redis adapter: only terminal states are
// kept, ttlSec <= 0 means no expiry.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

type entry struct {
	state     domain.PollState
	expiresAt time.Time // zero means never
}

func New() *Tracker {
	return &Tracker{entries: map[string]entry{}, now: time.Now}
}

func (t *Tracker) Get(_ context.Context, id string) (domain.PollState, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		observability.ObserveTracker("memory", "miss")
		return "", false, nil
	}
	if !e.expiresAt.IsZero() && t.now().After(e.expiresAt) {
		delete(t.entries, id)
		observability.ObserveTracker("memory", "miss")
		return "", false, nil
	}
	observability.ObserveTracker("memory", "hit")
	return e.state, true, nil
}

func (t *Tracker) Set(_ context.Context, id string, state domain.PollState, ttlSec int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := entry{state: state}
	if ttlSec > 0 {
		e.expiresAt = t.now().Add(time.Duration(ttlSec) * time.Second)
	}
	t.entries[id] = e
	observability.ObserveTracker("memory", "set")
	return nil
}
