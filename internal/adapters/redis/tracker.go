package redisad

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"hotel_intake/internal/adapters/observability"
	"hotel_intake/internal/domain"
)

// Tracker keeps the per-identifier settled marker in Redis so a reopened
// tracking view (possibly on another instance) re-checks the store once
// instead of replaying the poll loop.
type Tracker struct{ c *redis.Client }

func New(addr, pass string, db int) *Tracker {
	return &Tracker{c: redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})}
}

func key(id string) string { return "track:" + id }

func (t *Tracker) Get(ctx context.Context, id string) (domain.PollState, bool, error) {
	v, err := t.c.Get(ctx, key(id)).Result()
	if err == redis.Nil {
		observability.ObserveTracker("redis", "miss")
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	observability.ObserveTracker("redis", "hit")
	return domain.PollState(v), true, nil
}

func (t *Tracker) Set(ctx context.Context, id string, state domain.PollState, ttlSec int) error {
	observability.ObserveTracker("redis", "set")
	var ttl time.Duration
	if ttlSec > 0 {
		ttl = time.Duration(ttlSec) * time.Second
	}
	return t.c.Set(ctx, key(id), string(state), ttl).Err()
}
