package domain

import "context"

// RequestStore is the single source of truth for request state. A row is
// written once at submission, mutated once by the external producer, and read
// repeatedly by the watch loop and the presenter.
type RequestStore interface {
	// Create inserts a new row. The identifier is generated by the caller
	// before the call; the store never generates it and never retries.
	Create(ctx context.Context, r HotelRequest) error

	// Status is a single-row lookup; ErrNotFound when the id has no row.
	Status(ctx context.Context, id string) (RequestStatus, error)

	// Results fetches all matched rows for the id. No rows yet is an empty
	// slice, not an error.
	Results(ctx context.Context, id string) ([]ResultRow, error)

	// Summary is the display-only read for the tracking view.
	Summary(ctx context.Context, id string) (RequestSummary, error)
}

// Notifier posts the submission event to the downstream sink. Delivery is
// best-effort: a failure must never affect the already-committed request.
type Notifier interface {
	Notify(ctx context.Context, r HotelRequest) error
}

// Tracker remembers which identifiers already settled so a reopened tracking
// view re-checks the store once instead of replaying the poll loop. Only
// ready and timed_out are ever stored. ttlSec <= 0 keeps the marker with no
// expiry.
type Tracker interface {
	Get(ctx context.Context, id string) (PollState, bool, error)
	Set(ctx context.Context, id string, state PollState, ttlSec int) error
}
