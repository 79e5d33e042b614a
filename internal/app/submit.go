package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"hotel_intake/internal/domain"
)

// Meta is the per-submission transport context recorded alongside the form
// fields. The raw User-Agent is never persisted, only its hash.
type Meta struct {
	IP        string
	UserAgent string
	Source    string
}

type SubmissionService struct {
	store         domain.RequestStore
	notifier      domain.Notifier // nil disables notifications
	source        string
	notifyTimeout time.Duration
}

func NewSubmissionService(store domain.RequestStore, notifier domain.Notifier, source string, notifyTimeout time.Duration) *SubmissionService {
	if source == "" {
		source = "web"
	}
	if notifyTimeout <= 0 {
		notifyTimeout = 10 * time.Second
	}
	return &SubmissionService{store: store, notifier: notifier, source: source, notifyTimeout: notifyTimeout}
}

// Submit runs validate → persist → best-effort notify and returns the fresh
// identifier. A validation failure comes back untouched and causes no side
// effects; a store failure surfaces as ErrSubmissionFailed with the cause in
// the chain; a notification failure is logged at warn and never affects the
// already-committed row.
func (s *SubmissionService) Submit(ctx context.Context, in SubmissionInput, meta Meta) (string, error) {
	d, err := ValidateSubmission(in)
	if err != nil {
		return "", err
	}

	r := domain.HotelRequest{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		Destination: d.Destination,
		Email:       d.Email,
		Nickname:    d.Nickname,
		CheckIn:     d.CheckIn,
		CheckOut:    d.CheckOut,
		Brands:      d.Brands,
		Source:      s.source,
	}
	if meta.Source != "" {
		r.Source = meta.Source
	}
	if meta.IP != "" {
		ip := meta.IP
		r.SubmissionIP = &ip
	}
	if meta.UserAgent != "" {
		sum := sha256.Sum256([]byte(meta.UserAgent))
		h := hex.EncodeToString(sum[:])
		r.UAHash = &h
	}

	if err := s.store.Create(ctx, r); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrSubmissionFailed, err)
	}

	if s.notifier != nil {
		// Detached from the request context so a client disconnect after the
		// row is committed cannot abort delivery mid-flight.
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
		defer cancel()
		if err := s.notifier.Notify(nctx, r); err != nil {
			log.Warn().Err(err).Str("request_id", r.ID).Msg("submission notification failed")
		}
	}

	return r.ID, nil
}
