package webhook_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"hotel_intake/internal/adapters/webhook"
	"hotel_intake/internal/domain"
)

func sampleRequest() domain.HotelRequest {
	nick := "trip"
	return domain.HotelRequest{
		ID:          "11111111-2222-3333-4444-555555555555",
		CreatedAt:   time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC),
		Destination: "Paris",
		Email:       "a@b.com",
		Nickname:    &nick,
		CheckIn:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		CheckOut:    time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC),
		Brands:      []string{domain.CanonicalBrands[1]},
		Source:      "web",
	}
}

func TestNotify_RetriesThenSuccess(t *testing.T) {
	var hits int32
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&hits, 1) {
		case 1, 2:
			// two transient failures
			w.WriteHeader(500)
		default:
			_ = json.NewDecoder(r.Body).Decode(&got)
			w.WriteHeader(200)
		}
	}))
	defer ts.Close()

	cl := webhook.New(ts.URL, 2*time.Second, 100) // high RPS for tests
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cl.Notify(ctx, sampleRequest()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if atomic.LoadInt32(&hits) < 3 {
		t.Fatalf("expected at least 3 calls due to retries, got %d", hits)
	}
	if got["request_id"] != "11111111-2222-3333-4444-555555555555" {
		t.Fatalf("unexpected request_id: %v", got["request_id"])
	}
	if got["destination"] != "Paris" || got["check_in"] != "2025-06-01" || got["check_out"] != "2025-06-05" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestNotify_NonRetryableStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad payload", http.StatusBadRequest)
	}))
	defer ts.Close()

	cl := webhook.New(ts.URL, time.Second, 100)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := cl.Notify(ctx, sampleRequest()); err == nil {
		t.Fatalf("expected error for 400")
	}
}
