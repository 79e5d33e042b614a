package webhook

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"hotel_intake/internal/adapters/observability"
	"hotel_intake/internal/domain"
)

// Client posts submission events to the downstream sink. Delivery is
// best-effort: callers log a failed Notify and move on, the committed
// request row is the durable record either way.
type Client struct {
	url string
	hc  *http.Client
	rl  *rate.Limiter
}

func New(url string, timeout time.Duration, rps int) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		url: url,
		hc:  &http.Client{Timeout: timeout},
		rl:  rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// event mirrors the original submission payload field for field.
type event struct {
	RequestID   string   `json:"request_id"`
	CreatedTS   string   `json:"created_ts"`
	Destination string   `json:"destination"`
	Email       string   `json:"email"`
	Nickname    string   `json:"nickname,omitempty"`
	CheckIn     string   `json:"check_in"`
	CheckOut    string   `json:"check_out"`
	HotelBrands []string `json:"hotel_brands"`
	Source      string   `json:"source"`
}

func (c *Client) Notify(ctx context.Context, r domain.HotelRequest) error {
	ev := event{
		RequestID:   r.ID,
		CreatedTS:   r.CreatedAt.UTC().Format(time.RFC3339),
		Destination: r.Destination,
		Email:       r.Email,
		CheckIn:     r.CheckIn.Format("2006-01-02"),
		CheckOut:    r.CheckOut.Format("2006-01-02"),
		HotelBrands: r.Brands,
		Source:      r.Source,
	}
	if r.Nickname != nil {
		ev.Nickname = *r.Nickname
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return c.post(ctx, body)
}

// post performs a POST with client-side rate limiting and retries on 429 and
// transient 5xx, honoring Retry-After when provided. Any 2xx/3xx counts as
// delivered.
func (c *Client) post(ctx context.Context, body []byte) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		// build a fresh request each attempt
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "hotel-intake/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("webhook", "notify", 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal("webhook", "notify", resp.StatusCode, time.Since(start))

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 400:
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil

		case resp.StatusCode == http.StatusTooManyRequests ||
			resp.StatusCode == http.StatusInternalServerError ||
			resp.StatusCode == http.StatusBadGateway ||
			resp.StatusCode == http.StatusServiceUnavailable ||
			resp.StatusCode == http.StatusGatewayTimeout:
			// Prefer server-provided Retry-After; otherwise exponential backoff.
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("sink %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			// read a small error body for diagnostics
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("sink status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	// seconds form
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	// HTTP-date form
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff returns an exponential backoff delay with concurrency-safe jitter.
// i = retry attempt (0,1,2,...). Base doubles each attempt (200ms, 400ms, 800ms...),
// with up to +50% random jitter to avoid thundering herds.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0                  // 0..1
	j := time.Duration(0.5 * f * float64(base)) // up to +50%
	return base + j
}
