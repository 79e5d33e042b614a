package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"hotel_intake/internal/app"
	"hotel_intake/internal/domain"
)

type Handlers struct {
	Sub   *app.SubmissionService
	Watch *app.WatchManager
	Pres  *app.Presenter
	Store domain.RequestStore
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	Code   string `json:"code,omitempty"`
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	writeProblemCode(w, status, title, detail, "")
}

func writeProblemCode(w http.ResponseWriter, status int, title, detail, code string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail, Code: code}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// root is the view entry point: the request_id query parameter is the entire
// addressable state, so its presence redirects to the bookmarkable tracking
// URL and its absence describes the intake form.
func (h *Handlers) root(w http.ResponseWriter, r *http.Request) {
	if id := r.URL.Query().Get("request_id"); id != "" {
		http.Redirect(w, r, "/requests/"+id, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"fields":        []string{"destination", "email", "nickname", "check_in", "check_out", "hotel_brands"},
		"brand_options": domain.CanonicalBrands,
		"submit":        "POST /requests",
	})
}

type submitBody struct {
	Destination string   `json:"destination"`
	Email       string   `json:"email"`
	Nickname    string   `json:"nickname"`
	CheckIn     string   `json:"check_in"`
	CheckOut    string   `json:"check_out"`
	HotelBrands []string `json:"hotel_brands"`
}

func parseDate(s string) *time.Time {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &t
}

func (h *Handlers) submit(w http.ResponseWriter, r *http.Request) {
	var in app.SubmissionInput
	isForm := strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded")
	if isForm {
		if err := r.ParseForm(); err != nil {
			writeProblem(w, http.StatusBadRequest, "Bad Request", "malformed form body")
			return
		}
		in = app.SubmissionInput{
			Destination: r.PostForm.Get("destination"),
			Email:       r.PostForm.Get("email"),
			Nickname:    r.PostForm.Get("nickname"),
			CheckIn:     parseDate(r.PostForm.Get("check_in")),
			CheckOut:    parseDate(r.PostForm.Get("check_out")),
			Brands:      r.PostForm["hotel_brands"],
		}
	} else {
		var body submitBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeProblem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
			return
		}
		in = app.SubmissionInput{
			Destination: body.Destination,
			Email:       body.Email,
			Nickname:    body.Nickname,
			CheckIn:     parseDate(body.CheckIn),
			CheckOut:    parseDate(body.CheckOut),
			Brands:      body.HotelBrands,
		}
	}

	meta := app.Meta{IP: remoteIP(r), UserAgent: r.UserAgent(), Source: "web"}
	id, err := h.Sub.Submit(r.Context(), in, meta)
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeProblemCode(w, http.StatusUnprocessableEntity, "Invalid Submission", ve.Message, string(ve.Code))
			return
		}
		if errors.Is(err, domain.ErrSubmissionFailed) {
			log.Error().Err(err).Msg("submission persist failed")
			writeProblem(w, http.StatusServiceUnavailable, "Submission Failed", "We could not save your request. Please try again.")
			return
		}
		log.Error().Err(err).Msg("submission failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	loc := "/requests/" + id
	w.Header().Set("Location", loc)
	if isForm {
		// browsers resume via the redirect target; reloading it never re-submits
		http.Redirect(w, r, loc, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"request_id": id})
}

type trackResponse struct {
	RequestID   string          `json:"request_id"`
	State       string          `json:"state"`
	Ready       bool            `json:"ready"`
	Progress    float64         `json:"progress"`
	WorkbookURL string          `json:"workbook_url,omitempty"`
	Summary     summaryResponse `json:"summary"`
}

type summaryResponse struct {
	Destination string `json:"destination"`
	CheckIn     string `json:"check_in"`
	CheckOut    string `json:"check_out"`
}

func (h *Handlers) track(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sm, err := h.Store.Summary(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Not Found", "unknown request identifier")
			return
		}
		writeProblem(w, http.StatusServiceUnavailable, "Store Unavailable", "Please try again.")
		return
	}

	snap, err := h.Watch.Check(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Not Found", "unknown request identifier")
			return
		}
		writeProblem(w, http.StatusServiceUnavailable, "Store Unavailable", "Please try again.")
		return
	}

	writeJSON(w, http.StatusOK, trackResponse{
		RequestID:   id,
		State:       string(snap.State),
		Ready:       snap.State == domain.PollReady,
		Progress:    snap.Progress,
		WorkbookURL: snap.WorkbookURL,
		Summary: summaryResponse{
			Destination: sm.Destination,
			CheckIn:     sm.CheckIn.Format("2006-01-02"),
			CheckOut:    sm.CheckOut.Format("2006-01-02"),
		},
	})
}

// events streams status snapshots until the watch settles or the client
// disconnects; disconnecting detaches the observer and, when it is the last
// one, stops the poll loop.
func (h *Handlers) events(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.Store.Summary(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Not Found", "unknown request identifier")
			return
		}
		writeProblem(w, http.StatusServiceUnavailable, "Store Unavailable", "Please try again.")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming Unsupported", "")
		return
	}

	sub, err := h.Watch.Subscribe(r.Context(), id)
	if err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Store Unavailable", "Please try again.")
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, open := <-sub.Updates():
			if !open {
				return
			}
			payload, _ := json.Marshal(map[string]any{
				"request_id":   id,
				"state":        string(snap.State),
				"ready":        snap.State == domain.PollReady,
				"progress":     snap.Progress,
				"workbook_url": snap.WorkbookURL,
			})
			if _, err := w.Write([]byte("data: " + string(payload) + "\n\n")); err != nil {
				return
			}
			flusher.Flush()
			if snap.State.Terminal() {
				return
			}
		}
	}
}

func parseFloatParam(q string) *float64 {
	if q == "" {
		return nil
	}
	v, err := strconv.ParseFloat(q, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseIntParam(q string) *int {
	if q == "" {
		return nil
	}
	v, err := strconv.Atoi(q)
	if err != nil {
		return nil
	}
	return &v
}

func (h *Handlers) results(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snap, err := h.Watch.Check(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Not Found", "unknown request identifier")
			return
		}
		writeProblem(w, http.StatusServiceUnavailable, "Store Unavailable", "Please try again.")
		return
	}
	if snap.State != domain.PollReady {
		writeProblem(w, http.StatusConflict, "Results Not Ready", "The rate search has not finished for this request.")
		return
	}

	q := r.URL.Query()
	f := app.Filters{
		MinPrice:    parseFloatParam(q.Get("min_price")),
		MaxPrice:    parseFloatParam(q.Get("max_price")),
		MinRating:   parseFloatParam(q.Get("min_rating")),
		MaxDistance: parseFloatParam(q.Get("max_distance")),
		MinReviews:  parseIntParam(q.Get("min_reviews")),
		MinDiscount: parseFloatParam(q.Get("min_discount")),
		Sort:        q.Get("sort"),
	}

	page, err := h.Pres.Present(r.Context(), id, f)
	if err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Store Unavailable", "Please try again.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"request_id": id,
		"total":      page.Total,
		"count":      len(page.Rows),
		"rows":       page.Rows,
	})
}
