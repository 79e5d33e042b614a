package app

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"hotel_intake/internal/domain"
)

// currencySymbols is the fixed code→symbol table. Unknown codes render as
// "CODE amount"; there is no conversion anywhere, only prefixing.
var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CAD": "C$",
	"AUD": "A$",
	"CHF": "CHF ",
	"AED": "AED ",
}

// Filters are view-state only: numeric ranges over the coerced columns plus
// a single sort key ("-" prefix for descending). Zero value means "no
// filtering, store order".
type Filters struct {
	MinPrice    *float64
	MaxPrice    *float64
	MinRating   *float64
	MaxDistance *float64
	MinReviews  *int
	MinDiscount *float64
	Sort        string // price|rating|distance|reviews|discount|name
}

// PresentedRow is one result after the display transforms. Raw numerics are
// kept beside their rendered forms so the view can re-sort without parsing
// strings back.
type PresentedRow struct {
	Name          string  `json:"name"`
	Brand         string  `json:"brand"`
	Price         float64 `json:"price"`
	PriceDisplay  string  `json:"price_display"`
	DiscountPct   float64 `json:"discount_pct"`
	RetailPrice   float64 `json:"retail_price"`
	RetailDisplay string  `json:"retail_display"`
	Rating        float64 `json:"rating"`
	Stars         string  `json:"stars"`
	ReviewCount   int     `json:"review_count"`
	Distance      float64 `json:"distance"`
	DistanceUnit  string  `json:"distance_unit"`
	Currency      string  `json:"currency"`
	BookingURL    string  `json:"booking_url"`
}

type ResultsPage struct {
	Rows  []PresentedRow `json:"rows"`
	Total int            `json:"total"` // before filtering
}

type Presenter struct {
	store domain.RequestStore
}

func NewPresenter(store domain.RequestStore) *Presenter { return &Presenter{store: store} }

// Present fetches the ready result set once and applies the purely
// presentational transforms. Malformed row content never errors, it coerces
// to defaults; only a store failure propagates. Same inputs always produce
// the same order: the sort is stable and ties keep store order.
func (p *Presenter) Present(ctx context.Context, id string, f Filters) (ResultsPage, error) {
	raw, err := p.store.Results(ctx, id)
	if err != nil {
		return ResultsPage{}, err
	}

	rows := make([]PresentedRow, 0, len(raw))
	for _, r := range raw {
		rows = append(rows, presentRow(r))
	}
	total := len(rows)
	rows = applyFilters(rows, f)
	sortRows(rows, f.Sort)
	return ResultsPage{Rows: rows, Total: total}, nil
}

func presentRow(r domain.ResultRow) PresentedRow {
	dist, unit := parseDistance(r.Distance)
	return PresentedRow{
		Name:          r.HotelName,
		Brand:         r.Brand,
		Price:         r.Price,
		PriceDisplay:  money(r.Currency, r.Price),
		DiscountPct:   r.DiscountPct,
		RetailPrice:   r.RetailPrice,
		RetailDisplay: money(r.Currency, r.RetailPrice),
		Rating:        r.Rating,
		Stars:         stars(r.Rating),
		ReviewCount:   r.ReviewCount,
		Distance:      dist,
		DistanceUnit:  unit,
		Currency:      r.Currency,
		BookingURL:    r.BookingURL,
	}
}

// money renders "$120" / "€99.5"; no padding, no trailing zeros.
func money(code string, amount float64) string {
	sym, ok := currencySymbols[strings.ToUpper(code)]
	if !ok {
		if code == "" {
			sym = ""
		} else {
			sym = code + " "
		}
	}
	return sym + strconv.FormatFloat(amount, 'f', -1, 64)
}

// stars renders a 0..5 float as five glyphs with a half star for fractions
// in [.25,.75), e.g. 4.5 → "★★★★½", 3.1 → "★★★☆☆".
func stars(r float64) string {
	if r < 0 {
		r = 0
	}
	if r > 5 {
		r = 5
	}
	full := int(r)
	frac := r - float64(full)
	half := false
	switch {
	case frac >= 0.75:
		full++
	case frac >= 0.25:
		half = true
	}
	var b strings.Builder
	for i := 0; i < full; i++ {
		b.WriteRune('★')
	}
	used := full
	if half {
		b.WriteRune('½')
		used++
	}
	for i := used; i < 5; i++ {
		b.WriteRune('☆')
	}
	return b.String()
}

// parseDistance splits a leading-number-plus-unit string ("2.3 mi") into its
// value and unit. Anything malformed coerces to 0 with an empty unit.
func parseDistance(s string) (float64, string) {
	s = strings.TrimSpace(s)
	i := 0
	for i < len(s) && (s[i] == '.' || (s[i] >= '0' && s[i] <= '9')) {
		i++
	}
	if i == 0 {
		return 0, ""
	}
	v, err := strconv.ParseFloat(s[:i], 64)
	if err != nil {
		return 0, ""
	}
	return v, strings.TrimSpace(s[i:])
}

func applyFilters(rows []PresentedRow, f Filters) []PresentedRow {
	out := rows[:0]
	for _, r := range rows {
		if f.MinPrice != nil && r.Price < *f.MinPrice {
			continue
		}
		if f.MaxPrice != nil && r.Price > *f.MaxPrice {
			continue
		}
		if f.MinRating != nil && r.Rating < *f.MinRating {
			continue
		}
		if f.MaxDistance != nil && r.Distance > *f.MaxDistance {
			continue
		}
		if f.MinReviews != nil && r.ReviewCount < *f.MinReviews {
			continue
		}
		if f.MinDiscount != nil && r.DiscountPct < *f.MinDiscount {
			continue
		}
		out = append(out, r)
	}
	return out
}

func sortRows(rows []PresentedRow, key string) {
	if key == "" {
		return
	}
	desc := strings.HasPrefix(key, "-")
	key = strings.TrimPrefix(key, "-")

	var less func(a, b PresentedRow) bool
	switch key {
	case "price":
		less = func(a, b PresentedRow) bool { return a.Price < b.Price }
	case "rating":
		less = func(a, b PresentedRow) bool { return a.Rating < b.Rating }
	case "distance":
		less = func(a, b PresentedRow) bool { return a.Distance < b.Distance }
	case "reviews":
		less = func(a, b PresentedRow) bool { return a.ReviewCount < b.ReviewCount }
	case "discount":
		less = func(a, b PresentedRow) bool { return a.DiscountPct < b.DiscountPct }
	case "name":
		less = func(a, b PresentedRow) bool { return a.Name < b.Name }
	default:
		return // unknown key keeps store order
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if desc {
			return less(rows[j], rows[i])
		}
		return less(rows[i], rows[j])
	})
}
