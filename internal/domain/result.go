package domain

// ResultRow is one matched hotel offer from the producer-owned results view.
// The producer controls the content end to end, so every field is coerced
// defensively on read: missing numerics become zero, missing strings empty.
type ResultRow struct {
	HotelName   string
	Brand       string
	Distance    string // leading-number-plus-unit string, e.g. "2.3 mi"
	Price       float64
	DiscountPct float64
	RetailPrice float64
	Rating      float64 // 0..5
	ReviewCount int
	Currency    string // ISO code, e.g. "USD"
	BookingURL  string
}
