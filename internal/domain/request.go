package domain

import "time"

// CanonicalBrands is the closed set of brand groups a request may name. The
// strings are the exact options the intake form offers and the downstream
// rate search expects; membership is checked verbatim, never fuzzily.
var CanonicalBrands = []string{
	"IHG (Inter Continental - Crowne Plaza - Holiday Inn - etc)",
	"Hilton (NoMad - DoubleTree - Embassy Suites - etc)",
	"Marriott (Ritz-Carlton - St. Regis - Westin - etc)",
	"Hyatt (Regency - The Standard - Grand Hyatt - etc)",
}

// KnownBrand reports whether b is one of the canonical brand groups.
func KnownBrand(b string) bool {
	for _, c := range CanonicalBrands {
		if b == c {
			return true
		}
	}
	return false
}

// HotelRequest is the sole persistent entity: one row per submitted request,
// created once, never deleted. Processed, WorkbookURL and WorkbookID belong
// to the external producer, which mutates the row exactly once when the rate
// search finishes; this system only ever reads them.
type HotelRequest struct {
	ID           string
	CreatedAt    time.Time // UTC, set at submission
	Destination  string    // trimmed + title-cased
	Email        string
	Nickname     *string
	CheckIn      time.Time // calendar date
	CheckOut     time.Time // calendar date, strictly after CheckIn
	Brands       []string  // members of CanonicalBrands, duplicates allowed
	Source       string    // submission channel, e.g. "web"
	SubmissionIP *string
	UAHash       *string // hex SHA-256 of the User-Agent, never the raw value
	Processed    bool
	WorkbookURL  *string
	WorkbookID   *string
}

// RequestStatus is the poll read model. Ready derives from workbook_url
// alone; Processed is carried for logging but never gates readiness.
type RequestStatus struct {
	Ready       bool
	WorkbookURL string
	Processed   bool
	CreatedAt   time.Time
}

// RequestSummary is the display read model for the tracking view.
type RequestSummary struct {
	Destination string
	CheckIn     time.Time
	CheckOut    time.Time
}
