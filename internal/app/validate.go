package app

import (
	"net/mail"
	"strings"
	"time"
	"unicode"

	"hotel_intake/internal/domain"
)

// SubmissionInput is the raw form surface before any rule has run. Dates are
// pointers because an unfilled date control posts nothing at all.
type SubmissionInput struct {
	Destination string
	Email       string
	Nickname    string
	CheckIn     *time.Time
	CheckOut    *time.Time
	Brands      []string
}

// Draft is a validated, normalized submission that has not yet been assigned
// an identifier or a creation timestamp.
type Draft struct {
	Destination string
	Email       string
	Nickname    *string
	CheckIn     time.Time
	CheckOut    time.Time
	Brands      []string
}

// ValidateSubmission applies the intake rules in a fixed order, first failure
// wins: destination, email, date presence, date order, brand selection, brand
// membership. Pure function: no side effects, no logging, and the returned
// error is always a *domain.ValidationError.
func ValidateSubmission(in SubmissionInput) (Draft, error) {
	dest := strings.TrimSpace(in.Destination)
	if dest == "" {
		return Draft{}, &domain.ValidationError{Code: domain.CodeEmptyDestination, Message: "Destination is required."}
	}
	dest = titleCase(dest)

	email := strings.TrimSpace(in.Email)
	if !validEmail(email) {
		return Draft{}, &domain.ValidationError{Code: domain.CodeInvalidEmail, Message: "Enter a valid email address."}
	}

	if in.CheckIn == nil || in.CheckOut == nil {
		return Draft{}, &domain.ValidationError{Code: domain.CodeMissingDate, Message: "Both check-in and check-out dates are required."}
	}
	if !in.CheckOut.After(*in.CheckIn) {
		return Draft{}, &domain.ValidationError{Code: domain.CodeInvalidDateRange, Message: "Check-out must be after check-in."}
	}

	if len(in.Brands) == 0 {
		return Draft{}, &domain.ValidationError{Code: domain.CodeNoBrandSelected, Message: "Select at least one hotel brand."}
	}
	var unknown []string
	for _, b := range in.Brands {
		if !domain.KnownBrand(b) {
			unknown = append(unknown, b)
		}
	}
	if len(unknown) > 0 {
		return Draft{}, &domain.ValidationError{
			Code:    domain.CodeUnknownBrand,
			Message: "Unknown brand(s): " + strings.Join(unknown, ", "),
		}
	}

	d := Draft{
		Destination: dest,
		Email:       email,
		CheckIn:     *in.CheckIn,
		CheckOut:    *in.CheckOut,
		Brands:      append([]string(nil), in.Brands...), // duplicates allowed, input never aliased
	}
	if nick := strings.TrimSpace(in.Nickname); nick != "" {
		d.Nickname = &nick
	}
	return d, nil
}

// titleCase capitalizes the first letter of every letter run and lowercases
// the rest, so "new york" -> "New York" and "o'neil" -> "O'Neil". Runs are
// delimited by any non-letter, which keeps the behavior per-word rather than
// language-aware.
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}

// validEmail accepts a bare local@domain address with at least one dot in the
// domain. Display names ("Bob <a@b.com>") are rejected on purpose.
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	if at < 0 {
		return false
	}
	return strings.Contains(s[at+1:], ".")
}
