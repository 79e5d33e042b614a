package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks a lookup for an identifier the store has no row for.
	ErrNotFound = errors.New("request not found")

	// ErrSubmissionFailed wraps a store failure on the write path. The user
	// sees a generic "try again"; the underlying cause stays in the chain.
	ErrSubmissionFailed = errors.New("submission failed")
)

// ValidationCode tags each intake rule so callers branch on the tag, never on
// message text.
type ValidationCode string

const (
	CodeEmptyDestination ValidationCode = "EmptyDestination"
	CodeInvalidEmail     ValidationCode = "InvalidEmail"
	CodeMissingDate      ValidationCode = "MissingDate"
	CodeInvalidDateRange ValidationCode = "InvalidDateRange"
	CodeNoBrandSelected  ValidationCode = "NoBrandSelected"
	CodeUnknownBrand     ValidationCode = "UnknownBrand"
)

// ValidationError carries one stable code and one user-facing message. It is
// always recovered at the submission boundary and never propagates past it.
type ValidationError struct {
	Code    ValidationCode
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// StoreError wraps any connectivity or query failure from the request store.
// Retry policy belongs to the caller; the store itself never retries.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }
