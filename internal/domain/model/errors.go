package model

import (
	"errors"
	"fmt"
)

var (
	ErrLocationNotFound = errors.New("location not found")
	ErrInvalidDomain    = errors.New("invalid business domain")
	ErrCancelled        = errors.New("analysis cancelled")
	// ErrNoCategories is returned when every category of a tolerant scan failed.
	ErrNoCategories = errors.New("no category could be fetched")
)

// ProviderPageError means a single page request was answered with a
// non-success status. Pagination for the category stops; collected places are kept.
type ProviderPageError struct {
	Provider   string
	Category   string
	Offset     int
	StatusCode int
	Err        error
}

func (e *ProviderPageError) Error() string {
	msg := fmt.Sprintf("%s: page error for %q at offset %d", e.Provider, e.Category, e.Offset)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderPageError) Unwrap() error { return e.Err }

// TransportError is a network level failure talking to a provider.
type TransportError struct {
	Provider string
	Op       string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func IsProviderPageError(err error) bool {
	var pe *ProviderPageError
	return errors.As(err, &pe)
}
