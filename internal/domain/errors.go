package domain

import (
	"fmt"
	"time"
)

// ValidationError is returned when user input cannot describe a loadable window.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// FetchError records a failed page request for an episode.
type FetchError struct {
	Episode string
	Symbol  string
	Page    int // zero-based page index
	From    time.Time
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch page %d for %s from %s (episode %s): %v",
		e.Page, e.Symbol, e.From.UTC().Format(time.RFC3339), e.Episode, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
