package dispatch

import (
	"errors"
	"fmt"
)

// ErrExhausted is matched by ExhaustedError via errors.Is().
var ErrExhausted = errors.New("all providers exhausted")

// ExhaustedError is the single terminal dispatch failure: every candidate
// across all pools failed or was skipped. It carries the full attempt log
// for diagnostics. There is no retry loop above the engine; callers surface
// this to the user and may retry later.
type ExhaustedError struct {
	// ID is the dispatch identifier, matching the journal entry.
	ID string

	// Attempts is the ordered attempt log.
	Attempts []Attempt
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all providers exhausted after %d attempts", len(e.Attempts))
}

// Is implements error matching for errors.Is().
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}
