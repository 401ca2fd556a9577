package ingestion

import (
	"errors"
	"fmt"
	"time"
)

// ErrCorruptState marks an existing stored price that is no longer a finite
// number. Reconciliation refuses to overwrite such a record silently.
var ErrCorruptState = errors.New("stored price is not a finite number")

// ErrRunInProgress is reported when a tick fires while the previous run of the
// same domain has not finished.
var ErrRunInProgress = errors.New("previous run still in progress")

// TimeoutError is returned by the timeout guard when a source did not settle
// within its deadline. The underlying fetch is abandoned, not cancelled.
type TimeoutError struct {
	Label string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout: %s after %s", e.Label, e.After)
}

// RateLimitError wraps an upstream rate-limit rejection. RetryAfter carries
// the server-provided hint when one was present; zero means no hint.
type RateLimitError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rate limited: %v", e.Err)
	}
	return "rate limited"
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}
