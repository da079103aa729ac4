package httpclient

import (
	"errors"
	"fmt"
	"time"
)

// RetryableError reports that the client exhausted its retry budget.
type RetryableError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *RetryableError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("HTTP %d: %s (retry after %v)", e.StatusCode, e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// StatusCodeOf extracts the HTTP status carried by err, if any.
func StatusCodeOf(err error) (int, bool) {
	var re *RetryableError
	if errors.As(err, &re) {
		return re.StatusCode, true
	}
	return 0, false
}
