package transport

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrBaseURL           = errors.New("invalid base url")
	ErrMalformedResponse = errors.New("malformed response")
)

// StatusError is returned for a non 2xx response that does not carry an error message.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}

	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the request may succeed if retried.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}
