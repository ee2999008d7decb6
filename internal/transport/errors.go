package transport

import (
	"errors"
	"fmt"
)

// ErrEmptyResponse is wrapped when the endpoint answers 2xx with no body.
var ErrEmptyResponse = errors.New("empty response body")

// TransportError reports a failure to move bytes: connection, timeout, TLS,
// a non-2xx status, an empty body, or a payload over the size limit.
type TransportError struct {
	Op         string
	URL        string
	StatusCode int
	Oversized  bool
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("transport %s %s: http status %d", e.Op, e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("transport %s %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("transport %s %s: failed", e.Op, e.URL)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the same request may succeed.
// Oversized payloads fail the same way every time.
func (e *TransportError) Temporary() bool {
	return !e.Oversized
}
