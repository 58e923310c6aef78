package client

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound matches any TransportError caused by a 404 response.
var ErrNotFound = errors.New("student not found")

// Reason classifies a TransportError.
type Reason string

const (
	// ReasonNetwork means no response was received.
	ReasonNetwork Reason = "network"
	// ReasonStatus means the service answered with a non-2xx status.
	ReasonStatus Reason = "non2xx"
)

// TransportError is returned for every failed remote call. The response
// body of a failed call is never parsed; the status code is the only signal.
type TransportError struct {
	Op         string
	Reason     Reason
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.Reason == ReasonStatus {
		return fmt.Sprintf("%s: status %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Reason, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

//nolint:errorlint
func (e *TransportError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}
