package client

import (
	"fmt"
	"net/http"

	"filecat/internal/filecat"
)

// TransportError is a failure to reach the server at all: connection
// refused, DNS, timeout, broken stream.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError is a non-2xx response carrying the server's error body.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Is lets callers test API errors against the core sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case filecat.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case filecat.ErrValidation:
		return e.StatusCode == http.StatusBadRequest
	case filecat.ErrShuttingDown:
		return e.StatusCode == http.StatusServiceUnavailable
	}
	return false
}
