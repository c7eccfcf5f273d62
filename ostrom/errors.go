package ostrom

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuth is a 401/403 class failure, it will not heal without new credentials.
	ErrAuth = errors.New("ostrom authentication failed")
	// ErrConnection covers timeouts, transport errors and unexpected responses.
	ErrConnection = errors.New("ostrom connection failed")
)

// APIError is a non successful response from the Ostrom API.
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ostrom api error (%d) at %s: %s: %v", e.StatusCode, e.Endpoint, e.Message, e.Err)
	}
	return fmt.Sprintf("ostrom api error (%d) at %s: %s", e.StatusCode, e.Endpoint, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Is classifies the error as ErrAuth or ErrConnection.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrAuth:
		return IsAuthStatus(e.StatusCode)
	case ErrConnection:
		return !IsAuthStatus(e.StatusCode)
	}
	return false
}

func IsAuthStatus(statusCode int) bool {
	return statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden
}

// RejectedError tells why a single raw record could not be parsed.
type RejectedError struct {
	Field  string
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("rejected field %q: %s", e.Field, e.Reason)
}
