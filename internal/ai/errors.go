package ai

import (
	"context"
	"errors"
	"fmt"
)

// StatusError is a non-200 reply from a provider API.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	return fmt.Sprintf("%s API error: status %d: %s", e.Provider, e.Code, body)
}

// isRetriableError reports whether another provider (or a later attempt)
// may succeed where this one failed.
func isRetriableError(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == 429 || se.Code >= 500
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrNoProvider) {
		return false
	}
	// Transport failures: timeouts, refused or reset connections, DNS.
	return true
}

func isAuthError(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == 401 || se.Code == 403
	}
	return false
}
