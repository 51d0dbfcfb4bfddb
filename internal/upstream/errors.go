package upstream

import (
	"errors"
	"fmt"

	"github.com/tunetrail/tunetrail/internal/domain/errs"
)

var (
	// ErrUnsupportedMethod is returned before any network call for methods
	// outside GET, DELETE, POST, PUT and PATCH.
	ErrUnsupportedMethod = errs.New(errs.KindClientInput, "unsupported_method", "unsupported HTTP method")

	// ErrBodyNotAllowed is returned when a GET or DELETE carries a form or
	// JSON body.
	ErrBodyNotAllowed = errs.New(errs.KindClientInput, "body_not_allowed", "request body not allowed for method")

	// ErrExhausted means every attempt was consumed by rate limits or
	// transient faults. It never wraps the last transient cause.
	ErrExhausted = errs.New(errs.KindUpstreamExhausted, "upstream_exhausted", "rate limit exceeded or unexpected error")

	// ErrInvalidResponse wraps a 2xx whose body is not JSON.
	ErrInvalidResponse = errs.New(errs.KindInternal, "upstream_invalid_response", "upstream returned a non-JSON body")

	// ErrTransport wraps transport failures that are not worth retrying
	// (bad URL, TLS handshake, request build errors).
	ErrTransport = errs.New(errs.KindInternal, "upstream_transport", "upstream request failed")
)

// StatusError is a non-2xx, non-retryable provider response.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s: status %d", e.Provider, e.StatusCode)
}

// IsStatus reports whether err is a *StatusError with the given code.
func IsStatus(err error, code int) bool {
	se, ok := AsStatus(err)
	return ok && se.StatusCode == code
}

// AsStatus unwraps a *StatusError.
func AsStatus(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
