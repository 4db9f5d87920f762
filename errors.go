package docgate

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("not found")
	// ErrInternal is returned when an internal error occurs
	ErrInternal = errors.New("internal error")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized is returned when an inbound bearer token is missing or wrong
	ErrUnauthorized = errors.New("unauthorized")
	// ErrMisconfigured is returned when required server configuration is absent
	ErrMisconfigured = errors.New("server misconfigured")
)

// Credential resolution errors.
var (
	// ErrNoCredentialFound is returned when every provider in a chain reports absent.
	ErrNoCredentialFound = errors.New("no credential found")
	// ErrProvider is returned when a provider fails outright instead of reporting absent.
	ErrProvider = errors.New("credential provider failed")
)

// Signing errors. Both ErrMalformedCredential and ErrUnsupportedHeader wrap ErrSigningFailed.
var (
	ErrSigningFailed       = errors.New("signing failed")
	ErrMalformedCredential = fmt.Errorf("%w: malformed credential", ErrSigningFailed)
	ErrUnsupportedHeader   = fmt.Errorf("%w: unsupported header", ErrSigningFailed)
)

// ErrSecretUnavailable is returned when a scoped token cannot be obtained.
var ErrSecretUnavailable = errors.New("scoped token unavailable")

// maxBackendErrorBody bounds how much of a failed backend response is kept.
const maxBackendErrorBody = 1024

// BackendError reports a non-success status from object storage.
type BackendError struct {
	StatusCode int
	// Body holds at most the first 1 KiB of the backend response.
	Body []byte
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend returned status %d", e.StatusCode)
}

// IsNotFound reports whether the backend answered 404.
func (e *BackendError) IsNotFound() bool {
	return e.StatusCode == 404
}
