package sdk

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNoCredentials is returned by CredentialStore.Load when no token
	// pair has been saved, and by session operations that require one.
	ErrNoCredentials = errors.New("no stored credentials")

	// ErrInvalidCredentials is returned when the backend rejects an
	// email/password combination.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrEmailExists is returned when registration conflicts with an
	// existing account.
	ErrEmailExists = errors.New("email already registered")

	// ErrNotFound is returned when a simulation lookup matches no user.
	ErrNotFound = errors.New("not found")

	// ErrSessionInvalidated is returned by operations that resolve after
	// the session has been torn down.
	ErrSessionInvalidated = errors.New("session invalidated")
)

// APIError carries a non-2xx response from the SIP backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("sip: server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("sip: server returned %d: %s", e.StatusCode, e.Message)
}

// IsUnauthorized reports whether err is an APIError with status 401.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}
