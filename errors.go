package adopt

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidToken is returned when a caller tries to persist a
	// credential that fails the validity check (empty, whitespace, or the
	// literal "null"/"undefined" that a broken frontend serializer leaves
	// behind).
	ErrInvalidToken = errors.New("invalid access token")

	// ErrInvalidCredentials covers a 401 on the login endpoint itself.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrEmailNotVerified is returned on login when the backend answers
	// 403 with the requiresVerification flag. It is not a hard failure:
	// the caller is expected to route the user into the verification flow.
	ErrEmailNotVerified = errors.New("email not verified")

	// ErrSessionExpired means the refresh protocol ran and failed, or no
	// refresh token was available. The session has been cleared.
	ErrSessionExpired = errors.New("session expired")

	// ErrAccessDenied covers a 403 on any authenticated request.
	ErrAccessDenied = errors.New("access denied")

	// ErrNotFound covers a 404 from the backend.
	ErrNotFound = errors.New("resource not found")

	// ErrServer covers any 5xx response.
	ErrServer = errors.New("server error")
)

// APIError is the backend's error envelope, decoded from failure
// responses so the caller sees the server's message rather than a bare
// status code.
type APIError struct {
	StatusCode           int    `json:"-"`
	Message              string `json:"message"`
	RequiresVerification bool   `json:"requiresVerification,omitempty"`
	Token                string `json:"token,omitempty"`
	Email                string `json:"email,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: %s (status %d)", e.Message, e.StatusCode)
}

// Unwrap maps the status code onto the sentinel taxonomy so callers can
// use errors.Is without inspecting codes.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == 401:
		return ErrInvalidCredentials
	case e.StatusCode == 403 && e.RequiresVerification:
		return ErrEmailNotVerified
	case e.StatusCode == 403:
		return ErrAccessDenied
	case e.StatusCode == 404:
		return ErrNotFound
	case e.StatusCode >= 500:
		return ErrServer
	}
	return nil
}
