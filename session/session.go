// Package session is the single source of truth for credential state: the
// access token, the refresh token, and the cached user profile. It is
// backed by a storage.Storage so a session survives process restarts, and
// it pushes change notifications so the guard and UI layers can re-render
// from current state.
package session

import (
	"strings"

	"github.com/adopt-a-farmer/client-go/domain"
)

// IsValidToken reports whether s is usable as a bearer credential. The
// empty string, whitespace, and the literal "null"/"undefined" (debris
// from JSON-stringified absent values) all count as no token at all and
// are never sent to the server.
func IsValidToken(s string) bool {
	trimmed := strings.TrimSpace(s)
	return trimmed != "" && trimmed != "null" && trimmed != "undefined"
}

// State is an immutable snapshot of the session.
type State struct {
	AccessToken  string
	RefreshToken string
	User         *domain.User

	// Initialized flips to true once Initialize has completed, whatever
	// the outcome. Until then the guard reports Loading.
	Initialized bool
}

// IsAuthenticated is derived: a valid access token plus a cached user.
func (s State) IsAuthenticated() bool {
	return IsValidToken(s.AccessToken) && s.User != nil
}

// IsAdmin is derived from the cached user's role.
func (s State) IsAdmin() bool {
	return s.User != nil && s.User.Role == domain.RoleAdmin
}

// Role returns the session's role, or "" when unauthenticated.
func (s State) Role() domain.Role {
	if s.User == nil {
		return ""
	}
	return s.User.Role
}
