package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenPair is what the auth endpoints hand back: a short-lived access
// token and, usually, a refresh token to mint the next one. RefreshToken
// may be empty on some login responses; callers must keep the previous one
// in that case.
type TokenPair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// TokenExpiry reads the exp claim of a JWT without verifying its
// signature. The client has no signing key; this is display and
// diagnostics only, never an authorization decision. Returns a zero time
// when the token is not a parseable JWT or carries no expiry.
func TokenExpiry(tokenValue string) time.Time {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(tokenValue, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// TokenExpiresWithin reports whether the token's exp claim falls inside
// the window. Tokens without a readable expiry are treated as not
// expiring; the server remains the authority via its 401 responses.
func TokenExpiresWithin(tokenValue string, window time.Duration) bool {
	exp := TokenExpiry(tokenValue)
	if exp.IsZero() {
		return false
	}
	return time.Until(exp) < window
}
