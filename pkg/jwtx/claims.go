// Package jwtx issues and verifies the EdDSA-signed session tokens returned
// once authentication completes.
package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionTTL is the default lifetime of a session token. Short-lived
// on purpose; a client re-authenticates when it lapses.
const DefaultSessionTTL = 15 * time.Minute

// Authentication Method Reference values carried in the "amr" claim.
const (
	// AMRPassword marks password-based authentication.
	AMRPassword = "pwd"
	// AMROTP marks a verified one-time password second factor.
	AMROTP = "otp"
)

// Claims are the session token claims.
type Claims struct {
	jwt.RegisteredClaims

	// AMR lists the authentication methods that produced this session,
	// e.g. ["pwd"] or ["pwd","otp"]. Lets callers demand a second factor
	// for sensitive operations.
	AMR []string `json:"amr,omitempty"`

	// Username of the authenticated user.
	Username string `json:"username,omitempty"`
}

// NewSessionClaims builds claims for a freshly authenticated user.
func NewSessionClaims(subject, username, issuer string, amr []string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        newJTI(),
		},
		AMR:      amr,
		Username: username,
	}
}

// newJTI returns a URL-safe random identifier for the "jti" claim.
func newJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
