// Package token issues and verifies stateless session tokens for first-party
// authentication. API-key authentication is a separate path; see internal/auth.
package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL applies when Issue is called with a zero TTL.
const DefaultTTL = 24 * time.Hour

// Claims carries the session identity embedded in a token.
type Claims struct {
	UserID  uint64 `json:"uid"`
	Email   string `json:"email"`
	Plan    string `json:"plan"`
	IsAdmin bool   `json:"is_admin"`

	jwt.RegisteredClaims
}

// Issue signs a session token for the given claims. Expiry is issued-at
// plus ttl; a zero ttl falls back to DefaultTTL.
func Issue(claims Claims, secret string, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	now := time.Now().UTC()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Verify parses and validates a session token.
//
// It returns nil for any failure: wrong secret, malformed input, expiry, or
// empty string. Callers treat nil uniformly as unauthenticated and must not
// distinguish reasons. The signature is checked before any claim is trusted.
func Verify(tokenString, secret string) *Claims {
	if strings.TrimSpace(tokenString) == "" {
		return nil
	}
	var claims Claims
	parsed, errParse := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if errParse != nil || parsed == nil || !parsed.Valid {
		return nil
	}
	return &claims
}
