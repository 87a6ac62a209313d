// File: internal/auth/token.go
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenVisiblyExpired reports whether an access token can be decoded as a
// JWT whose expiry has already passed. The backend stays the authority on
// token validity; this only lets bootstrap skip a profile fetch that is
// guaranteed to fail. Opaque or malformed tokens report false and are sent
// to the backend as-is.
func tokenVisiblyExpired(accessToken string) bool {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}
