package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry reads the exp claim from a JWT without verifying its signature.
// It returns the zero time for opaque tokens or tokens without exp.
func TokenExpiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// expiryFor derives the absolute expiry at issuance.
// expiresIn wins when positive; otherwise the JWT exp claim is used.
func expiryFor(token string, expiresIn int, now time.Time) time.Time {
	if expiresIn > 0 {
		return now.Add(time.Duration(expiresIn) * time.Second)
	}
	return TokenExpiry(token)
}
