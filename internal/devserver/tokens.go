package devserver

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/desertthunder/reelx/internal/shared"
)

const (
	kindAccess  = "access"
	kindRefresh = "refresh"
)

// Claims are carried by both token kinds. Generation ties access tokens to the
// revocation counter bumped by POST /dev/expire.
type Claims struct {
	Kind       string `json:"kind"`
	Generation int    `json:"gen,omitempty"`
	jwt.RegisteredClaims
}

type signer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func (s *signer) sign(kind, userID string, gen int) (token, jti string, err error) {
	ttl := s.accessTTL
	if kind == kindRefresh {
		ttl = s.refreshTTL
	}

	now := s.now()
	jti = shared.GenerateID()
	claims := Claims{
		Kind:       kind,
		Generation: gen,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return token, jti, nil
}

func (s *signer) parse(token, kind string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUnauthorized, err)
	}
	if claims.Kind != kind || claims.Subject == "" {
		return nil, fmt.Errorf("%w: expected %s token", shared.ErrUnauthorized, kind)
	}
	return claims, nil
}
