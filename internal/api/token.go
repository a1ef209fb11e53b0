package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenExpired reports a JWT whose exp claim has passed.
var ErrTokenExpired = errors.New("token expired")

// TokenExpiry reads the exp claim of a bearer token without verifying its
// signature. ok is false when the token carries no exp claim.
func TokenExpiry(token string) (exp time.Time, ok bool, err error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false, fmt.Errorf("parse token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false, nil
	}
	return claims.ExpiresAt.Time, true, nil
}

// CheckToken returns ErrTokenExpired when token has an exp claim at or before
// now. Opaque (non-JWT) tokens pass; the backend decides for them.
func CheckToken(token string, now time.Time) error {
	if token == "" {
		return ErrUnauthorized
	}
	exp, ok, err := TokenExpiry(token)
	if err != nil || !ok {
		return nil
	}
	if !now.Before(exp) {
		return ErrTokenExpired
	}
	return nil
}
