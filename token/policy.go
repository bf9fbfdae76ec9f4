package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/laborportal/authkit/internal/errors"
)

// DefaultExpiryBuffer is the safety margin applied when deciding whether a
// token is close enough to expiry to refresh before use.
const DefaultExpiryBuffer = 5 * time.Minute

// ExpiringSoon reports whether a token with the given remaining lifetime is
// at or below the buffer. A zero or negative buffer falls back to
// DefaultExpiryBuffer. A token with unknown expiry (expiresIn <= 0) is never
// treated as expiring.
func ExpiringSoon(expiresIn int64, buffer time.Duration) bool {
	if expiresIn <= 0 {
		return false
	}
	if buffer <= 0 {
		buffer = DefaultExpiryBuffer
	}
	return time.Duration(expiresIn)*time.Second <= buffer
}

// ExpiringSoonAt reports whether the absolute expiry instant falls within the
// buffer of the current time. A zero instant is never treated as expiring.
func ExpiringSoonAt(expiresAt time.Time, buffer time.Duration) bool {
	if expiresAt.IsZero() {
		return false
	}
	if buffer <= 0 {
		buffer = DefaultExpiryBuffer
	}
	return !NowTimeFunc().Add(buffer).Before(expiresAt)
}

// ExpiryFromJWT extracts the exp claim from a JWT access token without
// verifying its signature. Some identity providers omit expires_in from the
// token response; the claim is used only to schedule refreshes, never to
// grant trust.
func ExpiryFromJWT(raw string) (time.Time, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return time.Time{}, errors.Wrapf(errors.ErrInvalidToken, "[ExpiryFromJWT] parse")
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, errors.Wrapf(errors.ErrInvalidToken, "[ExpiryFromJWT] no exp claim")
	}
	return exp.Time, nil
}
