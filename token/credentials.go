package token

import (
	"encoding/json"
	"time"

	"github.com/laborportal/authkit/internal/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Credentials holds the token material issued by the identity provider.
// AccessToken is opaque to this library; ExpiresIn is relative to the moment
// the credentials were issued and is only converted to an absolute instant
// at write time.
type Credentials struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int64  `json:"expiresIn,omitempty"` // seconds; 0 means no known expiry
	TokenType    string `json:"tokenType,omitempty"` // scheme label, e.g. "Bearer"
}

// ExpiresAt converts the relative lifetime to an absolute instant. The second
// return value is false when no expiry is known. The result is only meaningful
// at the moment it is computed; consumers must compare against "now", never
// cache staleness.
func (c *Credentials) ExpiresAt(now time.Time) (time.Time, bool) {
	if c.ExpiresIn <= 0 {
		return time.Time{}, false
	}
	return now.Add(time.Duration(c.ExpiresIn) * time.Second), true
}

// Validate checks that the credentials carry the required access token
func (c *Credentials) Validate() error {
	if c == nil {
		return errors.Wrapf(errors.ErrInvalidCredentials, "[Credentials.Validate] nil credentials")
	}
	if c.AccessToken == "" {
		return errors.Wrapf(errors.ErrInvalidCredentials, "[Credentials.Validate] missing access token")
	}
	return nil
}

// ParseCredentials deserializes and validates an untrusted credentials
// payload from storage or the network.
func ParseCredentials(data []byte) (*Credentials, error) {
	var c Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidCredentials, "[ParseCredentials] unmarshal")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
