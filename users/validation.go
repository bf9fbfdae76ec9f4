package users

import (
	"encoding/json"
	"fmt"

	"github.com/laborportal/authkit/internal/errors"
)

// Validate checks that the user carries every required field. Persisted and
// network-provided payloads must pass validation before being attached to a
// session; storage can be stale across application versions.
func (u *User) Validate() error {
	if u == nil {
		return errors.Wrapf(errors.ErrInvalidUser, "[User.Validate] nil user")
	}
	if u.ID == "" {
		return errors.Wrapf(errors.ErrInvalidUser, "[User.Validate] missing id")
	}
	if u.Name == "" {
		return errors.Wrapf(errors.ErrInvalidUser, "[User.Validate] missing name")
	}
	if u.Email == "" {
		return errors.Wrapf(errors.ErrInvalidUser, "[User.Validate] missing email")
	}
	if u.NationalID == "" {
		return errors.Wrapf(errors.ErrInvalidUser, "[User.Validate] missing national identity reference")
	}
	if len(u.Roles) == 0 {
		return errors.Wrapf(errors.ErrInvalidUser, "[User.Validate] missing roles")
	}
	for _, r := range u.Roles {
		if !r.Known() {
			return errors.Wrapf(errors.ErrInvalidUser, "[User.Validate] unknown role %q", r)
		}
	}
	return nil
}

// ParseUser deserializes and validates an untrusted user payload. It returns
// an error on malformed JSON or missing required fields rather than panicking.
func ParseUser(data []byte) (*User, error) {
	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("[ParseUser] unmarshal: %w", errors.ErrInvalidUser)
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return &u, nil
}
