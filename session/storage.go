package session

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/laborportal/authkit/internal/errors"
	"github.com/laborportal/authkit/kv"
	"github.com/laborportal/authkit/token"
	"github.com/laborportal/authkit/users"
)

// Storage keys in the durable medium. The record has no version field; a
// schema change requires migration-on-read logic here.
const (
	keyAccessToken  = "auth_access_token"
	keyRefreshToken = "auth_refresh_token"
	keyExpiresAt    = "auth_expires_at" // epoch milliseconds
	keyUser         = "auth_user"       // serialized users.User
)

// Record is the durable-storage projection of a session.
type Record struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time // zero when no known expiry
	User         *users.User
}

// Valid reports whether the record can be trusted to restore a session:
// access token and user both present and the expiry instant, if any, still in
// the future. Any other combination must be treated as absent and purged.
func (r *Record) Valid(now time.Time) bool {
	if r == nil || r.AccessToken == "" || r.User == nil {
		return false
	}
	if !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt) {
		return false
	}
	return true
}

// Storage persists the session over a durable key-value medium. It performs
// no network calls; side effects are confined to the medium.
type Storage struct {
	store   kv.Store
	nowTime func() time.Time
}

// StorageOption defines a function type to modify the Storage instance.
type StorageOption func(*Storage)

// WithStorageNowTime sets the now time function (primarily for testing)
func WithStorageNowTime(nowFunc func() time.Time) StorageOption {
	return func(s *Storage) {
		s.nowTime = nowFunc
	}
}

// NewStorage creates session storage over the given durable medium
func NewStorage(store kv.Store, options ...StorageOption) (*Storage, error) {
	if store == nil {
		return nil, errors.Wrapf(errors.ErrStoreUnavailable, "[NewStorage] store is required")
	}
	s := &Storage{store: store, nowTime: time.Now}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// WriteCredentials persists token material. The relative expiry is converted
// to an absolute instant at call time; a missing expiry removes any stored
// instant so a stale one cannot shadow a non-expiring token. A missing
// refresh token leaves the stored one in place (refresh responses often omit
// it).
func (s *Storage) WriteCredentials(ctx context.Context, creds *token.Credentials) error {
	if err := creds.Validate(); err != nil {
		return errors.Wrapf(err, "[Storage.WriteCredentials]")
	}
	if err := s.store.Set(ctx, keyAccessToken, creds.AccessToken); err != nil {
		return errors.Wrapf(err, "[Storage.WriteCredentials] access token")
	}
	if creds.RefreshToken != "" {
		if err := s.store.Set(ctx, keyRefreshToken, creds.RefreshToken); err != nil {
			return errors.Wrapf(err, "[Storage.WriteCredentials] refresh token")
		}
	}
	if expiresAt, ok := creds.ExpiresAt(s.nowTime()); ok {
		millis := strconv.FormatInt(expiresAt.UnixMilli(), 10)
		if err := s.store.Set(ctx, keyExpiresAt, millis); err != nil {
			return errors.Wrapf(err, "[Storage.WriteCredentials] expiry instant")
		}
	} else if err := s.store.Remove(ctx, keyExpiresAt); err != nil {
		return errors.Wrapf(err, "[Storage.WriteCredentials] remove expiry instant")
	}
	return nil
}

// WriteUser persists the profile snapshot
func (s *Storage) WriteUser(ctx context.Context, u *users.User) error {
	if err := u.Validate(); err != nil {
		return errors.Wrapf(err, "[Storage.WriteUser]")
	}
	data, err := json.Marshal(u)
	if err != nil {
		return errors.Wrapf(err, "[Storage.WriteUser] marshal")
	}
	if err := s.store.Set(ctx, keyUser, string(data)); err != nil {
		return errors.Wrapf(err, "[Storage.WriteUser] store")
	}
	return nil
}

// Read returns the persisted record, or nil when nothing usable is stored.
// The user field is nil when the stored profile is absent or fails structural
// validation; callers decide whether to purge.
func (s *Storage) Read(ctx context.Context) (*Record, error) {
	accessToken, found, err := s.store.Get(ctx, keyAccessToken)
	if err != nil {
		return nil, errors.Wrapf(err, "[Storage.Read] access token")
	}
	if !found || accessToken == "" {
		return nil, nil
	}

	record := &Record{AccessToken: accessToken}

	if refreshToken, found, err := s.store.Get(ctx, keyRefreshToken); err != nil {
		return nil, errors.Wrapf(err, "[Storage.Read] refresh token")
	} else if found {
		record.RefreshToken = refreshToken
	}

	if raw, found, err := s.store.Get(ctx, keyExpiresAt); err != nil {
		return nil, errors.Wrapf(err, "[Storage.Read] expiry instant")
	} else if found {
		if millis, err := strconv.ParseInt(raw, 10, 64); err == nil {
			record.ExpiresAt = time.UnixMilli(millis)
		}
	}

	if raw, found, err := s.store.Get(ctx, keyUser); err != nil {
		return nil, errors.Wrapf(err, "[Storage.Read] user")
	} else if found {
		if u, err := users.ParseUser([]byte(raw)); err == nil {
			record.User = u
		}
	}

	return record, nil
}

// IsExpired compares the stored absolute instant against the current time.
// An absent instant means the token never expires locally.
func (s *Storage) IsExpired(ctx context.Context) (bool, error) {
	raw, found, err := s.store.Get(ctx, keyExpiresAt)
	if err != nil {
		return false, errors.Wrapf(err, "[Storage.IsExpired]")
	}
	if !found {
		return false, nil
	}
	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, nil
	}
	return !s.nowTime().Before(time.UnixMilli(millis)), nil
}

// Clear removes every session key. All removals are attempted; the first
// failure is reported.
func (s *Storage) Clear(ctx context.Context) error {
	var firstErr error
	for _, key := range []string{keyAccessToken, keyRefreshToken, keyExpiresAt, keyUser} {
		if err := s.store.Remove(ctx, key); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "[Storage.Clear] %s", key)
		}
	}
	return firstErr
}
