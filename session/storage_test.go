package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/laborportal/authkit/internal/errors"
	"github.com/laborportal/authkit/kv"
	"github.com/laborportal/authkit/session"
	"github.com/laborportal/authkit/token"
	"github.com/laborportal/authkit/users"
)

func testUser() *users.User {
	return &users.User{
		ID:         "1",
		Name:       "Ahmed Al Mansouri",
		Email:      "ahmed@example.ae",
		NationalID: "784-1234-5678901-1",
		Roles:      []users.RoleType{users.RoleSponsor},
	}
}

// clockStorage builds storage over a fresh memory store with a movable clock
func clockStorage(t *testing.T, start time.Time) (*session.Storage, *time.Time) {
	t.Helper()

	now := start
	storage, err := session.NewStorage(kv.NewMemoryStore(),
		session.WithStorageNowTime(func() time.Time { return now }))
	require.NoError(t, err)
	return storage, &now
}

func TestStorage_CredentialsRoundTrip(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	storage, _ := clockStorage(t, start)

	creds := &token.Credentials{
		AccessToken:  "tok1",
		RefreshToken: "ref1",
		ExpiresIn:    3600,
		TokenType:    "Bearer",
	}
	require.NoError(t, storage.WriteCredentials(ctx, creds))

	record, err := storage.Read(ctx)
	require.NoError(t, err)
	require.NotNil(t, record)
	require.Equal(t, "tok1", record.AccessToken)
	require.Equal(t, "ref1", record.RefreshToken)
	require.Equal(t, start.Add(time.Hour).UnixMilli(), record.ExpiresAt.UnixMilli())
}

func TestStorage_ExpiryMonotonicity(t *testing.T) {
	ctx := context.Background()
	storage, now := clockStorage(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	require.NoError(t, storage.WriteCredentials(ctx, &token.Credentials{AccessToken: "tok1", ExpiresIn: 3600}))

	expired, err := storage.IsExpired(ctx)
	require.NoError(t, err)
	require.False(t, expired)

	*now = now.Add(59 * time.Minute)
	expired, err = storage.IsExpired(ctx)
	require.NoError(t, err)
	require.False(t, expired)

	*now = now.Add(2 * time.Minute)
	expired, err = storage.IsExpired(ctx)
	require.NoError(t, err)
	require.True(t, expired)
}

func TestStorage_NoExpiryInstant(t *testing.T) {
	ctx := context.Background()
	storage, _ := clockStorage(t, time.Now())

	// A token without a known expiry is treated as non-expiring, and a stale
	// stored instant from a previous session must not shadow it.
	require.NoError(t, storage.WriteCredentials(ctx, &token.Credentials{AccessToken: "old", ExpiresIn: 60}))
	require.NoError(t, storage.WriteCredentials(ctx, &token.Credentials{AccessToken: "tok1"}))

	expired, err := storage.IsExpired(ctx)
	require.NoError(t, err)
	require.False(t, expired)

	record, err := storage.Read(ctx)
	require.NoError(t, err)
	require.True(t, record.ExpiresAt.IsZero())
}

func TestStorage_RefreshTokenRetainedAcrossRefresh(t *testing.T) {
	ctx := context.Background()
	storage, _ := clockStorage(t, time.Now())

	require.NoError(t, storage.WriteCredentials(ctx, &token.Credentials{AccessToken: "tok1", RefreshToken: "ref1", ExpiresIn: 3600}))
	// Refresh responses often omit the refresh token.
	require.NoError(t, storage.WriteCredentials(ctx, &token.Credentials{AccessToken: "tok2", ExpiresIn: 3600}))

	record, err := storage.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, "tok2", record.AccessToken)
	require.Equal(t, "ref1", record.RefreshToken)
}

func TestStorage_ReadAbsent(t *testing.T) {
	storage, _ := clockStorage(t, time.Now())

	record, err := storage.Read(context.Background())
	require.NoError(t, err)
	require.Nil(t, record)
	require.False(t, record.Valid(time.Now()))
}

func TestStorage_UserRoundTrip(t *testing.T) {
	ctx := context.Background()
	storage, _ := clockStorage(t, time.Now())

	require.NoError(t, storage.WriteUser(ctx, testUser()))
	require.NoError(t, storage.WriteCredentials(ctx, &token.Credentials{AccessToken: "tok1", ExpiresIn: 3600}))

	record, err := storage.Read(ctx)
	require.NoError(t, err)
	require.NotNil(t, record.User)
	require.Equal(t, "Ahmed Al Mansouri", record.User.Name)
	require.True(t, record.Valid(time.Now()))
}

func TestStorage_CorruptUserIgnored(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	storage, err := session.NewStorage(store)
	require.NoError(t, err)

	require.NoError(t, storage.WriteCredentials(ctx, &token.Credentials{AccessToken: "tok1", ExpiresIn: 3600}))
	require.NoError(t, store.Set(ctx, "auth_user", `{"id":"1"}`)) // missing required fields

	record, err := storage.Read(ctx)
	require.NoError(t, err)
	require.Nil(t, record.User)
	require.False(t, record.Valid(time.Now()))
}

func TestStorage_WriteInvalid(t *testing.T) {
	storage, _ := clockStorage(t, time.Now())

	require.ErrorIs(t, storage.WriteCredentials(context.Background(), &token.Credentials{}), errors.ErrInvalidCredentials)
	require.ErrorIs(t, storage.WriteUser(context.Background(), &users.User{ID: "1"}), errors.ErrInvalidUser)
}

func TestStorage_Clear(t *testing.T) {
	ctx := context.Background()
	storage, _ := clockStorage(t, time.Now())

	require.NoError(t, storage.WriteUser(ctx, testUser()))
	require.NoError(t, storage.WriteCredentials(ctx, &token.Credentials{AccessToken: "tok1", RefreshToken: "ref1", ExpiresIn: 3600}))
	require.NoError(t, storage.Clear(ctx))

	record, err := storage.Read(ctx)
	require.NoError(t, err)
	require.Nil(t, record)

	expired, err := storage.IsExpired(ctx)
	require.NoError(t, err)
	require.False(t, expired)
}
