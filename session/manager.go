package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/laborportal/authkit/internal/errors"
	"github.com/laborportal/authkit/internal/utils"
	"github.com/laborportal/authkit/token"
	"github.com/laborportal/authkit/users"
)

// State is the in-memory authoritative session state exposed to the rest of
// the application.
type State struct {
	User            *users.User
	Credentials     *token.Credentials
	IsAuthenticated bool
	IsLoading       bool
	LastError       string // empty when no error
}

// Refresher exchanges a refresh token for fresh credentials against the
// identity provider. Implemented by identity.Client.
type Refresher interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (*token.Credentials, error)
}

// Manager owns the in-memory session and is the only writer of the durable
// session storage. Every state-changing operation performs its durable write
// and its in-memory update inside one critical section, so no observer can
// see one without the other.
type Manager struct {
	mu      sync.Mutex
	storage *Storage
	state   State

	refresher    Refresher
	refreshGroup singleflight.Group

	log zerolog.Logger
}

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

// WithLogger sets the manager's logger
func WithLogger(log zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = log
	}
}

// WithRefresher sets the token refresher at construction time
func WithRefresher(r Refresher) ManagerOption {
	return func(m *Manager) {
		m.refresher = r
	}
}

// NewManager creates a session manager over the given storage
func NewManager(storage *Storage, options ...ManagerOption) (*Manager, error) {
	if storage == nil {
		return nil, errors.Wrapf(errors.ErrStoreUnavailable, "[NewManager] storage is required")
	}
	m := &Manager{
		storage: storage,
		log:     zerolog.Nop(),
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// SetRefresher wires the token refresher after construction. The identity
// client depends on the HTTP client, which depends on this manager, so the
// refresher is attached last.
func (m *Manager) SetRefresher(r Refresher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresher = r
}

// Login persists user and credentials, then marks the in-memory session
// authenticated. If any durable write fails the in-memory state is left
// untouched and the failure is surfaced.
func (m *Manager) Login(ctx context.Context, u *users.User, creds *token.Credentials) error {
	if err := u.Validate(); err != nil {
		return errors.Wrapf(err, "[Manager.Login]")
	}
	if err := creds.Validate(); err != nil {
		return errors.Wrapf(err, "[Manager.Login]")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.storage.WriteUser(ctx, u); err != nil {
		return errors.Wrapf(err, "[Manager.Login]")
	}
	if err := m.storage.WriteCredentials(ctx, creds); err != nil {
		return errors.Wrapf(err, "[Manager.Login]")
	}

	m.state = State{
		User:            u,
		Credentials:     creds,
		IsAuthenticated: true,
	}
	m.log.Info().Str("user", u.Name).Msg("user logged in")
	return nil
}

// Logout clears the durable storage and resets the in-memory session. It is
// idempotent: logging out with no active session is a state reset, never an
// error. A failed storage clear is logged but not surfaced.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.storage.Clear(ctx); err != nil {
		m.log.Err(err).Msg("failed to clear session storage on logout")
	}
	m.state = State{}
	m.log.Info().Msg("user logged out")
}

// Initialize restores the session from durable storage at process startup.
// It is a trust-on-read of local state with a local expiry check only; no
// network call is made. An invalid or expired record is purged.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, err := m.storage.Read(ctx)
	if err != nil {
		return errors.Wrapf(err, "[Manager.Initialize]")
	}

	if !record.Valid(token.NowTimeFunc()) {
		if err := m.storage.Clear(ctx); err != nil {
			m.log.Err(err).Msg("failed to purge invalid session record")
		}
		m.state = State{}
		m.log.Debug().Msg("no valid session found")
		return nil
	}

	creds := &token.Credentials{
		AccessToken:  record.AccessToken,
		RefreshToken: record.RefreshToken,
	}
	if !record.ExpiresAt.IsZero() {
		remaining := record.ExpiresAt.Sub(token.NowTimeFunc())
		creds.ExpiresIn = int64(remaining.Seconds())
	}

	m.state = State{
		User:            record.User,
		Credentials:     creds,
		IsAuthenticated: true,
	}
	m.log.Info().Str("user", record.User.Name).Msg("session restored from storage")
	return nil
}

// UpdateTokens persists new credentials and updates only the token portion of
// the in-memory session. Used exclusively by the refresh flow; user and
// authenticated flag are untouched.
func (m *Manager) UpdateTokens(ctx context.Context, creds *token.Credentials) error {
	if err := creds.Validate(); err != nil {
		return errors.Wrapf(err, "[Manager.UpdateTokens]")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.storage.WriteCredentials(ctx, creds); err != nil {
		return errors.Wrapf(err, "[Manager.UpdateTokens]")
	}
	m.state.Credentials = creds
	m.log.Debug().Msg("tokens updated")
	return nil
}

// Refresh exchanges the current refresh token for fresh credentials. Only
// one refresh may be in flight at a time; concurrent callers attach to the
// pending attempt and share its outcome, so N simultaneous 401 handlers
// produce exactly one call to the identity provider.
func (m *Manager) Refresh(ctx context.Context) error {
	_, err, _ := m.refreshGroup.Do("refresh", func() (interface{}, error) {
		return nil, m.refresh(ctx)
	})
	return err
}

func (m *Manager) refresh(ctx context.Context) error {
	m.mu.Lock()
	refresher := m.refresher
	var refreshToken string
	if m.state.Credentials != nil {
		refreshToken = m.state.Credentials.RefreshToken
	}
	m.mu.Unlock()

	if refresher == nil {
		return errors.Wrapf(errors.ErrUnsupported, "[Manager.Refresh] no refresher configured")
	}
	if refreshToken == "" {
		return errors.Wrapf(errors.ErrNoRefreshToken, "[Manager.Refresh]")
	}

	creds, err := refresher.RefreshAccessToken(ctx, refreshToken)
	if err != nil {
		m.log.Err(err).Msg("token refresh failed")
		return errors.Wrapf(errors.ErrRefreshFailed, "[Manager.Refresh] %v", err)
	}

	// Providers may omit the refresh token from a refresh response; carry
	// the current one forward so the session stays refreshable.
	if creds.RefreshToken == "" {
		creds.RefreshToken = refreshToken
	}

	if err := m.UpdateTokens(ctx, creds); err != nil {
		return errors.Wrapf(err, "[Manager.Refresh]")
	}
	m.log.Info().Msg("access token refreshed")
	return nil
}

// SetLoading sets the UI-facing loading flag
func (m *Manager) SetLoading(loading bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.IsLoading = loading
}

// SetError sets the UI-facing error message and always clears the loading
// flag. An empty message clears the error.
func (m *Manager) SetError(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.LastError = message
	m.state.IsLoading = false
}

// Snapshot returns a copy of the current session state. The user and
// credentials are copied so callers cannot mutate the manager's state.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state
	if m.state.User != nil {
		u := *m.state.User
		u.Roles = append([]users.RoleType(nil), m.state.User.Roles...)
		snapshot.User = utils.Ptr(u)
	}
	if m.state.Credentials != nil {
		snapshot.Credentials = utils.Ptr(*m.state.Credentials)
	}
	return snapshot
}

// IsAuthenticated reports whether a user and access token are both present
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.IsAuthenticated
}

// AccessToken returns the current access token, or empty when unauthenticated
func (m *Manager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Credentials == nil {
		return ""
	}
	return m.state.Credentials.AccessToken
}

// Roles returns the authenticated user's roles, or nil
func (m *Manager) Roles() []users.RoleType {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.User == nil {
		return nil
	}
	return append([]users.RoleType(nil), m.state.User.Roles...)
}
