// Package identity talks to the remote identity provider: credential login,
// token refresh, logout, profile lookup, and the national-pass OAuth flow.
// All traffic goes through the resilient API client.
package identity

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/laborportal/authkit/apiclient"
	"github.com/laborportal/authkit/internal/errors"
	"github.com/laborportal/authkit/session"
	"github.com/laborportal/authkit/token"
	"github.com/laborportal/authkit/users"
)

// Identity endpoints on the backing API.
const (
	EndpointLogin        = "/auth/login"
	EndpointLogout       = "/auth/logout"
	EndpointRefresh      = "/auth/refresh"
	EndpointProfile      = "/auth/profile"
	EndpointPassCallback = "/auth/pass/callback"
)

// LoginRequest carries the user's identifier and secret to the login endpoint
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

// LoginResult is the validated outcome of a successful authentication
type LoginResult struct {
	User        *users.User
	Credentials *token.Credentials
}

// envelope is the backend's standard success response wrapper
type envelope struct {
	Data json.RawMessage `json:"data"`
}

// loginPayload is the raw authentication payload before validation
type loginPayload struct {
	User    json.RawMessage `json:"user"`
	Tokens  json.RawMessage `json:"tokens"`
	IDToken string          `json:"idToken,omitempty"`
}

// Client is the identity provider API client. It implements session.Refresher.
type Client struct {
	api      *apiclient.Client
	verifier *IDTokenVerifier
	log      zerolog.Logger
}

var _ session.Refresher = (*Client)(nil)

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

// WithIdentityLogger sets the client's logger
func WithIdentityLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// WithIDTokenVerifier enables ID-token verification for deployments where
// the pass callback returns an OIDC ID token straight from the provider.
func WithIDTokenVerifier(v *IDTokenVerifier) ClientOption {
	return func(c *Client) {
		c.verifier = v
	}
}

// NewClient creates an identity client over the given API client
func NewClient(api *apiclient.Client, options ...ClientOption) (*Client, error) {
	if api == nil {
		return nil, errors.Wrapf(errors.ErrInternal, "[identity.NewClient] api client is required")
	}
	c := &Client{api: api, log: zerolog.Nop()}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// LoginWithCredentials authenticates with an identifier and secret. The
// returned user and credentials have passed structural validation; nothing
// from the network is trusted before that.
func (c *Client) LoginWithCredentials(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if req.Identifier == "" || req.Secret == "" {
		return nil, errors.Wrapf(errors.ErrInvalidCredentials, "[Client.LoginWithCredentials] identifier and secret are required")
	}

	var resp envelope
	if err := c.api.Post(ctx, EndpointLogin, req, &resp, apiclient.Public()); err != nil {
		return nil, errors.Wrapf(err, "[Client.LoginWithCredentials]")
	}
	result, err := c.parseLoginPayload(ctx, resp.Data)
	if err != nil {
		return nil, errors.Wrapf(err, "[Client.LoginWithCredentials]")
	}
	c.log.Info().Str("user", result.User.Name).Msg("credential login succeeded")
	return result, nil
}

// RefreshAccessToken exchanges a refresh token for fresh credentials. The
// refresh endpoint is called without the (rejected) access credential so a
// 401 here can never recurse into another refresh.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (*token.Credentials, error) {
	if refreshToken == "" {
		return nil, errors.Wrapf(errors.ErrNoRefreshToken, "[Client.RefreshAccessToken]")
	}

	body := map[string]string{"refreshToken": refreshToken}
	var resp envelope
	if err := c.api.Post(ctx, EndpointRefresh, body, &resp, apiclient.Public()); err != nil {
		return nil, errors.Wrapf(err, "[Client.RefreshAccessToken]")
	}

	creds, err := token.ParseCredentials(resp.Data)
	if err != nil {
		return nil, errors.Wrapf(err, "[Client.RefreshAccessToken]")
	}
	return creds, nil
}

// Logout invalidates the server-side session for the current token. The
// caller clears local state regardless of the outcome.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.api.Post(ctx, EndpointLogout, nil, nil); err != nil {
		return errors.Wrapf(err, "[Client.Logout]")
	}
	return nil
}

// Profile fetches the authenticated user's profile
func (c *Client) Profile(ctx context.Context) (*users.User, error) {
	var resp envelope
	if err := c.api.Get(ctx, EndpointProfile, nil, &resp); err != nil {
		return nil, errors.Wrapf(err, "[Client.Profile]")
	}
	u, err := users.ParseUser(resp.Data)
	if err != nil {
		return nil, errors.Wrapf(err, "[Client.Profile]")
	}
	return u, nil
}

// CompletePassLogin exchanges a national-pass authorization code (plus the
// CSRF state echoed by the provider) for a session via the backend callback
// endpoint.
func (c *Client) CompletePassLogin(ctx context.Context, code, state string) (*LoginResult, error) {
	if code == "" {
		return nil, errors.Wrapf(errors.ErrInvalidCredentials, "[Client.CompletePassLogin] missing authorization code")
	}

	body := map[string]string{"code": code, "state": state}
	var resp envelope
	if err := c.api.Post(ctx, EndpointPassCallback, body, &resp, apiclient.Public()); err != nil {
		return nil, errors.Wrapf(err, "[Client.CompletePassLogin]")
	}
	result, err := c.parseLoginPayload(ctx, resp.Data)
	if err != nil {
		return nil, errors.Wrapf(err, "[Client.CompletePassLogin]")
	}
	c.log.Info().Str("user", result.User.Name).Msg("pass login succeeded")
	return result, nil
}

// parseLoginPayload validates an untrusted authentication payload and, when
// a verifier is configured, checks the accompanying ID token.
func (c *Client) parseLoginPayload(ctx context.Context, data []byte) (*LoginResult, error) {
	var payload loginPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidCredentials, "[Client.parseLoginPayload] unmarshal")
	}

	u, err := users.ParseUser(payload.User)
	if err != nil {
		return nil, err
	}
	creds, err := token.ParseCredentials(payload.Tokens)
	if err != nil {
		return nil, err
	}

	if c.verifier != nil && payload.IDToken != "" {
		if _, err := c.verifier.Verify(ctx, payload.IDToken); err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidToken, "[Client.parseLoginPayload] id token verification: %v", err)
		}
	}

	return &LoginResult{User: u, Credentials: creds}, nil
}
