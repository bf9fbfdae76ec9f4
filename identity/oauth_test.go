package identity_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/laborportal/authkit/identity"
)

func TestNewPassFlow_Validation(t *testing.T) {
	_, err := identity.NewPassFlow(identity.PassConfig{})
	require.Error(t, err)

	_, err = identity.NewPassFlow(identity.PassConfig{ClientID: "portal-client"})
	require.Error(t, err)
}

func TestPassFlow_AuthorizeURL(t *testing.T) {
	flow, err := identity.NewPassFlow(identity.PassConfig{
		ClientID:    "portal-client",
		RedirectURL: "https://portal.example.ae/auth/callback",
		AuthURL:     "https://pass.example.ae/authorize",
		TokenURL:    "https://pass.example.ae/token",
		Scopes:      []string{"urn:pass:profile"},
	})
	require.NoError(t, err)

	raw := flow.AuthorizeURL("state-1")
	parsed, err := url.Parse(raw)
	require.NoError(t, err)

	require.Equal(t, "pass.example.ae", parsed.Host)
	require.Equal(t, "/authorize", parsed.Path)
	query := parsed.Query()
	require.Equal(t, "portal-client", query.Get("client_id"))
	require.Equal(t, "code", query.Get("response_type"))
	require.Equal(t, "state-1", query.Get("state"))
	require.Equal(t, "urn:pass:profile", query.Get("scope"))
	require.Equal(t, "https://portal.example.ae/auth/callback", query.Get("redirect_uri"))
}

func TestStateHashing(t *testing.T) {
	state, err := identity.GenerateState()
	require.NoError(t, err)
	require.NotEmpty(t, state)

	other, err := identity.GenerateState()
	require.NoError(t, err)
	require.NotEqual(t, state, other)

	hash := identity.HashState(state)
	require.True(t, identity.VerifyState(state, hash))
	require.False(t, identity.VerifyState(other, hash))
	require.False(t, identity.VerifyState("", hash))
	require.False(t, identity.VerifyState(state, ""))
}
