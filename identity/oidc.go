package identity

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// IDTokenVerifier wraps OIDC provider discovery and ID-token verification
// for deployments where the pass callback hands the ID token straight to
// the client instead of consuming it server-side.
type IDTokenVerifier struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
}

// NewIDTokenVerifier discovers the provider at issuer and prepares a
// verifier for tokens addressed to clientID.
func NewIDTokenVerifier(ctx context.Context, issuer, clientID string) (*IDTokenVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("[NewIDTokenVerifier] discover provider: %w", err)
	}
	return &IDTokenVerifier{
		provider: provider,
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// Verify checks the raw ID token's signature, issuer, audience and expiry
func (v *IDTokenVerifier) Verify(ctx context.Context, raw string) (*oidc.IDToken, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("[IDTokenVerifier.Verify]: %w", err)
	}
	return idToken, nil
}
