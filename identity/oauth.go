package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/oauth2"
)

const stateLength = 32

// PassConfig configures the national-pass OAuth authorization-code flow.
type PassConfig struct {
	ClientID    string
	RedirectURL string
	AuthURL     string
	TokenURL    string
	Scopes      []string
}

// PassFlow builds authorization URLs for the national-pass provider. The
// code exchange itself happens server-side; the client only redirects the
// user out and posts the returned code to the backend callback endpoint.
type PassFlow struct {
	oauth *oauth2.Config
}

// NewPassFlow creates a pass flow from the given provider configuration
func NewPassFlow(cfg PassConfig) (*PassFlow, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("[NewPassFlow] client ID is required")
	}
	if cfg.AuthURL == "" || cfg.RedirectURL == "" {
		return nil, fmt.Errorf("[NewPassFlow] auth URL and redirect URL are required")
	}
	return &PassFlow{
		oauth: &oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURL,
			Scopes:      cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
	}, nil
}

// AuthorizeURL returns the provider URL to redirect the user to, carrying
// the CSRF state.
func (f *PassFlow) AuthorizeURL(state string) string {
	return f.oauth.AuthCodeURL(state)
}

// GenerateState creates a random CSRF state parameter
func GenerateState() (string, error) {
	buf := make([]byte, stateLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("[GenerateState] rand.Read: %w", err)
	}
	return base64.URLEncoding.EncodeToString(buf), nil
}

// HashState hashes a state parameter for storage; only the hash is kept
// between redirect and callback.
func HashState(state string) string {
	hash := sha256.Sum256([]byte(state))
	return base64.URLEncoding.EncodeToString(hash[:])
}

// VerifyState compares the state echoed by the provider against the stored
// hash in constant time.
func VerifyState(state, storedHash string) bool {
	if state == "" || storedHash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashState(state)), []byte(storedHash)) == 1
}
