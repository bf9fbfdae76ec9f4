package apiclient

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Option defines a function type to modify the Client instance.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (primarily for testing
// or custom transports).
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the fixed upper bound on every outbound request
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithClientLogger sets the client's logger
func WithClientLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithMaxRetries sets the retry bound for 5xx responses
func WithMaxRetries(maxRetries int) Option {
	return func(c *Client) {
		if maxRetries >= 0 {
			c.maxRetries = maxRetries
		}
	}
}

// WithRetryDelay sets the backoff base; attempt N waits N × base
func WithRetryDelay(delay time.Duration) Option {
	return func(c *Client) {
		if delay > 0 {
			c.retryDelay = delay
		}
	}
}

// WithRateLimit throttles outbound requests client-side. Useful for batch
// jobs against rate-limited backends; interactive clients normally leave
// this unset.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMetrics attaches Prometheus instrumentation
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithForcedLogout sets the navigation primitive invoked when the session is
// cleared after an unrecoverable credential rejection.
func WithForcedLogout(redirect func()) Option {
	return func(c *Client) {
		c.onForcedLogout = redirect
	}
}

// WithAuthScheme overrides the Authorization scheme label (default "Bearer")
func WithAuthScheme(scheme string) Option {
	return func(c *Client) {
		if scheme != "" {
			c.authScheme = scheme
		}
	}
}
