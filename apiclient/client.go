// Package apiclient is the single HTTP facade every domain feature routes
// through. It injects credentials, classifies failures into a fixed taxonomy,
// drives re-authentication on credential rejection, and retries server
// failures with bounded backoff.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the fixed upper bound on every outbound request.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRetries bounds retries of 5xx responses.
	DefaultMaxRetries = 3
	// DefaultRetryDelay is the backoff base; attempt N waits N × base.
	DefaultRetryDelay = time.Second
)

// SessionController is the surface the client needs from the session layer:
// read the current credential, trigger a serialized refresh, and clear the
// session on forced logout. Implemented by session.Manager.
type SessionController interface {
	AccessToken() string
	Refresh(ctx context.Context) error
	Logout(ctx context.Context)
}

// Client wraps every outbound API call.
type Client struct {
	baseURL        *url.URL
	httpClient     *http.Client
	session        SessionController
	onForcedLogout func() // navigation primitive: redirect to the login entry point
	limiter        *rate.Limiter
	metrics        *Metrics
	log            zerolog.Logger
	maxRetries     int
	retryDelay     time.Duration
	authScheme     string
}

// New creates a client for the given API base URL. The session controller
// may be nil for clients that only ever call public endpoints.
func New(baseURL string, session SessionController, options ...Option) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("[apiclient.New] invalid base URL %q", baseURL)
	}

	c := &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		session:    session,
		log:        zerolog.Nop(),
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		authScheme: "Bearer",
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// requestAttempt is the per-call retry state machine. It exists only for the
// duration of one logical request including its retries and is never
// persisted. Modelling it as explicit state keeps "retry at most once on
// 401" and "retry at most maxRetries on 5xx" structurally enforced.
type requestAttempt struct {
	requestID       string
	retryCount      int
	reauthAttempted bool
}

type requestOptions struct {
	public bool
}

// RequestOption modifies a single request.
type RequestOption func(*requestOptions)

// Public marks a request as explicitly public: no credential is attached and
// a 401 never triggers re-authentication (login, registration, refresh).
func Public() RequestOption {
	return func(o *requestOptions) {
		o.public = true
	}
}

// Get issues a GET request and decodes the JSON response into out
func (c *Client) Get(ctx context.Context, path string, params url.Values, out interface{}, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodGet, path, params, nil, out, opts...)
}

// Post issues a POST request with a JSON body and decodes the response into out
func (c *Client) Post(ctx context.Context, path string, body, out interface{}, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out, opts...)
}

// Put issues a PUT request with a JSON body and decodes the response into out
func (c *Client) Put(ctx context.Context, path string, body, out interface{}, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPut, path, nil, body, out, opts...)
}

// Patch issues a PATCH request with a JSON body and decodes the response into out
func (c *Client) Patch(ctx context.Context, path string, body, out interface{}, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPatch, path, nil, body, out, opts...)
}

// Delete issues a DELETE request and decodes the JSON response into out
func (c *Client) Delete(ctx context.Context, path string, out interface{}, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, out, opts...)
}

// Do runs one logical request through the full resilience pipeline. Every
// failure is surfaced as *Error; callers never see raw status codes.
func (c *Client) Do(ctx context.Context, method, path string, params url.Values, body, out interface{}, opts ...RequestOption) error {
	reqOpts := requestOptions{}
	for _, opt := range opts {
		opt(&reqOpts)
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("[Client.Do] marshal body: %w", err)
		}
	}

	attempt := requestAttempt{requestID: uuid.New().String()}

	for {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		resp, respBody, err := c.send(ctx, method, path, params, payload, attempt, reqOpts)
		if err != nil {
			// No response received at all; timeouts land here too.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.count(method, KindNetwork)
			c.log.Err(err).Str("request_id", attempt.requestID).Msg("network error")
			return &Error{Kind: KindNetwork, Message: msgNetwork}
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			c.count(method, "")
			return decodeInto(respBody, out)
		}

		if resp.StatusCode == http.StatusUnauthorized && !reqOpts.public {
			if !attempt.reauthAttempted {
				attempt.reauthAttempted = true
				if err := c.refreshSession(ctx); err == nil {
					c.log.Debug().Str("request_id", attempt.requestID).Msg("re-issuing request with refreshed credential")
					continue // re-issue the original request exactly once
				}
			}
			return c.forceLogout(ctx, method, attempt)
		}

		if resp.StatusCode >= 500 && attempt.retryCount < c.maxRetries {
			attempt.retryCount++
			c.countRetry()
			c.log.Warn().
				Str("request_id", attempt.requestID).
				Int("status", resp.StatusCode).
				Int("retry", attempt.retryCount).
				Int("max_retries", c.maxRetries).
				Msg("retrying request")
			if err := c.backoff(ctx, attempt.retryCount); err != nil {
				return err
			}
			continue
		}

		apiErr := classify(resp.StatusCode, respBody)
		c.count(method, apiErr.Kind)
		return apiErr
	}
}

// send builds and issues a single HTTP attempt. The request is rebuilt every
// time so each retry reuses the original body and headers unchanged.
func (c *Client) send(ctx context.Context, method, path string, params url.Values, payload []byte, attempt requestAttempt, reqOpts requestOptions) (*http.Response, []byte, error) {
	target := c.baseURL.JoinPath(strings.TrimPrefix(path, "/"))
	if len(params) > 0 {
		target.RawQuery = params.Encode()
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), bodyReader)
	if err != nil {
		return nil, nil, err
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", attempt.requestID)
	req.Header.Set("X-Request-Time", time.Now().UTC().Format(time.RFC3339))

	if !reqOpts.public && c.session != nil {
		if accessToken := c.session.AccessToken(); accessToken != "" {
			req.Header.Set("Authorization", c.authScheme+" "+accessToken)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	return resp, respBody, nil
}

// refreshSession triggers the session manager's serialized refresh
func (c *Client) refreshSession(ctx context.Context) error {
	if c.session == nil {
		return fmt.Errorf("[Client.refreshSession] no session controller")
	}
	c.countRefresh()
	return c.session.Refresh(ctx)
}

// forceLogout clears the session and redirects to the login entry point.
// This is the only error path with a side-effecting navigation.
func (c *Client) forceLogout(ctx context.Context, method string, attempt requestAttempt) error {
	c.log.Warn().Str("request_id", attempt.requestID).Msg("credential rejected, clearing session")
	if c.session != nil {
		c.session.Logout(ctx)
	}
	if c.onForcedLogout != nil {
		c.onForcedLogout()
	}
	c.count(method, KindUnauthorized)
	return &Error{Kind: KindUnauthorized, Status: http.StatusUnauthorized, Message: msgSessionExpired}
}

// backoff sleeps delay × attemptNumber, aborting as soon as the caller's
// context is cancelled.
func (c *Client) backoff(ctx context.Context, attemptNumber int) error {
	timer := time.NewTimer(c.retryDelay * time.Duration(attemptNumber))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func decodeInto(body []byte, out interface{}) error {
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Kind: KindUnknown, Message: msgUnknown}
	}
	return nil
}
