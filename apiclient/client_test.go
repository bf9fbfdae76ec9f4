package apiclient_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/laborportal/authkit/apiclient"
)

// fakeSession is a minimal SessionController for client tests
type fakeSession struct {
	mu         sync.Mutex
	token      string
	newToken   string
	refreshErr error
	refreshed  int
	loggedOut  int
}

func (s *fakeSession) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *fakeSession) Refresh(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshed++
	if s.refreshErr != nil {
		return s.refreshErr
	}
	s.token = s.newToken
	return nil
}

func (s *fakeSession) Logout(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loggedOut++
	s.token = ""
}

func (s *fakeSession) stats() (refreshed, loggedOut int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshed, s.loggedOut
}

func newTestClient(t *testing.T, serverURL string, session apiclient.SessionController, opts ...apiclient.Option) *apiclient.Client {
	t.Helper()
	opts = append([]apiclient.Option{apiclient.WithRetryDelay(5 * time.Millisecond)}, opts...)
	client, err := apiclient.New(serverURL, session, opts...)
	require.NoError(t, err)
	return client
}

func TestClient_SuccessDecodesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok1", r.Header.Get("Authorization"))
		require.NotEmpty(t, r.Header.Get("X-Request-ID"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"id":"42"}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, &fakeSession{token: "tok1"})

	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, client.Get(context.Background(), "/companies/42", nil, &out))
	require.Equal(t, "42", out.Data.ID)
}

func TestClient_QueryParameters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "2", r.URL.Query().Get("page"))
		require.Equal(t, "al mansouri", r.URL.Query().Get("search"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, &fakeSession{token: "tok1"})

	params := url.Values{}
	params.Set("page", "2")
	params.Set("search", "al mansouri")
	require.NoError(t, client.Get(context.Background(), "/employees", params, nil))
}

func TestClient_BoundedRetryOnServerError(t *testing.T) {
	var mu sync.Mutex
	var attemptTimes []time.Time

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attemptTimes = append(attemptTimes, time.Now())
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, &fakeSession{token: "tok1"},
		apiclient.WithMaxRetries(3), apiclient.WithRetryDelay(20*time.Millisecond))

	err := client.Get(context.Background(), "/reports", nil, nil)
	require.Error(t, err)
	require.Equal(t, apiclient.KindServer, apiclient.KindOf(err))

	// Exactly 1 + maxRetries attempts, with non-decreasing gaps.
	require.Len(t, attemptTimes, 4)
	var lastGap time.Duration
	for i := 1; i < len(attemptTimes); i++ {
		gap := attemptTimes[i].Sub(attemptTimes[i-1])
		require.GreaterOrEqual(t, gap+5*time.Millisecond, lastGap)
		lastGap = gap
	}
}

func TestClient_ServerRecoversWithinRetryBudget(t *testing.T) {
	var mu sync.Mutex
	attempts := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n <= 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, &fakeSession{token: "tok1"})

	var out struct {
		Status string `json:"status"`
	}
	require.NoError(t, client.Get(context.Background(), "/health", nil, &out))
	require.Equal(t, "ok", out.Status)
	require.Equal(t, 4, attempts)
}

func TestClient_RetryReusesOriginalBody(t *testing.T) {
	var mu sync.Mutex
	var bodies []string
	attempts := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(buf))
		attempts++
		n := attempts
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, &fakeSession{token: "tok1"})

	require.NoError(t, client.Post(context.Background(), "/employees", map[string]string{"name": "Fatima"}, nil))
	require.Len(t, bodies, 2)
	require.Equal(t, bodies[0], bodies[1])
}

func TestClient_RefreshAndReissueOn401(t *testing.T) {
	var mu sync.Mutex
	var seenTokens []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		mu.Lock()
		seenTokens = append(seenTokens, auth)
		mu.Unlock()
		if auth != "Bearer tok2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	session := &fakeSession{token: "tok1", newToken: "tok2"}
	client := newTestClient(t, server.URL, session)

	require.NoError(t, client.Get(context.Background(), "/profile", nil, nil))

	refreshed, loggedOut := session.stats()
	require.Equal(t, 1, refreshed)
	require.Zero(t, loggedOut)
	require.Equal(t, []string{"Bearer tok1", "Bearer tok2"}, seenTokens)
}

func TestClient_NoDoubleReauth(t *testing.T) {
	attempts := 0
	var mu sync.Mutex

	// The server rejects even the refreshed credential.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		mu.Unlock()
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	session := &fakeSession{token: "tok1", newToken: "tok2"}
	redirected := false
	client := newTestClient(t, server.URL, session, apiclient.WithForcedLogout(func() { redirected = true }))

	err := client.Get(context.Background(), "/profile", nil, nil)
	require.Error(t, err)
	require.Equal(t, apiclient.KindUnauthorized, apiclient.KindOf(err))

	refreshed, loggedOut := session.stats()
	require.Equal(t, 1, refreshed) // never refreshed a second time
	require.Equal(t, 1, loggedOut)
	require.True(t, redirected)
	require.Equal(t, 2, attempts)
}

func TestClient_RefreshFailureForcesLogout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	session := &fakeSession{token: "tok1", refreshErr: context.DeadlineExceeded}
	redirected := false
	client := newTestClient(t, server.URL, session, apiclient.WithForcedLogout(func() { redirected = true }))

	err := client.Get(context.Background(), "/profile", nil, nil)
	require.Equal(t, apiclient.KindUnauthorized, apiclient.KindOf(err))

	refreshed, loggedOut := session.stats()
	require.Equal(t, 1, refreshed)
	require.Equal(t, 1, loggedOut)
	require.True(t, redirected)
}

func TestClient_PublicRequestSkipsAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	session := &fakeSession{token: "tok1"}
	client := newTestClient(t, server.URL, session)

	err := client.Post(context.Background(), "/auth/login", map[string]string{"identifier": "x"}, nil, apiclient.Public())
	require.Equal(t, apiclient.KindUnauthorized, apiclient.KindOf(err))

	// Public endpoints never trigger re-authentication or session clearing.
	refreshed, loggedOut := session.stats()
	require.Zero(t, refreshed)
	require.Zero(t, loggedOut)
}

func TestClient_Classification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    apiclient.Kind
		message string
	}{
		{"forbidden", http.StatusForbidden, "", apiclient.KindPermission, "You do not have permission to access this resource."},
		{"not found", http.StatusNotFound, "", apiclient.KindNotFound, "The requested resource was not found."},
		{"rate limited", http.StatusTooManyRequests, "", apiclient.KindRateLimited, "Too many requests. Please try again later."},
		{"unknown with message", http.StatusTeapot, `{"message":"short and stout"}`, apiclient.KindUnknown, "short and stout"},
		{"unknown without message", http.StatusTeapot, ``, apiclient.KindUnknown, "An unexpected error occurred."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			client := newTestClient(t, server.URL, &fakeSession{token: "tok1"})
			err := client.Get(context.Background(), "/x", nil, nil)

			require.Equal(t, tc.kind, apiclient.KindOf(err))
			var apiErr *apiclient.Error
			require.ErrorAs(t, err, &apiErr)
			require.Equal(t, tc.message, apiErr.Message)
			require.Equal(t, tc.status, apiErr.Status)
		})
	}
}

func TestClient_ValidationErrorCarriesFieldDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"Validation failed","errors":{"email":["must be a valid email"],"name":["is required"]}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, &fakeSession{token: "tok1"})
	err := client.Post(context.Background(), "/employees", map[string]string{}, nil)

	var apiErr *apiclient.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, apiclient.KindValidation, apiErr.Kind)
	require.Equal(t, []string{"must be a valid email"}, apiErr.Fields["email"])
	require.Equal(t, []string{"is required"}, apiErr.Fields["name"])
}

func TestClient_RateLimitedNeverRetried(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, &fakeSession{token: "tok1"})
	err := client.Get(context.Background(), "/x", nil, nil)

	require.Equal(t, apiclient.KindRateLimited, apiclient.KindOf(err))
	require.Equal(t, 1, attempts)
}

func TestClient_NetworkErrorNotRetried(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	session := &fakeSession{token: "tok1"}
	client := newTestClient(t, server.URL, session)

	err := client.Get(context.Background(), "/x", nil, nil)
	require.Equal(t, apiclient.KindNetwork, apiclient.KindOf(err))

	refreshed, loggedOut := session.stats()
	require.Zero(t, refreshed)
	require.Zero(t, loggedOut)
}

func TestClient_CancellationStopsBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, &fakeSession{token: "tok1"},
		apiclient.WithRetryDelay(5*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- client.Get(ctx, "/x", nil, nil)
	}()

	time.Sleep(50 * time.Millisecond) // let the first attempt fail and enter backoff
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("request did not stop after cancellation")
	}
}

func TestClient_InvalidBaseURL(t *testing.T) {
	_, err := apiclient.New("not a url", nil)
	require.Error(t, err)

	_, err = apiclient.New("", nil)
	require.Error(t, err)
}
