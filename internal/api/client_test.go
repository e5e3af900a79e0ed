package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memTokens struct {
	mu      sync.Mutex
	access  string
	refresh string
	cleared int
}

func (m *memTokens) Tokens(context.Context) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.access, m.refresh, nil
}

func (m *memTokens) SetTokens(_ context.Context, access, refresh string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access, m.refresh = access, refresh
	return nil
}

func (m *memTokens) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access, m.refresh = "", ""
	m.cleared++
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestDoAttachesBearerAndRequestID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer a1", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		writeJSON(w, 200, map[string]string{"slug": "go"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, &memTokens{access: "a1", refresh: "r1"})
	var out struct {
		Slug string `json:"slug"`
	}
	require.NoError(t, c.Get(context.Background(), "/articles/go/", &out))
	assert.Equal(t, "go", out.Slug)
}

func TestDoRefreshesOnceAndRetries(t *testing.T) {
	var refreshes, calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == refreshPath {
			atomic.AddInt32(&refreshes, 1)
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			assert.Equal(t, "r1", body["refresh"])
			writeJSON(w, 200, map[string]string{"access": "a2"})
			return
		}
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("Authorization") != "Bearer a2" {
			writeJSON(w, 401, map[string]string{"detail": "token expired"})
			return
		}
		writeJSON(w, 200, map[string]any{"balance": "10.00"})
	}))
	defer srv.Close()

	tokens := &memTokens{access: "a1", refresh: "r1"}
	c := NewClient(srv.URL, tokens)

	require.NoError(t, c.Get(context.Background(), "/wallet/", nil))
	assert.EqualValues(t, 1, atomic.LoadInt32(&refreshes))
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))

	access, refresh, _ := tokens.Tokens(context.Background())
	assert.Equal(t, "a2", access)
	assert.Equal(t, "r1", refresh, "refresh token kept when the response omits it")
}

func TestSecondUnauthorizedIsFatal(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == refreshPath {
			writeJSON(w, 200, map[string]string{"access": "a2", "refresh": "r2"})
			return
		}
		atomic.AddInt32(&calls, 1)
		writeJSON(w, 401, map[string]string{"detail": "nope"})
	}))
	defer srv.Close()

	tokens := &memTokens{access: "a1", refresh: "r1"}
	expired := 0
	c := NewClient(srv.URL, tokens, WithSessionExpired(func(context.Context) { expired++ }))

	err := c.Get(context.Background(), "/wallet/", nil)
	require.ErrorIs(t, err, ErrSessionExpired)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls), "exactly one retry")
	assert.Equal(t, 1, expired)
	assert.Equal(t, 1, tokens.cleared)
}

func TestRejectedRefreshIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == refreshPath {
			writeJSON(w, 401, map[string]string{"detail": "refresh expired"})
			return
		}
		writeJSON(w, 401, map[string]string{"detail": "token expired"})
	}))
	defer srv.Close()

	tokens := &memTokens{access: "a1", refresh: "r1"}
	expired := 0
	c := NewClient(srv.URL, tokens, WithSessionExpired(func(context.Context) { expired++ }))

	err := c.Post(context.Background(), "/articles/1/start-reading/", nil, nil)
	require.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, 1, expired)
	access, _, _ := tokens.Tokens(context.Background())
	assert.Empty(t, access)
}

func TestRefreshOutageKeepsSession(t *testing.T) {
	var refreshes int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == refreshPath {
			if atomic.AddInt32(&refreshes, 1) == 1 {
				writeJSON(w, 503, map[string]string{"detail": "maintenance"})
				return
			}
			writeJSON(w, 200, map[string]string{"access": "a2"})
			return
		}
		if r.Header.Get("Authorization") != "Bearer a2" {
			writeJSON(w, 401, map[string]string{"detail": "token expired"})
			return
		}
		writeJSON(w, 200, map[string]string{"balance": "1"})
	}))
	defer srv.Close()

	tokens := &memTokens{access: "a1", refresh: "r1"}
	expired := 0
	c := NewClient(srv.URL, tokens, WithSessionExpired(func(context.Context) { expired++ }))

	err := c.Get(context.Background(), "/wallet/", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransient)
	assert.NotErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, 0, expired)
	access, refresh, _ := tokens.Tokens(context.Background())
	assert.Equal(t, "a1", access)
	assert.Equal(t, "r1", refresh)

	// the endpoint is back: the same tokens recover the session
	require.NoError(t, c.Get(context.Background(), "/wallet/", nil))
	access, refresh, _ = tokens.Tokens(context.Background())
	assert.Equal(t, "a2", access)
	assert.Equal(t, "r1", refresh)
}

func TestRefreshWithoutAccessIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == refreshPath {
			writeJSON(w, 200, map[string]string{"refresh": "r2"})
			return
		}
		writeJSON(w, 401, map[string]string{"detail": "token expired"})
	}))
	defer srv.Close()

	expired := 0
	c := NewClient(srv.URL, &memTokens{access: "a1", refresh: "r1"}, WithSessionExpired(func(context.Context) { expired++ }))
	err := c.Get(context.Background(), "/wallet/", nil)
	require.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, 1, expired)
}

func TestMissingRefreshTokenIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == refreshPath {
			t.Error("refresh must not be called without a refresh token")
		}
		writeJSON(w, 401, map[string]string{"detail": "token expired"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, &memTokens{access: "a1"})
	err := c.Get(context.Background(), "/wallet/", nil)
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	var refreshes int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == refreshPath {
			atomic.AddInt32(&refreshes, 1)
			writeJSON(w, 200, map[string]string{"access": "a2", "refresh": "r2"})
			return
		}
		if r.Header.Get("Authorization") != "Bearer a2" {
			writeJSON(w, 401, map[string]string{"detail": "token expired"})
			return
		}
		writeJSON(w, 200, map[string]string{})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, &memTokens{access: "a1", refresh: "r1"})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Get(context.Background(), "/wallet/", nil))
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, atomic.LoadInt32(&refreshes))
}

func TestLoginStoresTokensWithoutRefreshOn401(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case loginPath:
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["password"] != "secret" {
				writeJSON(w, 401, map[string]string{"detail": "No active account found with the given credentials"})
				return
			}
			writeJSON(w, 200, map[string]string{"access": "a1", "refresh": "r1"})
		default:
			t.Errorf("unexpected call %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	tokens := &memTokens{}
	c := NewClient(srv.URL, tokens)

	_, err := c.Login(context.Background(), "ann", "wrong")
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 0, tokens.cleared)

	res, err := c.Login(context.Background(), "ann", "secret")
	require.NoError(t, err)
	assert.Equal(t, "a1", res.Access)
	assert.Equal(t, "r1", tokens.refresh)
}

func TestTransportErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(url, &memTokens{access: "a1"})
	err := c.Get(context.Background(), "/wallet/", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransient))

	var te *TransportError
	assert.True(t, errors.As(err, &te))
}

func TestUnexpectedShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{"results": "nope"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, &memTokens{access: "a1"})
	var out []map[string]any
	err := c.Get(context.Background(), "/articles/", &out)
	require.ErrorIs(t, err, ErrUnexpectedResponse)
}
