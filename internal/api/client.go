package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"readearn/internal/logger"

	"github.com/google/uuid"
)

const (
	refreshPath = "/auth/token/refresh/"
	loginPath   = "/auth/login/"

	maxBodySize = 4 << 20
)

// TokenSource is where the client reads and writes the bearer token pair.
// Implementations live in the auth package.
type TokenSource interface {
	Tokens(ctx context.Context) (access, refresh string, err error)
	SetTokens(ctx context.Context, access, refresh string) error
	Clear(ctx context.Context) error
}

// SessionExpiredFunc is called once the session can no longer be refreshed.
type SessionExpiredFunc func(ctx context.Context)

// Client talks to the platform REST API. One Client carries one user's
// tokens; there is no package-level instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	onExpired  SessionExpiredFunc

	// serializes refreshes so concurrent 401s share one round-trip
	refreshMu sync.Mutex
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithSessionExpired registers the logout hook.
func WithSessionExpired(fn SessionExpiredFunc) Option {
	return func(c *Client) { c.onExpired = fn }
}

// NewClient creates a client for baseURL using tokens for authentication.
func NewClient(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoginResult is the token pair issued by the login endpoint.
type LoginResult struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Login exchanges credentials for a token pair and stores it.
// A 401 here means bad credentials and never triggers a refresh.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	payload, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return nil, err
	}
	status, raw, err := c.send(ctx, http.MethodPost, loginPath, payload, "")
	if err != nil {
		return nil, err
	}
	var res LoginResult
	if err := decode(status, raw, &res); err != nil {
		return nil, err
	}
	if res.Access == "" {
		return nil, fmt.Errorf("%w: login response without access token", ErrUnexpectedResponse)
	}
	if c.tokens != nil {
		if err := c.tokens.SetTokens(ctx, res.Access, res.Refresh); err != nil {
			return nil, fmt.Errorf("store tokens: %w", err)
		}
	}
	return &res, nil
}

// Logout forgets the stored tokens.
func (c *Client) Logout(ctx context.Context) error {
	if c.tokens == nil {
		return nil
	}
	return c.tokens.Clear(ctx)
}

// Do performs an authenticated JSON request. body and out may be nil.
//
// A 401 is answered by one token refresh and one retry. When that is not
// possible the tokens are cleared, the expiry hook runs and ErrSessionExpired
// is returned.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	access := ""
	if c.tokens != nil {
		var err error
		access, _, err = c.tokens.Tokens(ctx)
		if err != nil {
			return fmt.Errorf("load tokens: %w", err)
		}
	}

	status, raw, err := c.send(ctx, method, path, payload, access)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized && c.tokens != nil {
		fresh, err := c.refreshAccess(ctx, access)
		if err != nil {
			return err
		}
		status, raw, err = c.send(ctx, method, path, payload, fresh)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			c.expire(ctx, "rejected after refresh")
			return fmt.Errorf("%s %s: %w", method, path, ErrSessionExpired)
		}
	}

	return decode(status, raw, out)
}

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// refreshAccess returns an access token newer than used. If another
// goroutine already refreshed while we waited, its token is reused.
func (c *Client) refreshAccess(ctx context.Context, used string) (string, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	access, refresh, err := c.tokens.Tokens(ctx)
	if err != nil {
		return "", fmt.Errorf("load tokens: %w", err)
	}
	if access != "" && access != used {
		refreshTotal.WithLabelValues("shared").Inc()
		return access, nil
	}
	if refresh == "" {
		c.expire(ctx, "no refresh token")
		return "", ErrSessionExpired
	}

	payload, err := json.Marshal(map[string]string{"refresh": refresh})
	if err != nil {
		return "", err
	}
	status, raw, err := c.send(ctx, http.MethodPost, refreshPath, payload, "")
	if err != nil {
		// network trouble is not a verdict on the session
		refreshTotal.WithLabelValues("error").Inc()
		return "", err
	}

	switch {
	case status == http.StatusBadRequest, status == http.StatusUnauthorized, status == http.StatusForbidden:
		c.expire(ctx, "refresh rejected")
		return "", ErrSessionExpired
	case status < 200 || status >= 300:
		// outage of the refresh endpoint: keep the tokens, the next call retries
		refreshTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("refresh token: %w", parseAPIError(status, raw))
	}

	var pair LoginResult
	if json.Unmarshal(raw, &pair) != nil || pair.Access == "" {
		c.expire(ctx, "refresh without access token")
		return "", ErrSessionExpired
	}
	if pair.Refresh == "" {
		pair.Refresh = refresh
	}
	if err := c.tokens.SetTokens(ctx, pair.Access, pair.Refresh); err != nil {
		return "", fmt.Errorf("store tokens: %w", err)
	}

	refreshTotal.WithLabelValues("ok").Inc()
	logger.WithContext(ctx).Debug("access token refreshed")
	return pair.Access, nil
}

func (c *Client) expire(ctx context.Context, reason string) {
	refreshTotal.WithLabelValues("expired").Inc()
	logger.WithContext(ctx).Warn("api session expired", "reason", reason)

	if err := c.tokens.Clear(ctx); err != nil {
		logger.WithContext(ctx).Error("failed to clear tokens", "error", err)
	}
	if c.onExpired != nil {
		c.onExpired(ctx)
	}
}

// send performs one HTTP round-trip and returns the status and body.
func (c *Client) send(ctx context.Context, method, path string, payload []byte, access string) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}
	requestID := logger.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(method, "error").Inc()
		logger.WithContext(ctx).Debug("api request failed", "method", method, "path", path, "error", err)
		return 0, nil, &TransportError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		requestsTotal.WithLabelValues(method, "error").Inc()
		return 0, nil, &TransportError{Method: method, Path: path, Err: err}
	}

	requestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()
	logger.WithContext(ctx).Debug("api request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)
	return resp.StatusCode, raw, nil
}

func decode(status int, raw []byte, out any) error {
	if status < 200 || status >= 300 {
		return parseAPIError(status, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
	}
	return nil
}
