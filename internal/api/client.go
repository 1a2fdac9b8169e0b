// Copyright (c) 2025 Planly Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/planly/planly-tui/internal/auth"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultTimeout is the default timeout for API requests.
	DefaultTimeout = 30 * time.Second

	// healthTimeout bounds the startup liveness probe.
	healthTimeout = 10 * time.Second

	// bestEffortTimeout bounds the remote half of logout and account deletion.
	// Local credential clearing never waits on the network longer than this.
	bestEffortTimeout = 5 * time.Second

	// maxResponseSize caps response bodies to prevent memory exhaustion.
	maxResponseSize = 2 * 1024 * 1024

	// userAgent identifies the client to the API.
	userAgent = "planly-tui/0.4"
)

// Credential submissions are throttled client-side: a short burst, then one
// attempt every few seconds.
const (
	loginBurst    = 3
	loginInterval = 3 * time.Second
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotAuthenticated indicates no session is stored.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrSessionExpired indicates the refresh token was rejected and the
	// local session has been cleared. The user must log in again.
	ErrSessionExpired = errors.New("session expired")

	// ErrLoginThrottled indicates too many credential submissions in a row.
	ErrLoginThrottled = errors.New("too many login attempts, slow down")
)

// =============================================================================
// CLIENT
// =============================================================================

// Client is the gateway for all outbound Planly API calls. It reads the
// current access token from the token store on every request and makes
// credential expiry invisible to callers via a single-flight refresh.
type Client struct {
	baseURL string
	tokens  *auth.TokenStore

	// mu guards httpClient: config reloads may swap it while requests are
	// in flight.
	mu         sync.RWMutex
	httpClient *http.Client

	// refreshGroup collapses concurrent refresh attempts into one call.
	refreshGroup singleflight.Group

	// loginLimiter throttles credential login/register submissions.
	loginLimiter *rate.Limiter
}

// NewClient creates a gateway client for the API at baseURL.
func NewClient(baseURL string, tokens *auth.TokenStore) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
			},
		},
		tokens:       tokens,
		loginLimiter: rate.NewLimiter(rate.Every(loginInterval), loginBurst),
	}
}

// WithHTTPClient replaces the underlying HTTP client. Used by tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.mu.Lock()
	c.httpClient = hc
	c.mu.Unlock()
	return c
}

// WithTimeout sets the request timeout. A fresh client is swapped in so
// requests already in flight keep the timeout they started with.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.mu.Lock()
	c.httpClient = &http.Client{
		Timeout:   timeout,
		Transport: c.httpClient.Transport,
	}
	c.mu.Unlock()
	return c
}

// http returns the current HTTP client for a single request.
func (c *Client) http() *http.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.httpClient
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// SESSION QUERIES
// =============================================================================

// GetToken returns the current access token, if any. Collaborating surfaces
// use this to gate behavior without duplicating refresh logic.
func (c *Client) GetToken() (string, bool) {
	s, ok := c.tokens.Get()
	if !ok {
		return "", false
	}
	return s.AccessToken, true
}

// CheckAuth reports whether a session is currently stored.
func (c *Client) CheckAuth() bool {
	return c.tokens.IsAuthenticated()
}

// =============================================================================
// HEALTH
// =============================================================================

// HealthCheck probes the liveness endpoint. Failure is a boolean, not an
// error: startup uses this to decide whether to proceed at all.
func (c *Client) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	status, body, err := c.send(ctx, http.MethodGet, "/health", nil, "")
	if err != nil {
		log.Warn().Err(err).Msg("health check failed")
		return false
	}
	if status != http.StatusOK {
		log.Warn().Int("status", status).Msg("health check returned non-OK status")
		return false
	}

	var hr healthResponse
	if err := json.Unmarshal(body, &hr); err != nil {
		return false
	}
	return hr.Status == "ok"
}

// =============================================================================
// CREDENTIAL LOGIN
// =============================================================================

// Login authenticates with email/password and persists the resulting session.
// Returns the user ID.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	if !c.loginLimiter.Allow() {
		return "", ErrLoginThrottled
	}

	var tr tokenResponse
	err := c.postUnauthenticated(ctx, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &tr)
	if err != nil {
		return "", err
	}

	session := auth.Session{AccessToken: tr.AccessToken, RefreshToken: tr.RefreshToken}
	if err := c.tokens.Set(session); err != nil {
		return "", fmt.Errorf("failed to persist session: %w", err)
	}

	log.Info().Str("token", session.Fingerprint()).Msg("logged in")
	return tr.UserID, nil
}

// Register creates a new account and persists the resulting session.
func (c *Client) Register(ctx context.Context, email, password, fullName string) (string, error) {
	if !c.loginLimiter.Allow() {
		return "", ErrLoginThrottled
	}

	var tr tokenResponse
	err := c.postUnauthenticated(ctx, "/auth/register", map[string]string{
		"email":     email,
		"password":  password,
		"full_name": fullName,
	}, &tr)
	if err != nil {
		return "", err
	}

	session := auth.Session{AccessToken: tr.AccessToken, RefreshToken: tr.RefreshToken}
	if err := c.tokens.Set(session); err != nil {
		return "", fmt.Errorf("failed to persist session: %w", err)
	}

	log.Info().Str("token", session.Fingerprint()).Msg("registered")
	return tr.UserID, nil
}

// OAuthLoginURL builds the browser entry point for the provider-delegated
// login flow. redirect must be the loopback callback URL.
func (c *Client) OAuthLoginURL(redirect string) string {
	return c.baseURL + "/auth/google/login?redirect=" + url.QueryEscape(redirect)
}

// =============================================================================
// AUTHENTICATED OPERATIONS
// =============================================================================

// Me fetches the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := c.doAuth(ctx, http.MethodGet, "/auth/me", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// AgentProcess forwards a user prompt (plus conversation context) to the
// agent. Auth retry is handled here so feature code never re-implements it.
func (c *Client) AgentProcess(ctx context.Context, prompt, conversationID string, history []AgentMessage) (*AgentReply, error) {
	req := agentProcessRequest{
		UserPrompt:     prompt,
		ConversationID: conversationID,
		Source:         "desktop",
		Context:        agentContext{Messages: history},
	}

	var reply AgentReply
	if err := c.doAuth(ctx, http.MethodPost, "/agent/process", req, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// AgentConfirm confirms (or implicitly declines) proposed agent actions.
func (c *Client) AgentConfirm(ctx context.Context, conversationID string, actionIDs []string) (*ConfirmReply, error) {
	req := confirmRequest{ConversationID: conversationID, ActionIDs: actionIDs}

	var reply ConfirmReply
	if err := c.doAuth(ctx, http.MethodPost, "/agent/confirm", req, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// =============================================================================
// ACCOUNT LIFECYCLE
// =============================================================================

// Logout ends the session. The remote call is best-effort; local credentials
// are cleared no matter what, so logout never blocks on a dead network.
func (c *Client) Logout(ctx context.Context) error {
	var remoteErr error
	if token, ok := c.GetToken(); ok {
		rctx, cancel := context.WithTimeout(ctx, bestEffortTimeout)
		defer cancel()

		status, _, err := c.send(rctx, http.MethodPost, "/auth/logout", nil, token)
		if err != nil {
			remoteErr = err
		} else if status >= 400 {
			remoteErr = &APIError{Status: status}
		}
		if remoteErr != nil {
			log.Warn().Err(remoteErr).Msg("remote logout failed, clearing local session anyway")
		}
	}

	if err := c.tokens.Clear(); err != nil {
		return fmt.Errorf("failed to clear local session: %w", err)
	}
	return remoteErr
}

// DeleteAccount requests account deletion and clears local credentials
// regardless of the server outcome.
func (c *Client) DeleteAccount(ctx context.Context) error {
	var remoteErr error
	if token, ok := c.GetToken(); ok {
		rctx, cancel := context.WithTimeout(ctx, bestEffortTimeout)
		defer cancel()

		status, _, err := c.send(rctx, http.MethodDelete, "/auth/account", nil, token)
		if err != nil {
			remoteErr = err
		} else if status >= 400 {
			remoteErr = &APIError{Status: status}
		}
		if remoteErr != nil {
			log.Warn().Err(remoteErr).Msg("remote account deletion failed, clearing local session anyway")
		}
	}

	if err := c.tokens.Clear(); err != nil {
		return fmt.Errorf("failed to clear local session: %w", err)
	}
	return remoteErr
}

// =============================================================================
// AUTHENTICATED REQUEST CORE
// =============================================================================

// doAuth performs an authenticated request with at most one refresh-and-retry.
// A request is never retried twice for the same expiry: if the replayed
// attempt is also rejected, the caller gets ErrSessionExpired.
func (c *Client) doAuth(ctx context.Context, method, path string, body, out any) error {
	session, ok := c.tokens.Get()
	if !ok {
		return ErrNotAuthenticated
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	status, respBody, err := c.send(ctx, method, path, payload, session.AccessToken)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized {
		newToken, err := c.refreshAccessToken(ctx, session.AccessToken)
		if err != nil {
			return err
		}

		status, respBody, err = c.send(ctx, method, path, payload, newToken)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			// Fresh token rejected too; do not loop.
			return ErrSessionExpired
		}
	}

	return decodeResponse(status, respBody, out)
}

// refreshAccessToken exchanges the stored refresh token for a new session.
// Concurrent callers share one in-flight refresh: its outcome is linearized,
// so N simultaneous expiries produce exactly one refresh call.
func (c *Client) refreshAccessToken(ctx context.Context, staleToken string) (string, error) {
	v, err, _ := c.refreshGroup.Do("refresh", func() (any, error) {
		current, ok := c.tokens.Get()
		if !ok {
			// Session already torn down by an earlier failed refresh.
			return nil, ErrSessionExpired
		}

		// A caller that lost the race arrives after the winner already
		// replaced the session; reuse it instead of refreshing again.
		if current.AccessToken != staleToken {
			return current.AccessToken, nil
		}

		status, body, err := c.send(ctx, http.MethodPost, "/auth/refresh", mustMarshal(map[string]string{
			"refresh_token": current.RefreshToken,
		}), "")
		if err != nil {
			// Transient network failure: report it, keep the session.
			return nil, fmt.Errorf("token refresh failed: %w", err)
		}

		if status != http.StatusOK {
			// The refresh token itself was rejected. This is the only path
			// that unilaterally destroys the stored session.
			if clearErr := c.tokens.Clear(); clearErr != nil {
				log.Error().Err(clearErr).Msg("failed to clear session after refresh rejection")
			}
			log.Warn().Int("status", status).Msg("refresh token rejected, session cleared")
			return nil, fmt.Errorf("%w: %s", ErrSessionExpired, errorDetail(status, body))
		}

		var rr refreshResponse
		if err := json.Unmarshal(body, &rr); err != nil {
			return nil, fmt.Errorf("failed to parse refresh response: %w", err)
		}

		next := auth.Session{
			AccessToken:  rr.AccessToken,
			RefreshToken: rr.RefreshToken,
		}
		// The server may rotate only the access token.
		if next.RefreshToken == "" {
			next.RefreshToken = current.RefreshToken
		}

		if err := c.tokens.Set(next); err != nil {
			return nil, fmt.Errorf("failed to persist refreshed session: %w", err)
		}

		log.Debug().Str("token", next.Fingerprint()).Msg("session refreshed")
		return next.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// =============================================================================
// HTTP PLUMBING
// =============================================================================

// postUnauthenticated posts a JSON body without credentials and decodes the reply.
func (c *Client) postUnauthenticated(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	status, respBody, err := c.send(ctx, http.MethodPost, path, payload, "")
	if err != nil {
		return err
	}
	return decodeResponse(status, respBody, out)
}

// send performs a single HTTP request and returns status plus body. A fresh
// request is built per call so retried requests replay their body cleanly.
func (c *Client) send(ctx context.Context, method, path string, body []byte, token string) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http().Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}

// decodeResponse converts a non-2xx status to *APIError, otherwise unmarshals
// the body into out (when out is non-nil).
func decodeResponse(status int, body []byte, out any) error {
	if status >= 400 {
		return &APIError{Status: status, Detail: parseDetail(body)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// parseDetail extracts the server's error detail, if the body carries one.
func parseDetail(body []byte) string {
	var er apiErrorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Detail != "" {
		return er.Detail
	}
	return ""
}

// errorDetail renders a status+body pair for wrapping into error messages.
func errorDetail(status int, body []byte) string {
	if detail := parseDetail(body); detail != "" {
		return fmt.Sprintf("HTTP %d: %s", status, detail)
	}
	return fmt.Sprintf("HTTP %d", status)
}

// mustMarshal marshals a value that cannot fail (maps of strings).
func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
