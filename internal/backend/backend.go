// Package backend wraps the scheduling platform's HTTP API for shiftbot.
//
// It exposes two operations: looking up whether a Telegram identity is
// already registered, and registering a new user. Lookup failures are
// swallowed and reported as "not registered" so that the registration flow
// can still be offered; registration failures surface to the caller.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shiftdesk/shiftbot/internal/models"
)

// Default configuration constants
const (
	// DefaultBaseURL is the backend base URL used when none is configured.
	DefaultBaseURL = "http://web:3000"
	// DefaultTimeout bounds every backend round trip so a hung backend
	// cannot block a user's handler indefinitely.
	DefaultTimeout = 10 * time.Second
)

// BackendError carries the backend's rejection of a registration attempt.
type BackendError struct {
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend registration failed (status %d): %s", e.StatusCode, e.Message)
}

// Opts holds configuration options for the backend client.
type Opts struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Option defines a configuration option for the backend client.
type Option func(*Opts)

// WithBaseURL sets the backend base URL.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// WithHTTPClient injects a custom HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client issues HTTP calls against the scheduling platform backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a backend client with the given options.
func NewClient(opts ...Option) *Client {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	slog.Debug("Backend client created", "base_url", cfg.BaseURL, "timeout", cfg.Timeout)
	return &Client{baseURL: cfg.BaseURL, httpClient: cfg.HTTPClient}
}

// usersResponse mirrors the backend's GET /api/users payload.
type usersResponse struct {
	Users []models.UserRecord `json:"users"`
}

// registerErrorResponse mirrors the backend's non-200 registration payload.
type registerErrorResponse struct {
	StatusMessage string `json:"statusMessage"`
}

// FindByIdentity looks up an existing user by Telegram identity.
//
// It fails softly: any transport, HTTP, or parse error is logged and reported
// as (nil, nil) so the registration flow can still be offered. This conflates
// "definitely new user" with "backend unreachable"; an already registered
// user may be offered registration again during an outage.
func (c *Client) FindByIdentity(ctx context.Context, identity string) (*models.UserRecord, error) {
	if identity == "" {
		return nil, models.ErrEmptyIdentity
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/users", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build user lookup request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Warn("Backend user lookup failed, treating as not registered", "error", err, "identity", identity)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("Backend user lookup returned non-OK status, treating as not registered", "status", resp.StatusCode, "identity", identity)
		return nil, nil
	}

	var payload usersResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		slog.Warn("Backend user lookup returned malformed payload, treating as not registered", "error", err, "identity", identity)
		return nil, nil
	}

	for i := range payload.Users {
		if payload.Users[i].TelegramID == identity {
			slog.Debug("Backend user lookup found existing user", "identity", identity)
			return &payload.Users[i], nil
		}
	}

	slog.Debug("Backend user lookup found no user", "identity", identity)
	return nil, nil
}

// Register creates a new user on the backend.
//
// A non-2xx response yields a *BackendError carrying the human-readable
// message from the response body when one is available. Transport failures
// are returned as wrapped errors distinct from BackendError.
func (c *Client) Register(ctx context.Context, reg models.RegistrationRequest) error {
	if reg.TelegramID == "" {
		return models.ErrEmptyIdentity
	}

	body, err := json.Marshal(reg)
	if err != nil {
		return fmt.Errorf("failed to encode registration request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/register", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build registration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("Backend registration request failed", "error", err, "identity", reg.TelegramID)
		return fmt.Errorf("registration request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := "unknown error"
		var errPayload registerErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errPayload); err == nil && errPayload.StatusMessage != "" {
			message = errPayload.StatusMessage
		}
		slog.Warn("Backend registration rejected", "status", resp.StatusCode, "message", message, "identity", reg.TelegramID)
		return &BackendError{StatusCode: resp.StatusCode, Message: message}
	}

	slog.Info("Backend registration succeeded", "identity", reg.TelegramID)
	return nil
}
