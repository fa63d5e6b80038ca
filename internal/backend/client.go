// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     backend
// Description: HTTP client for the InboxPilot backend
// Author:      Mike Stoffels
// Created:     2025-12-11
// License:     MIT
// ============================================================================

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inboxpilot/voicepilot/internal/voice"
	"github.com/inboxpilot/voicepilot/pkg/core/logging"
)

// Client talks to the InboxPilot backend. It implements every collaborator
// the voice controller needs: transcription, synthesis, the LLM assistant
// and the snapshot source.
type Client struct {
	baseURL    string
	apiKey     string
	providers  []string
	httpClient *http.Client
	logger     *logging.Logger
}

// Config holds backend client configuration
type Config struct {
	BaseURL string
	APIKey  string

	// Providers filters the snapshot to these mail providers
	Providers []string

	Timeout time.Duration
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8000",
		Timeout: 60 * time.Second,
	}
}

// NewClient creates a new backend client
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfig().BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		providers: cfg.Providers,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logging.New("backend-client"),
	}
}

var (
	_ voice.Transcriber    = (*Client)(nil)
	_ voice.Synthesizer    = (*Client)(nil)
	_ voice.Assistant      = (*Client)(nil)
	_ voice.SnapshotSource = (*Client)(nil)
)

// BaseURL returns the backend address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// envelope is the common part of every JSON response
type envelope struct {
	OK        *bool  `json:"ok"`
	Queued    bool   `json:"queued"`
	JobID     string `json:"job_id"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	Detail    string `json:"detail"`
}

// failed reports an ok:false response that is not a queued job
func (e envelope) failed() bool {
	return e.OK != nil && !*e.OK && !e.Queued
}

// newRequest builds a request carrying the API key and a request id
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	return req, nil
}

// postJSON sends in as JSON and decodes the response into out
func (c *Client) postJSON(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, out)
}

// getJSON fetches path and decodes the response into out
func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

// doJSON executes req. Non-2xx statuses and ok:false bodies become an
// *APIError; queued responses are left to the caller.
func (c *Client) doJSON(req *http.Request, out interface{}) error {
	data, err := c.do(req)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if env.failed() {
		return newAPIError(http.StatusOK, env)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// do executes req and returns the body of a 2xx response
func (c *Client) do(req *http.Request) ([]byte, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("Backend request",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
		"request_id", req.Header.Get("X-Request-ID"))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var env envelope
		if json.Unmarshal(data, &env) != nil || (env.Message == "" && env.Detail == "") {
			env.Message = strings.TrimSpace(string(data))
		}
		return nil, newAPIError(resp.StatusCode, env)
	}
	return data, nil
}

// HealthStatus represents the backend health
type HealthStatus struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// HealthCheck checks if the backend is reachable
func (c *Client) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return nil, err
	}
	data, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var status HealthStatus
	if err := json.Unmarshal(data, &status); err != nil || status.Status == "" {
		status.Status = "ok"
	}
	return &status, nil
}
