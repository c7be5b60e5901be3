// Package editclient calls a running doodle server's edit endpoints.
// *Client satisfies canvas.Submitter.
package editclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hazyhaar/doodle/editproxy"
	"github.com/hazyhaar/doodle/safe"
)

// Config configures a Client.
type Config struct {
	// BaseURL of the server, e.g. "http://localhost:3000".
	BaseURL string
	// Path of the edit endpoint. Default: "/edit2".
	Path string
	// Timeout bounds each call. Zero means no client-side limit.
	Timeout time.Duration
}

// maxErrorBody caps how much of a non-200 body is read.
const maxErrorBody = 4096

// Client posts edit requests to one endpoint.
type Client struct {
	url    string
	client *http.Client
}

// New creates a Client.
func New(cfg Config) *Client {
	if cfg.Path == "" {
		cfg.Path = "/edit2"
	}
	return &Client{
		url:    strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.TrimLeft(cfg.Path, "/"),
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// StatusError is returned for non-200 responses.
type StatusError struct {
	Code    int
	Message string // "error" field of the body
	Details string // "details" field, when present
}

func (e *StatusError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("HTTP %d: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Message)
}

// Submit sends one request and decodes the reply.
func (c *Client) Submit(ctx context.Context, r editproxy.Request) (*editproxy.Response, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP POST %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := safe.LimitedReadAll(resp.Body, maxErrorBody)
		se := &StatusError{Code: resp.StatusCode}
		var eb struct {
			Error   string `json:"error"`
			Details string `json:"details"`
		}
		if json.Unmarshal(raw, &eb) == nil && eb.Error != "" {
			se.Message, se.Details = eb.Error, eb.Details
		} else {
			se.Message = strings.TrimSpace(string(raw))
		}
		if se.Message == "" {
			se.Message = http.StatusText(resp.StatusCode)
		}
		return nil, se
	}

	var out editproxy.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}
