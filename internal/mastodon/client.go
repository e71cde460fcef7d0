// Package mastodon publishes statuses to a Mastodon instance.
package mastodon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultVisibility = "public"
	DefaultTimeout    = 30 * time.Second

	maxErrorBody = 512
)

// Status is the subset of the created status the bot reports on.
type Status struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	URI       string    `json:"uri"`
	CreatedAt time.Time `json:"created_at"`
}

// APIError is returned for any non-2xx answer from the instance.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("mastodon returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("mastodon returned status %d: %s", e.StatusCode, e.Body)
}

// Client posts statuses with a bearer token scoped to write:statuses.
type Client struct {
	http        *http.Client
	instanceURL string
	token       string
	visibility  string
}

// Config describes the account to post as.
type Config struct {
	InstanceURL string
	AccessToken string
	Visibility  string
	Timeout     time.Duration
}

// NewClient creates a Client. A nil httpClient gets one with cfg.Timeout.
func NewClient(httpClient *http.Client, cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Visibility == "" {
		cfg.Visibility = DefaultVisibility
	}
	return &Client{
		http:        httpClient,
		instanceURL: strings.TrimRight(cfg.InstanceURL, "/"),
		token:       cfg.AccessToken,
		visibility:  cfg.Visibility,
	}
}

// PostStatus creates one status. It makes a single request and never retries;
// idempotencyKey lets the instance drop a replay of the same request.
func (c *Client) PostStatus(ctx context.Context, text, idempotencyKey string) (*Status, error) {
	form := url.Values{}
	form.Set("status", text)
	form.Set("visibility", c.visibility)

	endpoint := c.instanceURL + "/api/v1/statuses"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post status: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read status response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: trimBody(body)}
	}

	var status Status
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}
	return &status, nil
}

// trimBody keeps at most maxErrorBody bytes of body without splitting a rune.
func trimBody(body []byte) string {
	msg := strings.TrimSpace(string(body))
	if len(msg) <= maxErrorBody {
		return msg
	}
	cut := maxErrorBody
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}
