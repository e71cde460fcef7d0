// Package oeis fetches sequence records from the OEIS JSON search endpoint.
package oeis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/DeafMist/oeis-bot/internal/models"
)

const (
	BaseURL        = "https://oeis.org"
	DefaultTimeout = 10 * time.Second

	maxBodyBytes = 4 << 20
)

// ErrNotFound reports that no sequence is assigned to the requested number.
// Every other error returned by Fetch is transient.
var ErrNotFound = errors.New("sequence not found")

// Fetcher retrieves a single sequence by its A-number.
type Fetcher interface {
	Fetch(ctx context.Context, id int) (*models.Sequence, error)
}

// Client talks to the OEIS over HTTP.
type Client struct {
	http    *http.Client
	baseURL string
	timeout time.Duration
}

// NewClient creates a Client against baseURL. A zero timeout selects DefaultTimeout;
// it bounds every Fetch call regardless of the caller's context.
func NewClient(httpClient *http.Client, baseURL string, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = BaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
	}
}

type entry struct {
	Number  int    `json:"number"`
	Data    string `json:"data"`
	Name    string `json:"name"`
	Keyword string `json:"keyword"`
	Offset  string `json:"offset"`
	Author  string `json:"author"`
	Time    string `json:"time"`
	Created string `json:"created"`
}

// Fetch returns the sequence numbered id, ErrNotFound when the number is unassigned,
// or a wrapped transport, status or decoding error.
func (c *Client) Fetch(ctx context.Context, id int) (*models.Sequence, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("q", "id:"+models.ANumber(id))
	q.Set("fmt", "json")
	endpoint := c.baseURL + "/search?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", models.ANumber(id), err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", models.ANumber(id), err)
	}
	defer resp.Body.Close()

	// Unassigned numbers come back as 200 with an empty result; any other status,
	// 404 included, points at the endpoint rather than the number.
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", models.ANumber(id), resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", models.ANumber(id), err)
	}

	entries, err := decodeEntries(body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", models.ANumber(id), err)
	}

	for _, e := range entries {
		if e.Number != id {
			continue
		}
		seq, err := e.toSequence()
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", models.ANumber(id), err)
		}
		return seq, nil
	}

	return nil, fmt.Errorf("%s: %w", models.ANumber(id), ErrNotFound)
}

// decodeEntries accepts the bare array the endpoint serves, a null body for an
// empty search, and the older {"results": [...]} envelope.
func decodeEntries(body []byte) ([]entry, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] == '{' {
		var envelope struct {
			Results []entry `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, err
		}
		return envelope.Results, nil
	}

	var entries []entry
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (e entry) toSequence() (*models.Sequence, error) {
	terms, err := ParseTerms(e.Data)
	if err != nil {
		return nil, err
	}

	return &models.Sequence{
		Number:   e.Number,
		Name:     strings.TrimSpace(e.Name),
		Terms:    terms,
		Keywords: ParseKeywords(e.Keyword),
		Offset:   e.Offset,
		Author:   strings.TrimSpace(e.Author),
		Created:  parseTimestamp(e.Created),
		Modified: parseTimestamp(e.Time),
		URL:      models.SequenceURL(e.Number),
	}, nil
}

// ParseTerms parses the comma separated data field. An empty field yields no terms.
func ParseTerms(raw string) ([]*big.Int, error) {
	fields := strings.Split(raw, ",")
	terms := make([]*big.Int, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, ok := new(big.Int).SetString(f, 10)
		if !ok {
			return nil, fmt.Errorf("invalid term %q", f)
		}
		terms = append(terms, n)
	}
	return terms, nil
}

// ParseKeywords splits the comma separated keyword field. A missing field is an empty set.
func ParseKeywords(raw string) []string {
	fields := strings.Split(raw, ",")
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func parseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts
	}
	return time.Time{}
}
