package mastodon_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/DeafMist/oeis-bot/internal/mastodon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, handler http.HandlerFunc) *mastodon.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return mastodon.NewClient(server.Client(), mastodon.Config{
		InstanceURL: server.URL + "/",
		AccessToken: "token-123",
		Visibility:  "unlisted",
	})
}

func TestPostStatusSuccess(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/statuses", r.URL.Path)
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))
		assert.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "OEIS sequence A000045\nFibonacci numbers", r.PostForm.Get("status"))
		assert.Equal(t, "unlisted", r.PostForm.Get("visibility"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1101","url":"https://mastodon.example/@oeis/1101","uri":"x","created_at":"2026-10-19T10:00:00.000Z"}`))
	})

	status, err := client.PostStatus(context.Background(), "OEIS sequence A000045\nFibonacci numbers", "key-1")
	require.NoError(t, err)
	require.Equal(t, "1101", status.ID)
	require.Equal(t, "https://mastodon.example/@oeis/1101", status.URL)
	require.Equal(t, 2026, status.CreatedAt.Year())
}

func TestPostStatusErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"Validation failed: Text character limit of 500 exceeded"}`))
	})

	_, err := client.PostStatus(context.Background(), "text", "")
	require.Error(t, err)

	var apiErr *mastodon.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	require.Contains(t, apiErr.Error(), "character limit")
	require.EqualValues(t, 1, calls.Load())
}

func TestPostStatusServerError(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.PostStatus(context.Background(), "text", "")
	var apiErr *mastodon.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "mastodon returned status 502", apiErr.Error())
}

func TestPostStatusErrorBodyKeepsRunes(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("x" + strings.Repeat("é", 400)))
	})

	_, err := client.PostStatus(context.Background(), "text", "")
	var apiErr *mastodon.APIError
	require.ErrorAs(t, err, &apiErr)
	require.LessOrEqual(t, len(apiErr.Body), 512)
	require.True(t, utf8.ValidString(apiErr.Body))
	require.True(t, strings.HasPrefix(apiErr.Body, "xé"))
}

func TestPostStatusInvalidJSON(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	})

	_, err := client.PostStatus(context.Background(), "text", "")
	require.Error(t, err)
}

func TestPostStatusUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	client := mastodon.NewClient(nil, mastodon.Config{InstanceURL: server.URL, AccessToken: "t"})
	_, err := client.PostStatus(context.Background(), "text", "")
	require.Error(t, err)
}
