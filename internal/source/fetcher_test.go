package source

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestGetJSON_RetriesUntilSuccess(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	f := NewFetcher(FetcherConfig{
		Timeout:        5 * time.Second,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}, testLogger())

	var out struct {
		OK bool `json:"ok"`
	}
	err := f.GetJSON(context.Background(), server.URL, &out)

	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, 3, attempts)
}

func TestGetJSON_ExhaustsAttempts(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f := NewFetcher(FetcherConfig{
		Timeout:        5 * time.Second,
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}, testLogger())

	var out map[string]any
	err := f.GetJSON(context.Background(), server.URL, &out)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Equal(t, 2, attempts)
}

func TestGetJSON_SetsUserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	f := NewFetcher(FetcherConfig{Timeout: 5 * time.Second, MaxAttempts: 1}, testLogger())

	var out map[string]any
	require.NoError(t, f.GetJSON(context.Background(), server.URL, &out))

	assert.Equal(t, "GrantSync/1.0", gotUA)
}

func TestPostJSON_SendsBody(t *testing.T) {
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		_, _ = w.Write([]byte(`{"echo":true}`))
	}))
	defer server.Close()

	f := NewFetcher(FetcherConfig{Timeout: 5 * time.Second, MaxAttempts: 1}, testLogger())

	var out map[string]any
	err := f.PostJSON(context.Background(), server.URL, map[string]int{"page": 1}, &out)

	require.NoError(t, err)
	assert.Equal(t, "application/json", gotContentType)
}

func TestGetHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer server.Close()

	f := NewFetcher(FetcherConfig{Timeout: 5 * time.Second, MaxAttempts: 1}, testLogger())

	body, err := f.GetHTML(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Contains(t, string(body), "hello")
}

func TestRetry_CancelledContextStops(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f := NewFetcher(FetcherConfig{
		Timeout:        5 * time.Second,
		MaxAttempts:    5,
		InitialBackoff: time.Minute,
		MaxBackoff:     time.Minute,
	}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out map[string]any
	err := f.GetJSON(ctx, server.URL, &out)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalculateBackoff(t *testing.T) {
	f := NewFetcher(FetcherConfig{
		InitialBackoff: time.Second,
		MaxBackoff:     5 * time.Second,
		MaxAttempts:    10,
	}, testLogger())

	assert.Equal(t, time.Second, f.calculateBackoff(1))
	assert.Equal(t, 2*time.Second, f.calculateBackoff(2))
	assert.Equal(t, 4*time.Second, f.calculateBackoff(3))
	assert.Equal(t, 5*time.Second, f.calculateBackoff(4), "backoff is capped")
}
