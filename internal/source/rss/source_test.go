package rss

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ParkerRex/zeke-sub005/internal/domain"
	"github.com/ParkerRex/zeke-sub005/internal/retry"
)

const feedBody = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Blog</title>
    <item>
      <title>First</title>
      <link>https://example.com/first?utm_source=rss</link>
      <guid>guid-1</guid>
      <pubDate>Mon, 02 Mar 2026 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Second</title>
      <link>https://example.com/second</link>
    </item>
    <item>
      <title>No GUID No Link</title>
    </item>
  </channel>
</rss>`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func TestFetch_NormalizesInDocumentOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedBody)
	}))
	defer server.Close()

	fetcher := New(Config{Retry: fastRetry()}, testLogger())
	src := &domain.Source{ID: 1, Kind: domain.SourceKindFeed, URL: server.URL}

	result, err := fetcher.Fetch(context.Background(), src)
	require.NoError(t, err)

	require.Len(t, result.Items, 2)
	assert.Equal(t, 1, result.Skipped, "entry without guid or link is skipped, not fatal")
	assert.Equal(t, "guid-1", result.Items[0].ExternalID)
	assert.Equal(t, "https://example.com/first", result.Items[0].URL)
	assert.Equal(t, "https://example.com/second", result.Items[1].ExternalID)
}

func TestFetch_Non200FailsSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	fetcher := New(Config{Retry: fastRetry()}, testLogger())
	src := &domain.Source{ID: 1, Kind: domain.SourceKindFeed, URL: server.URL}

	_, err := fetcher.Fetch(context.Background(), src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestFetch_404NotRetried(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := New(Config{Retry: fastRetry()}, testLogger())
	src := &domain.Source{ID: 1, Kind: domain.SourceKindFeed, URL: server.URL}

	_, err := fetcher.Fetch(context.Background(), src)
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	kind, ok := domain.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.ErrKindSourceFatal, kind)
}

func TestFetch_TransientThenSuccess(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, feedBody)
	}))
	defer server.Close()

	fetcher := New(Config{Retry: fastRetry()}, testLogger())
	src := &domain.Source{ID: 1, Kind: domain.SourceKindFeed, URL: server.URL}

	result, err := fetcher.Fetch(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Len(t, result.Items, 2)
}

func TestFetch_UnparseableBodyFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>maintenance page</body></html>")
	}))
	defer server.Close()

	fetcher := New(Config{Retry: fastRetry()}, testLogger())
	src := &domain.Source{ID: 1, Kind: domain.SourceKindFeed, URL: server.URL}

	_, err := fetcher.Fetch(context.Background(), src)
	require.Error(t, err)

	kind, ok := domain.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.ErrKindSourceFatal, kind)
}

func TestFetch_HonorsPublishedAfterCutoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedBody)
	}))
	defer server.Close()

	cutoff := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	fetcher := New(Config{Retry: fastRetry()}, testLogger())
	src := &domain.Source{
		ID:       1,
		Kind:     domain.SourceKindFeed,
		URL:      server.URL,
		Metadata: domain.SourceMetadata{PublishedAfter: &cutoff},
	}

	result, err := fetcher.Fetch(context.Background(), src)
	require.NoError(t, err)

	// "First" (2026-03-02) is before the cutoff; "Second" is undated and kept.
	require.Len(t, result.Items, 1)
	assert.Equal(t, "https://example.com/second", result.Items[0].ExternalID)
	assert.Equal(t, 2, result.Skipped)
}

func TestFetch_NoURLFatal(t *testing.T) {
	fetcher := New(Config{Retry: fastRetry()}, testLogger())

	_, err := fetcher.Fetch(context.Background(), &domain.Source{ID: 9, Kind: domain.SourceKindFeed})
	require.Error(t, err)

	kind, ok := domain.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.ErrKindSourceFatal, kind)
}
