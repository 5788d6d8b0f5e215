package youtube

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ParkerRex/zeke-sub005/internal/domain"
	"github.com/ParkerRex/zeke-sub005/internal/quota"
	"github.com/ParkerRex/zeke-sub005/internal/retry"
)

const searchResponse = `{
  "items": [
    {"id": {"videoId": "vid-1"}},
    {"id": {"videoId": "vid-2"}}
  ]
}`

const channelsResponse = `{
  "items": [
    {"id": "UC123", "contentDetails": {"relatedPlaylists": {"uploads": "UU123"}}}
  ]
}`

const playlistItemsResponse = `{
  "items": [
    {"contentDetails": {"videoId": "vid-1", "videoPublishedAt": "2026-03-01T10:00:00Z"}},
    {"contentDetails": {"videoId": "vid-2", "videoPublishedAt": "2026-01-01T10:00:00Z"}}
  ]
}`

const videosResponse = `{
  "items": [
    {
      "id": "vid-1",
      "snippet": {
        "publishedAt": "2026-03-01T10:00:00Z",
        "channelId": "UC123",
        "title": "Fresh Video",
        "channelTitle": "Example Channel",
        "thumbnails": {"high": {"url": "https://i.ytimg.com/vi/vid-1/hq.jpg"}}
      },
      "contentDetails": {"duration": "PT10M1S"},
      "statistics": {"viewCount": "5400", "likeCount": "210"}
    },
    {
      "id": "vid-2",
      "snippet": {
        "publishedAt": "2026-01-01T10:00:00Z",
        "channelId": "UC123",
        "title": "Old Video",
        "channelTitle": "Example Channel",
        "thumbnails": {"default": {"url": "https://i.ytimg.com/vi/vid-2/default.jpg"}}
      },
      "contentDetails": {"duration": "PT2M"},
      "statistics": {"viewCount": "90", "likeCount": "3"}
    }
  ]
}`

const quotaErrorResponse = `{
  "error": {
    "code": 403,
    "message": "The request cannot be completed because you have exceeded your quota.",
    "errors": [{"reason": "quotaExceeded"}]
  }
}`

type apiServer struct {
	*httptest.Server
	mu    sync.Mutex
	calls map[string]int
}

func newAPIServer(t *testing.T) *apiServer {
	t.Helper()
	s := &apiServer{calls: make(map[string]int)}

	mux := http.NewServeMux()
	mux.HandleFunc("/search", s.respond(searchResponse))
	mux.HandleFunc("/channels", s.respond(channelsResponse))
	mux.HandleFunc("/playlistItems", s.respond(playlistItemsResponse))
	mux.HandleFunc("/videos", s.respond(videosResponse))

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *apiServer) respond(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}
}

func (s *apiServer) callCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

type fakeMetadataStore struct {
	mu      sync.Mutex
	patches map[int64]domain.SourceMetadataPatch
}

func newFakeMetadataStore() *fakeMetadataStore {
	return &fakeMetadataStore{patches: make(map[int64]domain.SourceMetadataPatch)}
}

func (f *fakeMetadataStore) UpdateMetadata(_ context.Context, sourceID int64, patch domain.SourceMetadataPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches[sourceID] = patch
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestClient(baseURL string, tracker *quota.Tracker) *Client {
	return NewClient(Config{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Retry:   retry.Config{MaxAttempts: 2, InitialBackoff: time.Millisecond},
	}, tracker, testLogger())
}

func TestSearchFetcher_Fetch(t *testing.T) {
	server := newAPIServer(t)
	tracker := quota.NewTracker(10000, 0, 0)
	client := newTestClient(server.URL, tracker)
	fetcher := NewSearchFetcher(client, testLogger())

	src := &domain.Source{ID: 5, Kind: domain.SourceKindYouTubeSearch, Query: "content marketing"}

	result, err := fetcher.Fetch(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, result.Items, 2)

	first := result.Items[0]
	assert.Equal(t, "vid-1", first.ExternalID)
	assert.Equal(t, "https://www.youtube.com/watch?v=vid-1", first.URL)
	assert.Equal(t, domain.ItemKindYouTube, first.Kind)
	require.NotNil(t, first.Metadata.Video)
	assert.Equal(t, int64(5400), first.Metadata.Video.ViewCount)
	assert.Equal(t, "PT10M1S", first.Metadata.Video.Duration)
	assert.Equal(t, "https://i.ytimg.com/vi/vid-1/hq.jpg", first.Metadata.Video.Thumbnail)

	// One search (100) plus one videos.list (1).
	assert.Equal(t, CostSearch+CostVideosList, tracker.Status().Used)
}

func TestSearchFetcher_QuotaBlocksBeforeCall(t *testing.T) {
	server := newAPIServer(t)
	tracker := quota.NewTracker(100, 50, 0)
	client := newTestClient(server.URL, tracker)
	fetcher := NewSearchFetcher(client, testLogger())

	src := &domain.Source{ID: 5, Kind: domain.SourceKindYouTubeSearch, Query: "anything"}

	_, err := fetcher.Fetch(context.Background(), src)
	require.Error(t, err)

	kind, ok := domain.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.ErrKindQuotaExceeded, kind)
	assert.Equal(t, 0, server.callCount("/search"), "reserve failure must prevent the call entirely")
	assert.Equal(t, 0, tracker.Status().Used)
}

func TestSearchFetcher_MissingQueryFatal(t *testing.T) {
	server := newAPIServer(t)
	fetcher := NewSearchFetcher(newTestClient(server.URL, quota.NewTracker(1000, 0, 0)), testLogger())

	_, err := fetcher.Fetch(context.Background(), &domain.Source{ID: 5, Kind: domain.SourceKindYouTubeSearch})
	require.Error(t, err)

	kind, ok := domain.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.ErrKindSourceFatal, kind)
}

func TestChannelFetcher_ResolvesAndCachesPlaylist(t *testing.T) {
	server := newAPIServer(t)
	tracker := quota.NewTracker(10000, 0, 0)
	client := newTestClient(server.URL, tracker)
	store := newFakeMetadataStore()
	fetcher := NewChannelFetcher(client, store, testLogger())

	src := &domain.Source{
		ID:       8,
		Kind:     domain.SourceKindYouTubeChannel,
		Metadata: domain.SourceMetadata{ChannelHandle: "@examplechannel"},
	}

	result, err := fetcher.Fetch(context.Background(), src)
	require.NoError(t, err)
	assert.Len(t, result.Items, 2)

	patch, ok := store.patches[8]
	require.True(t, ok, "resolved playlist id is persisted back to the source")
	require.NotNil(t, patch.UploadsPlaylistID)
	assert.Equal(t, "UU123", *patch.UploadsPlaylistID)
	assert.Equal(t, "UU123", src.Metadata.UploadsPlaylistID)

	// Second run reuses the cached playlist, no channels.list.
	_, err = fetcher.Fetch(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 1, server.callCount("/channels"))
	assert.Equal(t, 2, server.callCount("/playlistItems"))
}

func TestChannelFetcher_NoIdentifierFatal(t *testing.T) {
	server := newAPIServer(t)
	fetcher := NewChannelFetcher(newTestClient(server.URL, quota.NewTracker(1000, 0, 0)), newFakeMetadataStore(), testLogger())

	_, err := fetcher.Fetch(context.Background(), &domain.Source{ID: 8, Kind: domain.SourceKindYouTubeChannel})
	require.Error(t, err)

	kind, ok := domain.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.ErrKindSourceFatal, kind)
	assert.Equal(t, 0, server.callCount("/channels"))
}

func TestChannelFetcher_CutoffFiltersOldVideos(t *testing.T) {
	server := newAPIServer(t)
	client := newTestClient(server.URL, quota.NewTracker(10000, 0, 0))
	fetcher := NewChannelFetcher(client, newFakeMetadataStore(), testLogger())

	cutoff := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	src := &domain.Source{
		ID:   8,
		Kind: domain.SourceKindYouTubeChannel,
		Metadata: domain.SourceMetadata{
			UploadsPlaylistID: "UU123",
			PublishedAfter:    &cutoff,
		},
	}

	result, err := fetcher.Fetch(context.Background(), src)
	require.NoError(t, err)

	require.Len(t, result.Items, 1)
	assert.Equal(t, "vid-1", result.Items[0].ExternalID)
	assert.Equal(t, 1, result.Skipped)
}

func TestClient_QuotaExceededFromAPI(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, quotaErrorResponse)
	}))
	defer server.Close()

	tracker := quota.NewTracker(10000, 0, 0)
	client := newTestClient(server.URL, tracker)

	_, err := client.SearchVideoIDs(context.Background(), "anything", nil)
	require.Error(t, err)

	kind, ok := domain.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.ErrKindQuotaExceeded, kind)
	assert.Equal(t, 1, calls, "quota errors are not retried")
	assert.Equal(t, 0, tracker.Status().Used, "failed calls do not consume tracked budget")
}

func TestClient_ServerErrorRetriedThenConsumed(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, searchResponse)
	}))
	defer server.Close()

	tracker := quota.NewTracker(10000, 0, 0)
	client := newTestClient(server.URL, tracker)

	ids, err := client.SearchVideoIDs(context.Background(), "anything", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"vid-1", "vid-2"}, ids)
	assert.Equal(t, 2, calls)
	assert.Equal(t, CostSearch, tracker.Status().Used, "cost is consumed once per successful call, not per attempt")
}

func TestClient_PassesPublishedAfterServerSide(t *testing.T) {
	var gotPublishedAfter string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPublishedAfter = r.URL.Query().Get("publishedAfter")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, searchResponse)
	}))
	defer server.Close()

	client := newTestClient(server.URL, quota.NewTracker(10000, 0, 0))
	after := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)

	_, err := client.SearchVideoIDs(context.Background(), "anything", &after)
	require.NoError(t, err)
	assert.Equal(t, "2026-02-15T00:00:00Z", gotPublishedAfter)
}
