// Package youtube fetches video-platform sources through the quota-limited
// YouTube Data API v3. Every costed call is reserved against the quota
// tracker before it is issued and consumed only after it succeeds.
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ParkerRex/zeke-sub005/internal/domain"
	"github.com/ParkerRex/zeke-sub005/internal/normalize"
	"github.com/ParkerRex/zeke-sub005/internal/quota"
	"github.com/ParkerRex/zeke-sub005/internal/retry"
)

const defaultBaseURL = "https://www.googleapis.com/youtube/v3"

// Unit costs per operation, from the YouTube Data API quota table.
const (
	CostSearch        = 100
	CostChannelsList  = 1
	CostPlaylistItems = 1
	CostVideosList    = 1
)

type Config struct {
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	PageSize int
	Retry    retry.Config
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	pageSize   int
	quota      *quota.Tracker
	retryCfg   retry.Config
	logger     *slog.Logger
}

func NewClient(cfg Config, tracker *quota.Tracker, logger *slog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	pageSize := cfg.PageSize
	if pageSize == 0 {
		pageSize = 25
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
		pageSize:   pageSize,
		quota:      tracker,
		retryCfg:   cfg.Retry,
		logger:     logger.With("client", "youtube"),
	}
}

// SearchVideoIDs runs search.list ordered by date. publishedAfter is passed
// server-side when set.
func (c *Client) SearchVideoIDs(ctx context.Context, query string, publishedAfter *time.Time) ([]string, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("order", "date")
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(c.pageSize))
	if publishedAfter != nil {
		params.Set("publishedAfter", publishedAfter.UTC().Format(time.RFC3339))
	}

	var resp searchListResponse
	if err := c.call(ctx, "youtube search", CostSearch, "/search", params, &resp); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.ID.VideoID != "" {
			ids = append(ids, item.ID.VideoID)
		}
	}

	return ids, nil
}

// ResolveUploadsPlaylist looks up a channel's uploads playlist by channel ID
// or handle. An unknown channel is fatal for the source.
func (c *Client) ResolveUploadsPlaylist(ctx context.Context, channelID, handle string) (string, error) {
	params := url.Values{}
	params.Set("part", "contentDetails")
	switch {
	case channelID != "":
		params.Set("id", channelID)
	case handle != "":
		params.Set("forHandle", handle)
	default:
		return "", domain.SourceFatalf("resolve uploads playlist: no channel id or handle")
	}

	var resp channelListResponse
	if err := c.call(ctx, "youtube channels", CostChannelsList, "/channels", params, &resp); err != nil {
		return "", err
	}

	if len(resp.Items) == 0 {
		return "", domain.SourceFatalf("resolve uploads playlist: channel not found")
	}

	uploads := resp.Items[0].ContentDetails.RelatedPlaylists.Uploads
	if uploads == "" {
		return "", domain.SourceFatalf("resolve uploads playlist: channel has no uploads playlist")
	}

	return uploads, nil
}

// PlaylistVideoIDs lists the most recent entries of a playlist in playlist
// order (newest first for uploads playlists).
func (c *Client) PlaylistVideoIDs(ctx context.Context, playlistID string) ([]string, error) {
	params := url.Values{}
	params.Set("part", "contentDetails")
	params.Set("playlistId", playlistID)
	params.Set("maxResults", strconv.Itoa(c.pageSize))

	var resp playlistItemListResponse
	if err := c.call(ctx, "youtube playlist items", CostPlaylistItems, "/playlistItems", params, &resp); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.ContentDetails.VideoID != "" {
			ids = append(ids, item.ContentDetails.VideoID)
		}
	}

	return ids, nil
}

// VideoDetails fetches snippet, statistics and duration for up to one page
// of video IDs and maps them to normalization records, preserving input
// order where the API echoes it.
func (c *Client) VideoDetails(ctx context.Context, ids []string) ([]normalize.VideoRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	params := url.Values{}
	params.Set("part", "snippet,statistics,contentDetails")
	params.Set("id", strings.Join(ids, ","))

	var resp videoListResponse
	if err := c.call(ctx, "youtube videos", CostVideosList, "/videos", params, &resp); err != nil {
		return nil, err
	}

	records := make([]normalize.VideoRecord, 0, len(resp.Items))
	for _, video := range resp.Items {
		record := normalize.VideoRecord{
			VideoID:      video.ID,
			Title:        video.Snippet.Title,
			ChannelID:    video.Snippet.ChannelID,
			ChannelTitle: video.Snippet.ChannelTitle,
			Duration:     video.ContentDetails.Duration,
			Thumbnail:    video.Snippet.Thumbnails.bestThumbnail(),
		}
		record.ViewCount, _ = strconv.ParseInt(video.Statistics.ViewCount, 10, 64)
		record.LikeCount, _ = strconv.ParseInt(video.Statistics.LikeCount, 10, 64)
		if published, err := time.Parse(time.RFC3339, video.Snippet.PublishedAt); err == nil {
			record.PublishedAt = published
		}
		records = append(records, record)
	}

	return records, nil
}

// call reserves quota, issues the request under the retry policy, and
// consumes the cost only when the call succeeded. A failed call does not
// consume budget it did not use.
func (c *Client) call(ctx context.Context, op string, cost int, path string, params url.Values, out any) error {
	if !c.quota.Reserve(cost) {
		return domain.QuotaExceededf("%s: daily quota budget exhausted", op)
	}

	err := retry.Do(ctx, c.retryCfg, func() error {
		return c.get(ctx, op, path, params, out)
	})
	if err != nil {
		return err
	}

	c.quota.Consume(cost)
	return nil
}

func (c *Client) get(ctx context.Context, op, path string, params url.Values, out any) error {
	query := url.Values{}
	for key, vals := range params {
		query[key] = vals
	}
	query.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return domain.SourceFatal(fmt.Errorf("%s: create request: %w", op, err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Transient(fmt.Errorf("%s: %w", op, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.classifyError(op, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.SourceFatal(fmt.Errorf("%s: decode response: %w", op, err))
	}

	return nil
}

// classifyError maps an API error response to an error kind. Quota
// exhaustion is surfaced distinctly: retrying it within the same window
// cannot help.
func (c *Client) classifyError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var apiErr errorResponse
	if json.Unmarshal(body, &apiErr) == nil {
		for _, e := range apiErr.Error.Errors {
			switch e.Reason {
			case "quotaExceeded", "dailyLimitExceeded":
				return domain.QuotaExceededf("%s: %s", op, apiErr.Error.Message)
			case "rateLimitExceeded", "userRateLimitExceeded":
				return domain.Transientf("%s: %s", op, apiErr.Error.Message)
			}
		}
	}

	return domain.ErrorFromStatus(resp.StatusCode, op)
}
