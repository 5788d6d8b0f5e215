// Package rss fetches feed-based sources: one bounded-timeout GET against
// the source URL, parsed as RSS or Atom, normalized in document order.
package rss

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ParkerRex/zeke-sub005/internal/domain"
	"github.com/ParkerRex/zeke-sub005/internal/feed"
	"github.com/ParkerRex/zeke-sub005/internal/normalize"
	"github.com/ParkerRex/zeke-sub005/internal/retry"
	"github.com/ParkerRex/zeke-sub005/internal/source"
)

const userAgent = "zeke-ingest/1.0"

// maxBodySize bounds how much of a feed body is read. Feeds larger than
// this are misconfigured sources, not feeds.
const maxBodySize = 10 << 20

type Config struct {
	Timeout time.Duration
	Retry   retry.Config
}

type Fetcher struct {
	httpClient *http.Client
	parser     *feed.Parser
	retryCfg   retry.Config
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Fetcher {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		parser:     feed.NewParser(),
		retryCfg:   cfg.Retry,
		logger:     logger.With("fetcher", "rss"),
	}
}

func (f *Fetcher) Kind() domain.SourceKind {
	return domain.SourceKindFeed
}

func (f *Fetcher) Fetch(ctx context.Context, src *domain.Source) (*source.Result, error) {
	if src.URL == "" {
		return nil, domain.SourceFatalf("source %d has no feed url", src.ID)
	}

	var body []byte
	err := retry.Do(ctx, f.retryCfg, func() error {
		var downloadErr error
		body, downloadErr = f.download(ctx, src.URL)
		return downloadErr
	})
	if err != nil {
		return nil, err
	}

	entries, err := f.parser.Parse(body)
	if err != nil {
		return nil, domain.SourceFatal(err)
	}

	result := &source.Result{Items: make([]domain.RawItem, 0, len(entries))}
	for _, entry := range entries {
		res := normalize.FeedEntry(entry, src, src.Metadata.PublishedAfter)
		if !res.Ok() {
			result.Skipped++
			f.logger.Debug("skipped feed entry",
				"source_id", src.ID,
				"reason", res.SkipReason,
			)
			continue
		}
		result.Items = append(result.Items, *res.Item)
	}

	f.logger.Debug("fetched feed",
		"source_id", src.ID,
		"entries", len(entries),
		"items", len(result.Items),
		"skipped", result.Skipped,
	)

	return result, nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, domain.SourceFatal(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("fetch feed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.ErrorFromStatus(resp.StatusCode, "fetch feed")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("read feed body: %w", err))
	}

	return body, nil
}
