package youtube

import (
	"context"
	"log/slog"

	"github.com/ParkerRex/zeke-sub005/internal/domain"
	"github.com/ParkerRex/zeke-sub005/internal/normalize"
	"github.com/ParkerRex/zeke-sub005/internal/source"
)

// SearchFetcher ingests search-based sources: one search.list per run,
// followed by one videos.list for the result details.
type SearchFetcher struct {
	client *Client
	logger *slog.Logger
}

func NewSearchFetcher(client *Client, logger *slog.Logger) *SearchFetcher {
	return &SearchFetcher{
		client: client,
		logger: logger.With("fetcher", "youtube_search"),
	}
}

func (f *SearchFetcher) Kind() domain.SourceKind {
	return domain.SourceKindYouTubeSearch
}

func (f *SearchFetcher) Fetch(ctx context.Context, src *domain.Source) (*source.Result, error) {
	if src.Query == "" {
		return nil, domain.SourceFatalf("source %d has no search query", src.ID)
	}

	ids, err := f.client.SearchVideoIDs(ctx, src.Query, src.Metadata.PublishedAfter)
	if err != nil {
		return nil, err
	}

	records, err := f.client.VideoDetails(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]domain.RawItem, 0, len(records))
	for _, record := range records {
		items = append(items, normalize.Video(record, src))
	}

	f.logger.Debug("fetched search results",
		"source_id", src.ID,
		"query", src.Query,
		"items", len(items),
	)

	return &source.Result{Items: items}, nil
}
