// Package normalize maps raw source records into canonical RawItems.
// Normalization is pure: malformed entries become an explicit Skipped result
// with a reason, never an error. A bad feed entry must not abort a run.
package normalize

import (
	"time"

	"github.com/ParkerRex/zeke-sub005/internal/domain"
	"github.com/ParkerRex/zeke-sub005/internal/feed"
	"github.com/ParkerRex/zeke-sub005/internal/urlutil"
)

// Result is the outcome of normalizing one record: either an item or a skip
// with an inspectable reason.
type Result struct {
	Item       *domain.RawItem
	SkipReason string
}

func (r Result) Ok() bool {
	return r.Item != nil
}

func ok(item domain.RawItem) Result {
	return Result{Item: &item}
}

func skip(reason string) Result {
	return Result{SkipReason: reason}
}

// FeedEntry converts one feed entry for the given source. The external ID is
// the feed GUID, falling back to the canonicalized link; an entry with
// neither is unrepresentable and skipped. Entries published before a non-nil
// cutoff are skipped (feeds have no server-side date filter).
func FeedEntry(entry feed.Entry, source *domain.Source, cutoff *time.Time) Result {
	link := urlutil.Canonicalize(entry.Link)
	if entry.Link == "" {
		link = ""
	}

	externalID := entry.GUID
	if externalID == "" {
		externalID = link
	}
	if externalID == "" {
		return skip("no guid or link")
	}

	url := link
	if url == "" {
		url = externalID
	}

	publishedAt := entry.Published
	if publishedAt == nil {
		publishedAt = entry.Updated
	}

	if cutoff != nil && publishedAt != nil && publishedAt.Before(*cutoff) {
		return skip("published before cutoff")
	}

	item := domain.RawItem{
		SourceID:    source.ID,
		ExternalID:  externalID,
		URL:         url,
		PublishedAt: publishedAt,
		Kind:        domain.ItemKindArticle,
		Metadata: domain.ItemMetadata{
			Article: &domain.ArticleMetadata{
				FeedTitle: entry.FeedTitle,
				Author:    entry.Author,
			},
		},
	}
	if entry.Title != "" {
		title := entry.Title
		item.Title = &title
	}

	return ok(item)
}

// VideoRecord is the platform-agnostic shape of one video result, filled by
// the platform client before normalization.
type VideoRecord struct {
	VideoID      string
	Title        string
	ChannelID    string
	ChannelTitle string
	PublishedAt  time.Time
	Duration     string
	ViewCount    int64
	LikeCount    int64
	Thumbnail    string
}

// Video converts a platform video record. There is no drop case: a video
// record always carries an ID.
func Video(rec VideoRecord, source *domain.Source) domain.RawItem {
	item := domain.RawItem{
		SourceID:   source.ID,
		ExternalID: rec.VideoID,
		URL:        "https://www.youtube.com/watch?v=" + rec.VideoID,
		Kind:       domain.ItemKindYouTube,
		Metadata: domain.ItemMetadata{
			Video: &domain.VideoMetadata{
				ChannelID:    rec.ChannelID,
				ChannelTitle: rec.ChannelTitle,
				Duration:     rec.Duration,
				ViewCount:    rec.ViewCount,
				LikeCount:    rec.LikeCount,
				Thumbnail:    rec.Thumbnail,
			},
		},
	}

	if rec.Title != "" {
		title := rec.Title
		item.Title = &title
	}
	if !rec.PublishedAt.IsZero() {
		published := rec.PublishedAt
		item.PublishedAt = &published
	}

	return item
}
