package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type ItemKind string

const (
	ItemKindArticle ItemKind = "article"
	ItemKindYouTube ItemKind = "youtube"
	ItemKindPodcast ItemKind = "podcast"
)

// RawItem is the canonical ingestion unit handed downstream.
// (SourceID, ExternalID) is the dedup key; ExternalID is never empty.
type RawItem struct {
	ID          int64
	SourceID    int64
	ExternalID  string
	URL         string
	Title       *string
	PublishedAt *time.Time
	Kind        ItemKind
	Metadata    ItemMetadata
}

// ItemMetadata is a tagged union keyed by the item kind. Exactly one branch
// is set for a given item; unset branches are omitted from storage.
type ItemMetadata struct {
	Article *ArticleMetadata `json:"article,omitempty"`
	Video   *VideoMetadata   `json:"video,omitempty"`
}

type ArticleMetadata struct {
	FeedTitle string `json:"feed_title,omitempty"`
	Author    string `json:"author,omitempty"`
}

type VideoMetadata struct {
	ChannelID    string `json:"channel_id,omitempty"`
	ChannelTitle string `json:"channel_title,omitempty"`
	Duration     string `json:"duration,omitempty"`
	ViewCount    int64  `json:"view_count,omitempty"`
	LikeCount    int64  `json:"like_count,omitempty"`
	Thumbnail    string `json:"thumbnail,omitempty"`
}

func (m ItemMetadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *ItemMetadata) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	case nil:
		*m = ItemMetadata{}
		return nil
	default:
		return fmt.Errorf("scan item metadata: unsupported type %T", src)
	}
}
