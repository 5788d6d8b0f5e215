package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type SourceKind string

const (
	SourceKindFeed           SourceKind = "feed"
	SourceKindYouTubeSearch  SourceKind = "youtube_search"
	SourceKindYouTubeChannel SourceKind = "youtube_channel"
)

// Source is a configured external feed or API query the pipeline ingests.
// Sources are created by admin tooling; the pipeline only writes back the
// metadata fields it resolves itself (e.g. the uploads playlist ID).
type Source struct {
	ID       int64          `db:"id"`
	Kind     SourceKind     `db:"kind"`
	Name     string         `db:"name"`
	URL      string         `db:"url"`
	Query    string         `db:"query"`
	Metadata SourceMetadata `db:"metadata"`
}

// SourceMetadata carries kind-specific fetch parameters and ingestion hints.
type SourceMetadata struct {
	ChannelID         string     `json:"channel_id,omitempty"`
	ChannelHandle     string     `json:"channel_handle,omitempty"`
	UploadsPlaylistID string     `json:"uploads_playlist_id,omitempty"`
	PublishedAfter    *time.Time `json:"published_after,omitempty"`
}

// SourceMetadataPatch updates only the fields the pipeline resolves; nil
// fields are left untouched.
type SourceMetadataPatch struct {
	UploadsPlaylistID *string
	PublishedAfter    *time.Time
}

func (m SourceMetadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *SourceMetadata) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	case nil:
		*m = SourceMetadata{}
		return nil
	default:
		return fmt.Errorf("scan source metadata: unsupported type %T", src)
	}
}

type HealthStatus string

const (
	HealthOK    HealthStatus = "ok"
	HealthWarn  HealthStatus = "warn"
	HealthError HealthStatus = "error"
)

// SourceHealth records the outcome of the most recent run for a source.
// Written exactly once per run, by the orchestrator, on every path.
type SourceHealth struct {
	SourceID  int64        `db:"source_id"`
	Status    HealthStatus `db:"status"`
	LastError *string      `db:"last_error"`
	LastRunAt time.Time    `db:"last_run_at"`
}
