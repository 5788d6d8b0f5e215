package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ParkerRex/zeke-sub005/internal/domain"
)

// SourceStore reads configured sources. The pipeline treats sources as
// read-only except for the metadata fields it resolves itself.
type SourceStore struct {
	db *sqlx.DB
}

func NewSourceStore(db *sqlx.DB) *SourceStore {
	return &SourceStore{db: db}
}

func (s *SourceStore) ListByKind(ctx context.Context, kind domain.SourceKind) ([]domain.Source, error) {
	query := `
		SELECT id, kind, name, url, query, metadata
		FROM sources
		WHERE kind = $1
		ORDER BY id`

	var sources []domain.Source
	err := s.db.SelectContext(ctx, &sources, query, kind)
	return sources, err
}

func (s *SourceStore) GetByID(ctx context.Context, id int64) (*domain.Source, error) {
	var source domain.Source
	query := `
		SELECT id, kind, name, url, query, metadata
		FROM sources
		WHERE id = $1`

	if err := s.db.GetContext(ctx, &source, query, id); err != nil {
		return nil, err
	}
	return &source, nil
}

// UpdateMetadata merges the non-nil patch fields into the source's metadata.
// Used to persist resolved platform identifiers and backfill hints so
// resolution is not repeated every run.
func (s *SourceStore) UpdateMetadata(ctx context.Context, sourceID int64, patch domain.SourceMetadataPatch) error {
	fields := make(map[string]any)
	if patch.UploadsPlaylistID != nil {
		fields["uploads_playlist_id"] = *patch.UploadsPlaylistID
	}
	if patch.PublishedAfter != nil {
		fields["published_after"] = patch.PublishedAfter
	}
	if len(fields) == 0 {
		return nil
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal metadata patch: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"UPDATE sources SET metadata = metadata || $2::jsonb WHERE id = $1",
		sourceID, data,
	)
	return err
}
