package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/ParkerRex/zeke-sub005/internal/domain"
)

// ItemStore is the dedup authority: insert-if-absent keyed by
// (source_id, external_id). The unique constraint, not in-process state,
// decides which of two racing inserters observes "new".
type ItemStore struct {
	db *sqlx.DB
}

func NewItemStore(db *sqlx.DB) *ItemStore {
	return &ItemStore{db: db}
}

// Insert stores the item if its dedup key is unseen and returns the new row
// id. A zero id with nil error means the item was already known.
func (s *ItemStore) Insert(ctx context.Context, item *domain.RawItem) (int64, error) {
	query := `
		INSERT INTO raw_items (
			source_id, external_id, url, title, published_at, kind, metadata
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
		ON CONFLICT (source_id, external_id) DO NOTHING
		RETURNING id`

	var id int64
	err := s.db.QueryRowContext(ctx, query,
		item.SourceID,
		item.ExternalID,
		item.URL,
		item.Title,
		item.PublishedAt,
		item.Kind,
		item.Metadata,
	).Scan(&id)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return id, nil
}

// CountBySource reports how many items are stored for a source.
func (s *ItemStore) CountBySource(ctx context.Context, sourceID int64) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM raw_items WHERE source_id = $1", sourceID)
	return count, err
}
