package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ParkerRex/zeke-sub005/internal/domain"
)

// HealthStore records the last-run outcome per source. One row per source,
// overwritten on every run.
type HealthStore struct {
	db *sqlx.DB
}

func NewHealthStore(db *sqlx.DB) *HealthStore {
	return &HealthStore{db: db}
}

func (s *HealthStore) Record(ctx context.Context, sourceID int64, status domain.HealthStatus, lastError *string) error {
	query := `
		INSERT INTO source_health (source_id, status, last_error, last_run_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source_id) DO UPDATE SET
			status = EXCLUDED.status,
			last_error = EXCLUDED.last_error,
			last_run_at = EXCLUDED.last_run_at`

	_, err := s.db.ExecContext(ctx, query, sourceID, status, lastError, time.Now().UTC())
	return err
}

func (s *HealthStore) Get(ctx context.Context, sourceID int64) (*domain.SourceHealth, error) {
	var health domain.SourceHealth
	query := `
		SELECT source_id, status, last_error, last_run_at
		FROM source_health
		WHERE source_id = $1`

	err := s.db.GetContext(ctx, &health, query, sourceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &health, nil
}
