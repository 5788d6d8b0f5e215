package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/ParkerRex/zeke-sub005/internal/domain"
	"github.com/ParkerRex/zeke-sub005/internal/source"
)

// ItemStore is the dedup gateway. Insert returns a non-zero id only when the
// item was not previously known; callers must treat that return value, not
// their own bookkeeping, as the answer to "is this item new".
type ItemStore interface {
	Insert(ctx context.Context, item *domain.RawItem) (int64, error)
}

type SourceStore interface {
	ListByKind(ctx context.Context, kind domain.SourceKind) ([]domain.Source, error)
	GetByID(ctx context.Context, id int64) (*domain.Source, error)
	UpdateMetadata(ctx context.Context, sourceID int64, patch domain.SourceMetadataPatch) error
}

type HealthStore interface {
	Record(ctx context.Context, sourceID int64, status domain.HealthStatus, lastError *string) error
}

type Enqueuer interface {
	Enqueue(ctx context.Context, task string, itemID, sourceID int64) error
	Close() error
}

type Fetcher interface {
	Kind() domain.SourceKind
	Fetch(ctx context.Context, src *domain.Source) (*source.Result, error)
}
