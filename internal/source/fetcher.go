// Package source defines the capability shared by all source fetchers:
// produce normalized candidate items for one source, within timeout and
// quota.
package source

import (
	"context"

	"github.com/ParkerRex/zeke-sub005/internal/domain"
)

// Result carries the surviving normalized items in the fetcher's freshness
// order, plus the count of entries skipped during normalization.
type Result struct {
	Items   []domain.RawItem
	Skipped int
}

type Fetcher interface {
	Kind() domain.SourceKind
	Fetch(ctx context.Context, src *domain.Source) (*Result, error)
}
