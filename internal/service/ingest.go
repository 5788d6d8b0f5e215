package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ParkerRex/zeke-sub005/internal/domain"
)

// TaskProcessItem is the downstream task enqueued for every new item.
const TaskProcessItem = "process_item"

const healthRecordTimeout = 5 * time.Second

// IngestService drives ingestion runs: fetch, dedup, enqueue, record
// health. One run covers one source; a sweep covers every source of a kind.
type IngestService struct {
	fetchers    map[domain.SourceKind]Fetcher
	items       ItemStore
	sources     SourceStore
	health      HealthStore
	queue       Enqueuer
	logger      *slog.Logger
	concurrency int
}

func NewIngestService(
	fetchers []Fetcher,
	items ItemStore,
	sources SourceStore,
	health HealthStore,
	queue Enqueuer,
	logger *slog.Logger,
	concurrency int,
) *IngestService {
	byKind := make(map[domain.SourceKind]Fetcher, len(fetchers))
	for _, f := range fetchers {
		byKind[f.Kind()] = f
	}

	if concurrency <= 0 {
		concurrency = 4
	}

	return &IngestService{
		fetchers:    byKind,
		items:       items,
		sources:     sources,
		health:      health,
		queue:       queue,
		logger:      logger,
		concurrency: concurrency,
	}
}

// Run executes one ingestion run for one source. Health is recorded on
// every path, including panics unwinding through the defer and cancelled
// contexts: the record must always reflect the most recent attempt. The
// returned stats are valid even when err is non-nil.
func (s *IngestService) Run(ctx context.Context, src *domain.Source) (stats *domain.RunStats, err error) {
	start := time.Now()
	stats = &domain.RunStats{SourceID: src.ID}
	logger := s.logger.With("source_id", src.ID, "kind", string(src.Kind))

	defer func() {
		stats.Duration = time.Since(start)
		s.recordHealth(src.ID, err, logger)
	}()

	fetcher, ok := s.fetchers[src.Kind]
	if !ok {
		err = domain.SourceFatalf("no fetcher for source kind %q", src.Kind)
		return stats, err
	}

	logger.Info("starting run", "name", src.Name)

	result, fetchErr := fetcher.Fetch(ctx, src)
	if fetchErr != nil {
		err = fmt.Errorf("fetch source %d: %w", src.ID, fetchErr)
		return stats, err
	}

	stats.Fetched = len(result.Items)
	stats.Skipped = result.Skipped

	for i := range result.Items {
		// Cancellation stops further items; already-upserted items
		// stand. A retried run is idempotent through the dedup gateway.
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
			return stats, err
		}

		item := &result.Items[i]

		id, insertErr := s.items.Insert(ctx, item)
		if insertErr != nil {
			stats.Errors++
			logger.Error("failed to upsert item",
				"external_id", item.ExternalID,
				"error", insertErr,
			)
			continue
		}

		if id == 0 {
			stats.Known++
			continue
		}

		item.ID = id
		stats.New++

		if enqueueErr := s.queue.Enqueue(ctx, TaskProcessItem, id, src.ID); enqueueErr != nil {
			stats.Errors++
			logger.Error("failed to enqueue item",
				"item_id", id,
				"error", enqueueErr,
			)
			continue
		}
		stats.Enqueued++
	}

	logger.Info("run completed",
		"fetched", stats.Fetched,
		"skipped", stats.Skipped,
		"known", stats.Known,
		"new", stats.New,
		"enqueued", stats.Enqueued,
		"errors", stats.Errors,
		"duration", time.Since(start),
	)

	return stats, nil
}

// Sweep runs every source of the given kind with bounded concurrency. A
// failing source is counted and logged but never fails its siblings or the
// sweep itself.
func (s *IngestService) Sweep(ctx context.Context, kind domain.SourceKind) (*domain.SweepStats, error) {
	start := time.Now()
	sweepID := uuid.NewString()
	logger := s.logger.With("sweep_id", sweepID, "kind", string(kind))

	sources, err := s.sources.ListByKind(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	stats := &domain.SweepStats{SweepID: sweepID, Kind: kind, Sources: len(sources)}
	logger.Info("starting sweep", "sources", len(sources))

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, s.concurrency)
	)

	for i := range sources {
		src := sources[i]

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			runStats, runErr := s.Run(ctx, &src)

			mu.Lock()
			defer mu.Unlock()

			if runErr != nil {
				stats.Failed++
				logger.Error("source run failed", "source_id", src.ID, "error", runErr)
				return
			}
			stats.Succeeded++
			stats.NewItems += runStats.New
			stats.Enqueued += runStats.Enqueued
		}()
	}

	wg.Wait()
	stats.Duration = time.Since(start)

	logger.Info("sweep completed",
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"new_items", stats.NewItems,
		"enqueued", stats.Enqueued,
		"duration", stats.Duration,
	)

	return stats, nil
}

// recordHealth writes the run outcome on its own context: the run's context
// may already be cancelled, and the health record must still land.
func (s *IngestService) recordHealth(sourceID int64, runErr error, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), healthRecordTimeout)
	defer cancel()

	status := domain.HealthOK
	var lastError *string
	if runErr != nil {
		status = domain.HealthError
		msg := runErr.Error()
		lastError = &msg
	}

	if err := s.health.Record(ctx, sourceID, status, lastError); err != nil {
		logger.Error("failed to record source health", "error", err)
	}
}
