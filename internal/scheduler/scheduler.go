package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ParkerRex/zeke-sub005/internal/domain"
)

// Sweeper runs one pass over every source of a kind.
type Sweeper interface {
	Sweep(ctx context.Context, kind domain.SourceKind) (*domain.SweepStats, error)
}

const sweepTimeout = 10 * time.Minute

// Scheduler drives periodic sweeps per source kind on cron schedules.
// Feed sources and API-quota sources run on independent cadences.
type Scheduler struct {
	sweeper    Sweeper
	schedules  map[domain.SourceKind]string
	runOnStart bool
	logger     *slog.Logger
}

func NewScheduler(sweeper Sweeper, schedules map[domain.SourceKind]string, runOnStart bool, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		sweeper:    sweeper,
		schedules:  schedules,
		runOnStart: runOnStart,
		logger:     logger,
	}
}

// Start registers the cron entries and blocks until ctx is cancelled. A
// sweep already in flight is given until its own timeout to finish.
func (s *Scheduler) Start(ctx context.Context) error {
	c := cron.New()

	for kind, spec := range s.schedules {
		kind := kind
		if _, err := c.AddFunc(spec, func() {
			s.runSweep(ctx, kind)
		}); err != nil {
			return fmt.Errorf("schedule %s sweep %q: %w", kind, spec, err)
		}
		s.logger.Info("scheduled sweep", "kind", string(kind), "schedule", spec)
	}

	if s.runOnStart {
		for kind := range s.schedules {
			s.runSweep(ctx, kind)
		}
	}

	c.Start()

	<-ctx.Done()
	s.logger.Info("scheduler stopping")

	stopCtx := c.Stop()
	<-stopCtx.Done()

	return ctx.Err()
}

func (s *Scheduler) runSweep(ctx context.Context, kind domain.SourceKind) {
	sweepCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	if _, err := s.sweeper.Sweep(sweepCtx, kind); err != nil {
		s.logger.Error("sweep failed", "kind", string(kind), "error", err)
	}
}
