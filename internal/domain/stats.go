package domain

import "time"

// RunStats holds counters for one orchestrator run of one source.
type RunStats struct {
	SourceID int64
	Fetched  int
	Skipped  int
	Known    int
	New      int
	Enqueued int
	Errors   int
	Duration time.Duration
}

// SweepStats aggregates the outcome of one sweep across all sources of a kind.
type SweepStats struct {
	SweepID   string
	Kind      SourceKind
	Sources   int
	Succeeded int
	Failed    int
	NewItems  int
	Enqueued  int
	Duration  time.Duration
}
