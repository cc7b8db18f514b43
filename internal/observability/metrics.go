// Package observability periodically logs engine-wide counters, adapted
// from the teacher's autoCheckpoint ticker loop — logging a stats snapshot
// on a fixed interval instead of persisting a resumable checkpoint, since
// this engine has no pause/resume concept to checkpoint.
package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// StatsSource is anything that can produce a named counter snapshot, the
// shape the coordinator's Stats() method returns.
type StatsSource interface {
	Stats() map[string]uint64
}

// Reporter logs a StatsSource's snapshot on a fixed interval until its
// context is cancelled.
type Reporter struct {
	source   StatsSource
	interval time.Duration
	logger   *slog.Logger

	wg sync.WaitGroup
}

// NewReporter creates a periodic stats reporter. interval <= 0 disables
// reporting: Run returns immediately without logging.
func NewReporter(source StatsSource, interval time.Duration, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{source: source, interval: interval, logger: logger.With("component", "stats_reporter")}
}

// Run logs a stats snapshot every interval, and once more on shutdown,
// until ctx is cancelled.
func (r *Reporter) Run(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	r.wg.Add(1)
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("engine stopped", "stats", r.source.Stats())
			return
		case <-ticker.C:
			r.logger.Info("engine stats", "stats", r.source.Stats())
		}
	}
}

// Wait blocks until a started Run has returned.
func (r *Reporter) Wait() {
	r.wg.Wait()
}
