// Package fetchmetalocal implements the fetch-meta-local domain worker:
// a lookup against a pre-existing local media library index, reporting
// whatever metadata fields and artwork path the library already has for
// an item.
package fetchmetalocal

import (
	"context"
	"log/slog"

	"github.com/gopreparse/preparser/internal/item"
	"github.com/gopreparse/preparser/internal/mediastore"
	"github.com/gopreparse/preparser/internal/worker"
)

// Lookup is the subset of *mediastore.Store this worker needs, declared
// as an interface so tests can supply a fake library without a live
// MongoDB connection.
type Lookup interface {
	Lookup(ctx context.Context, key string) (*mediastore.Entry, bool, error)
}

// Worker is the fetch-meta-local domain worker.
type Worker struct {
	store  Lookup
	logger *slog.Logger
}

// New creates a fetch-meta-local worker backed by store.
func New(store Lookup, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{store: store, logger: logger.With("component", "fetch_meta_local_worker")}
}

// Run looks the item up by its key in the local library. A library miss
// is not an error: it means there is nothing more for this worker to
// report, and it completes Ok having added no metadata.
func (w *Worker) Run(ctx context.Context, it item.Handle, _ worker.Options, _ *worker.SeekDescriptor, rep worker.Reporter) (worker.Outcome, error) {
	entry, found, err := w.store.Lookup(ctx, it.Key())
	if err != nil {
		return worker.Error, err
	}
	if !found {
		w.logger.Debug("no local library entry", "key", it.Key())
		return worker.Ok, nil
	}

	select {
	case <-ctx.Done():
		return worker.Interrupted, ctx.Err()
	default:
	}

	if entry.Title != "" {
		rep.MetaProgress("title", entry.Title)
	}
	for field, value := range entry.Fields {
		rep.MetaProgress(field, value)
	}
	if entry.ArtPath != "" {
		rep.ArtFound(entry.ArtPath)
	}
	return worker.Ok, nil
}
