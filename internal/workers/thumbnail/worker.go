// Package thumbnail implements the Thumbnail domain worker: fetching the
// artwork an earlier parse-family request discovered for an item, hashing
// it, and reporting it back as a ready item.Picture.
package thumbnail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gopreparse/preparser/internal/artwork"
	"github.com/gopreparse/preparser/internal/item"
	"github.com/gopreparse/preparser/internal/worker"
)

// Worker is the Thumbnail domain worker.
type Worker struct {
	fetcher *artwork.Fetcher
	logger  *slog.Logger
}

// New creates a thumbnail worker backed by fetcher.
func New(fetcher *artwork.Fetcher, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{fetcher: fetcher, logger: logger.With("component", "thumbnail_worker")}
}

// Run fetches the artwork at the item's recorded art URL and reports it as
// a Picture. There is no real media decoder in this engine to seek a video
// frame with, so a seek descriptor only annotates the request in logs: the
// artwork already recorded against the item (a poster, not a frame grab)
// is what gets reported regardless of seek target.
func (w *Worker) Run(ctx context.Context, it item.Handle, _ worker.Options, seek *worker.SeekDescriptor, rep worker.Reporter) (worker.Outcome, error) {
	artURL := it.ArtURL()
	if artURL == "" {
		return worker.Error, fmt.Errorf("thumbnail: item %s has no recorded artwork URL", it.Key())
	}

	if seek != nil && seek.Kind != worker.SeekNone {
		w.logger.Debug("thumbnail seek requested but unsupported; serving poster art", "key", it.Key(), "seek_kind", seek.Kind)
	}

	result, err := w.fetcher.Fetch(ctx, artURL)
	if err != nil {
		if ctx.Err() != nil {
			return worker.Interrupted, ctx.Err()
		}
		return worker.Error, err
	}

	select {
	case <-ctx.Done():
		return worker.Interrupted, ctx.Err()
	default:
	}

	pic := item.NewPicture(result.Width, result.Height, result.Format, result.Bytes, result.Hash)
	rep.PictureReady(pic)

	return worker.Ok, nil
}
