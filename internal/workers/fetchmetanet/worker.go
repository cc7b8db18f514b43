package fetchmetanet

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gopreparse/preparser/internal/item"
	"github.com/gopreparse/preparser/internal/worker"
)

// Worker is the FetchMetaNet domain worker: it resolves an item's key to a
// provider URL and asks a Backend to fetch and extract metadata from it.
type Worker struct {
	backend Backend
	baseURL string
	logger  *slog.Logger
}

// New creates a FetchMetaNet worker. baseURL is joined with an item's key
// to form the provider URL to fetch, e.g. "https://provider.example/title/" + key.
func New(backend Backend, baseURL string, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		backend: backend,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger.With("component", "fetch_meta_net_worker"),
	}
}

// Run fetches the item's provider page and reports whatever metadata and
// artwork URL it finds.
func (w *Worker) Run(ctx context.Context, it item.Handle, _ worker.Options, _ *worker.SeekDescriptor, rep worker.Reporter) (worker.Outcome, error) {
	providerURL := fmt.Sprintf("%s/%s", w.baseURL, it.Key())

	meta, err := w.backend.FetchMeta(ctx, providerURL)
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

	if meta.Title != "" {
		rep.MetaProgress("title", meta.Title)
	}
	if meta.Synopsis != "" {
		rep.MetaProgress("synopsis", meta.Synopsis)
	}
	if meta.PosterURL != "" {
		rep.ArtFound(meta.PosterURL)
	}

	return worker.Ok, nil
}
