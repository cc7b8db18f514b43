// Package preparser is the public facade for embedding the media-item
// preparse engine as a library, adapted from the teacher's webstalk SDK:
// construct an Engine from a Config, enqueue parse-family and
// thumbnail-family requests against it, and destroy it when done.
package preparser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gopreparse/preparser/internal/artwork"
	"github.com/gopreparse/preparser/internal/config"
	"github.com/gopreparse/preparser/internal/coordinator"
	"github.com/gopreparse/preparser/internal/executor"
	"github.com/gopreparse/preparser/internal/item"
	"github.com/gopreparse/preparser/internal/mediastore"
	"github.com/gopreparse/preparser/internal/observability"
	"github.com/gopreparse/preparser/internal/table"
	"github.com/gopreparse/preparser/internal/worker"
	"github.com/gopreparse/preparser/internal/workers/fetchmetalocal"
	"github.com/gopreparse/preparser/internal/workers/fetchmetanet"
	"github.com/gopreparse/preparser/internal/workers/parse"
	"github.com/gopreparse/preparser/internal/workers/thumbnail"
)

// Engine is the embeddable preparse engine.
type Engine struct {
	cfg         *config.Config
	coordinator *coordinator.Coordinator
	executors   map[worker.Domain]*executor.Executor
	mediaStore  *mediastore.Store
	netBackend  fetchmetanet.Backend
	reporter    *observability.Reporter

	logger     *slog.Logger
	reportDone chan struct{}
	cancelRpt  context.CancelFunc
	cancelExec context.CancelFunc
}

// New builds an engine from cfg: one bounded executor per configured
// domain, one worker implementation per domain wired to its backing
// collaborator (a sidecar source, a local library, a network provider, an
// artwork fetcher), and the coordinator tying them together.
func New(cfg *config.Config) (*Engine, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("preparser: invalid config: %w", err)
	}

	logger := newLogger(cfg.Logging)

	domainSet := make(map[string]bool, len(cfg.Types))
	for _, t := range cfg.Types {
		domainSet[t] = true
	}

	// Only allocate an executor for a domain the caller actually configured
	// (spec §4.F "one executor per distinct domain requested"): the
	// coordinator's acceptance check rejects a request masking a domain
	// with no executor entry, so an executor present for every domain
	// regardless of configuration would silently defeat that rejection.
	executors := make(map[worker.Domain]*executor.Executor, len(domainSet))
	if domainSet["parse"] {
		executors[worker.Parse] = executor.New(cfg.MaxParserThreads, logger)
	}
	if domainSet["fetch_meta_local"] {
		executors[worker.FetchMetaLocal] = executor.New(cfg.MaxFetchLocalThreads, logger)
	}
	if domainSet["fetch_meta_net"] {
		executors[worker.FetchMetaNet] = executor.New(cfg.MaxFetchNetThreads, logger)
	}
	if domainSet["thumbnail"] {
		executors[worker.Thumbnail] = executor.New(cfg.MaxThumbnailerThreads, logger)
	}

	registry := worker.NewRegistry(logger)

	if domainSet["parse"] {
		registry.Register(worker.Parse, parse.New(parse.NewFileSource(".", ".nfo"), parse.DefaultRules(), logger))
	}

	var store *mediastore.Store
	if domainSet["fetch_meta_local"] {
		var err error
		connectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		store, err = mediastore.New(connectCtx, cfg.MediaStore.URI, cfg.MediaStore.Database, cfg.MediaStore.Collection, cfg.MediaStore.Timeout, logger)
		cancel()
		if err != nil {
			stopExecutors(executors)
			return nil, fmt.Errorf("preparser: connect media store: %w", err)
		}
		registry.Register(worker.FetchMetaLocal, fetchmetalocal.New(store, logger))
	}

	var netBackend fetchmetanet.Backend
	if domainSet["fetch_meta_net"] {
		var err error
		netBackend, err = newFetchMetaNetBackend(cfg, logger)
		if err != nil {
			stopExecutors(executors)
			if store != nil {
				_ = store.Close(context.Background())
			}
			return nil, fmt.Errorf("preparser: build fetch-meta-net backend: %w", err)
		}
		registry.Register(worker.FetchMetaNet, fetchmetanet.New(netBackend, cfg.FetchMetaNet.BaseURL, logger))
	}

	if domainSet["thumbnail"] {
		var dedup *artwork.Deduplicator
		if cfg.Artwork.PerceptualDedup {
			dedup = artwork.NewDeduplicator(cfg.Artwork.HashDistanceBits)
		}
		fetcher := artwork.NewFetcher(cfg.Artwork.MaxBytes, dedup, logger)
		registry.Register(worker.Thumbnail, thumbnail.New(fetcher, logger))
	}

	execCtx, cancelExec := context.WithCancel(context.Background())
	for _, ex := range executors {
		ex.Start(execCtx)
	}

	coord := coordinator.New(executors, registry, cfg.Timeout, logger)

	eng := &Engine{
		cfg:         cfg,
		coordinator: coord,
		executors:   executors,
		mediaStore:  store,
		netBackend:  netBackend,
		logger:      logger,
		cancelExec:  cancelExec,
	}

	if cfg.Metrics.Enabled {
		reportCtx, cancel := context.WithCancel(context.Background())
		eng.reporter = observability.NewReporter(coord, cfg.Metrics.Interval, logger)
		eng.cancelRpt = cancel
		eng.reportDone = make(chan struct{})
		go func() {
			eng.reporter.Run(reportCtx)
			close(eng.reportDone)
		}()
	}

	return eng, nil
}

// EnqueueParse enqueues a parse-family request for it, dispatching every
// domain selected by mask.
func (e *Engine) EnqueueParse(it item.Handle, mask worker.Mask, opts worker.Options, cbs coordinator.ParseCallbacks) table.ID {
	return e.coordinator.EnqueueParse(it, mask, opts, cbs)
}

// EnqueueParseWithData enqueues a parse-family request carrying opaque
// user data delivered back through the terminal callback.
func (e *Engine) EnqueueParseWithData(it item.Handle, mask worker.Mask, opts worker.Options, cbs coordinator.ParseCallbacks, userData any) table.ID {
	return e.coordinator.EnqueueParseWithData(it, mask, opts, cbs, userData)
}

// EnqueueThumbnail enqueues a thumbnail-family request for it.
// perRequestTimeout overrides the engine's default timeout when positive.
func (e *Engine) EnqueueThumbnail(it item.Handle, seek *worker.SeekDescriptor, perRequestTimeout time.Duration, cb coordinator.ThumbnailCallback) table.ID {
	return e.coordinator.EnqueueThumbnail(it, seek, perRequestTimeout, cb)
}

// EnqueueThumbnailWithData is EnqueueThumbnail with opaque user data.
func (e *Engine) EnqueueThumbnailWithData(it item.Handle, seek *worker.SeekDescriptor, perRequestTimeout time.Duration, cb coordinator.ThumbnailCallback, userData any) table.ID {
	return e.coordinator.EnqueueThumbnailWithData(it, seek, perRequestTimeout, cb, userData)
}

// Cancel cancels the request identified by id, or every outstanding
// request when id is table.Invalid. It returns how many requests were
// targeted.
func (e *Engine) Cancel(id table.ID) int {
	return e.coordinator.Cancel(id)
}

// Stats returns a snapshot of engine-wide counters.
func (e *Engine) Stats() map[string]uint64 {
	return e.coordinator.Stats()
}

// Destroy cancels every outstanding request, drains every executor, and
// releases backing collaborators. It blocks until shutdown completes.
func (e *Engine) Destroy() {
	e.coordinator.Destroy()
	e.cancelExec()

	if e.cancelRpt != nil {
		e.cancelRpt()
		<-e.reportDone
	}

	if e.mediaStore != nil {
		_ = e.mediaStore.Close(context.Background())
	}
	if e.netBackend != nil {
		_ = e.netBackend.Close()
	}
}

func stopExecutors(executors map[worker.Domain]*executor.Executor) {
	for _, ex := range executors {
		ex.DrainAndShutdown()
	}
}

func newFetchMetaNetBackend(cfg *config.Config, logger *slog.Logger) (fetchmetanet.Backend, error) {
	var proxies *fetchmetanet.ProxyManager
	if cfg.FetchMetaNet.Proxy.Enabled && len(cfg.FetchMetaNet.Proxy.URLs) > 0 {
		proxies = fetchmetanet.NewProxyManager(cfg.FetchMetaNet.Proxy.URLs, cfg.FetchMetaNet.Proxy.Rotation, logger)
	}

	switch cfg.FetchMetaNet.Backend {
	case "browser":
		opts := fetchmetanet.StealthOptions{
			Enabled:  cfg.FetchMetaNet.Stealth.Enabled,
			Width:    cfg.FetchMetaNet.Stealth.Viewport[0],
			Height:   cfg.FetchMetaNet.Stealth.Viewport[1],
			Platform: cfg.FetchMetaNet.Stealth.Platform,
			Language: cfg.FetchMetaNet.Stealth.Language,
		}
		return fetchmetanet.NewBrowserBackend(opts, fetchmetanet.DefaultSelectors(), cfg.Timeout, cfg.MaxFetchNetThreads, logger)
	default:
		return fetchmetanet.NewHTTPBackend(fetchmetanet.HTTPBackendOptions{
			MaxIdleConns:    cfg.FetchMetaNet.MaxIdleConns,
			IdleConnTimeout: cfg.FetchMetaNet.IdleConnTimeout,
			MaxBodySize:     cfg.FetchMetaNet.MaxBodySize,
			UserAgents:      cfg.FetchMetaNet.UserAgents,
			Sessions:        fetchmetanet.NewSessionManager(logger),
			Proxies:         proxies,
			Selectors:       fetchmetanet.DefaultSelectors(),
		}, logger), nil
	}
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	out := os.Stderr
	if cfg.Output == "stdout" {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler)
}
