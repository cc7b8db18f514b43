// Package coordinator implements the request coordinator: acceptance of
// new parse-family and thumbnail-family requests, fan-out to the bounded
// executors for the selected domains, aggregation of sub-task outcomes
// under the fixed precedence Error > Timeout > Interrupted > Ok, and the
// single terminal transition that delivers exactly one callback per
// request no matter how cancellation, timeout and completion interleave.
package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopreparse/preparser/internal/ddtimer"
	"github.com/gopreparse/preparser/internal/executor"
	"github.com/gopreparse/preparser/internal/item"
	"github.com/gopreparse/preparser/internal/table"
	"github.com/gopreparse/preparser/internal/worker"
)

// ParseCallbacks groups the callbacks a parse-family request may receive.
// OnPreparseEnded is mandatory; the other two are optional progress
// notifications.
type ParseCallbacks struct {
	OnSubitemsAdded    func(it item.Handle, subitems []item.Handle, userData any)
	OnAttachmentsAdded func(it item.Handle, userData any)
	OnPreparseEnded    func(it item.Handle, status worker.Outcome, userData any)
}

// ThumbnailCallback is invoked exactly once for a thumbnail-family
// request. pic is non-nil only when status is Ok.
type ThumbnailCallback func(it item.Handle, status worker.Outcome, pic *item.Picture, userData any)

type kind int

const (
	kindParse kind = iota
	kindThumbnail
)

// record is the coordinator's private bookkeeping for one in-flight
// request. Its state (status, remaining counter, terminal flag, subtask
// handles) is guarded by mu; cbMu additionally serializes the delivery of
// intermediate (non-terminal) callbacks so two concurrently-completing
// sub-tasks can never interleave two on_subitems_added deliveries for the
// same request.
type record struct {
	mu   sync.Mutex
	cbMu sync.Mutex

	id        table.ID
	kind      kind
	item      item.Handle
	userData  any
	parseCBs  ParseCallbacks
	thumbCB   ThumbnailCallback
	subtasks  map[worker.Domain]executor.SubHandle
	remaining int
	status    worker.Outcome
	terminal  bool
	timer     *ddtimer.Timer
	picture   *item.Picture
}

// domainExecutor is the subset of *executor.Executor the coordinator
// needs. Declaring it as an interface keeps the coordinator package
// testable without spinning up real goroutine pools.
type domainExecutor interface {
	Submit(task func(ctx context.Context) (worker.Outcome, error), sink func(worker.Outcome, error)) executor.SubHandle
	Cancel(h executor.SubHandle) bool
}

// Registry resolves a Worker implementation for a domain.
type Registry interface {
	For(d worker.Domain) (worker.Worker, bool)
}

type cancelReason int

const (
	reasonUser cancelReason = iota
	reasonTimeout
)

func (r cancelReason) outcome() worker.Outcome {
	if r == reasonTimeout {
		return worker.Timeout
	}
	return worker.Interrupted
}

// Coordinator is the request coordinator.
type Coordinator struct {
	logger        *slog.Logger
	table         *table.Table[record]
	executors     map[worker.Domain]domainExecutor
	registry      Registry
	engineTimeout time.Duration
	shuttingDown  atomic.Bool

	acceptedTotal  atomic.Uint64
	rejectedTotal  atomic.Uint64
	subtasksTotal  atomic.Uint64
	terminalOk     atomic.Uint64
	terminalErr    atomic.Uint64
	terminalTO     atomic.Uint64
	terminalIntr   atomic.Uint64
}

// New creates a coordinator. executors must have an entry for every domain
// the registry can serve; engineTimeout is the default per-request
// timeout (0 disables it).
func New(executors map[worker.Domain]*executor.Executor, registry Registry, engineTimeout time.Duration, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	wrapped := make(map[worker.Domain]domainExecutor, len(executors))
	for d, ex := range executors {
		wrapped[d] = ex
	}
	return &Coordinator{
		logger:        logger.With("component", "coordinator"),
		table:         table.New[record](),
		executors:     wrapped,
		registry:      registry,
		engineTimeout: engineTimeout,
	}
}

// EnqueueParse accepts a new parse-family request, fanning out to every
// domain selected by mask. It returns table.Invalid if the engine is
// shutting down, mask is empty, no terminal callback was supplied, or mask
// selects a domain with no registered executor.
func (c *Coordinator) EnqueueParse(it item.Handle, mask worker.Mask, opts worker.Options, cbs ParseCallbacks) table.ID {
	return c.enqueueParse(it, mask, opts, cbs, nil)
}

// EnqueueParseWithData is EnqueueParse plus an opaque value handed back
// unchanged to every callback.
func (c *Coordinator) EnqueueParseWithData(it item.Handle, mask worker.Mask, opts worker.Options, cbs ParseCallbacks, userData any) table.ID {
	return c.enqueueParse(it, mask, opts, cbs, userData)
}

func (c *Coordinator) enqueueParse(it item.Handle, mask worker.Mask, opts worker.Options, cbs ParseCallbacks, userData any) table.ID {
	if c.shuttingDown.Load() || mask.Popcount() == 0 || cbs.OnPreparseEnded == nil {
		c.rejectedTotal.Add(1)
		return table.Invalid
	}
	for _, d := range mask.Domains() {
		if _, ok := c.executors[d]; !ok {
			c.rejectedTotal.Add(1)
			return table.Invalid
		}
	}

	held := it.Hold()
	id := c.table.Allocate()
	rec := &record{
		id:        id,
		kind:      kindParse,
		item:      held,
		userData:  userData,
		parseCBs:  cbs,
		subtasks:  make(map[worker.Domain]executor.SubHandle),
		remaining: mask.Popcount(),
	}
	c.table.Insert(id, rec)
	c.acceptedTotal.Add(1)

	if c.engineTimeout > 0 {
		rec.timer = ddtimer.Arm(c.engineTimeout, func() { c.cancelRecordByID(id, reasonTimeout) })
	}

	for _, d := range mask.Domains() {
		c.dispatch(rec, d, opts, nil)
	}
	return id
}

// EnqueueThumbnail accepts a new thumbnail-family request. perRequestTimeout,
// when positive, replaces the engine-wide timeout for this request only.
func (c *Coordinator) EnqueueThumbnail(it item.Handle, seek *worker.SeekDescriptor, perRequestTimeout time.Duration, cb ThumbnailCallback) table.ID {
	return c.enqueueThumbnail(it, seek, perRequestTimeout, cb, nil)
}

// EnqueueThumbnailWithData is EnqueueThumbnail plus an opaque value handed
// back unchanged to cb.
func (c *Coordinator) EnqueueThumbnailWithData(it item.Handle, seek *worker.SeekDescriptor, perRequestTimeout time.Duration, cb ThumbnailCallback, userData any) table.ID {
	return c.enqueueThumbnail(it, seek, perRequestTimeout, cb, userData)
}

func (c *Coordinator) enqueueThumbnail(it item.Handle, seek *worker.SeekDescriptor, perRequestTimeout time.Duration, cb ThumbnailCallback, userData any) table.ID {
	if c.shuttingDown.Load() || cb == nil {
		c.rejectedTotal.Add(1)
		return table.Invalid
	}
	if _, ok := c.executors[worker.Thumbnail]; !ok {
		c.rejectedTotal.Add(1)
		return table.Invalid
	}

	held := it.Hold()
	id := c.table.Allocate()
	rec := &record{
		id:        id,
		kind:      kindThumbnail,
		item:      held,
		userData:  userData,
		thumbCB:   cb,
		subtasks:  make(map[worker.Domain]executor.SubHandle),
		remaining: 1,
	}
	c.table.Insert(id, rec)
	c.acceptedTotal.Add(1)

	timeout := c.engineTimeout
	if perRequestTimeout > 0 {
		timeout = perRequestTimeout
	}
	if timeout > 0 {
		rec.timer = ddtimer.Arm(timeout, func() { c.cancelRecordByID(id, reasonTimeout) })
	}

	c.dispatch(rec, worker.Thumbnail, worker.Options{}, seek)
	return id
}

func (c *Coordinator) dispatch(rec *record, d worker.Domain, opts worker.Options, seek *worker.SeekDescriptor) {
	w, ok := c.registry.For(d)
	if !ok {
		c.onSubtaskDone(rec, d, worker.Error, errNoWorker(d))
		return
	}
	rep := &recordReporter{rec: rec}
	c.subtasksTotal.Add(1)
	task := func(ctx context.Context) (worker.Outcome, error) {
		return w.Run(ctx, rec.item, opts, seek, rep)
	}
	handle := c.executors[d].Submit(task, func(outcome worker.Outcome, err error) {
		c.onSubtaskDone(rec, d, outcome, err)
	})

	rec.mu.Lock()
	rec.subtasks[d] = handle
	rec.mu.Unlock()
}

func (c *Coordinator) onSubtaskDone(rec *record, d worker.Domain, outcome worker.Outcome, _ error) {
	rec.mu.Lock()
	rec.status = worker.Merge(rec.status, outcome)
	rec.remaining--
	remaining := rec.remaining

	var siblings map[worker.Domain]executor.SubHandle
	if outcome != worker.Ok {
		siblings = make(map[worker.Domain]executor.SubHandle, len(rec.subtasks))
		for dd, h := range rec.subtasks {
			if dd != d {
				siblings[dd] = h
			}
		}
	}
	rec.mu.Unlock()

	for dd, h := range siblings {
		if ex, ok := c.executors[dd]; ok {
			ex.Cancel(h)
		}
	}

	if remaining == 0 {
		c.terminalTransition(rec)
	}
}

// Cancel cancels the request identified by id, or every outstanding
// request when id is table.Invalid. It returns the number of records it
// targeted; cancelling an unknown or already-terminal record counts as 0.
// Cancellation never itself delivers the terminal callback — it only
// forwards an interrupt to the outstanding sub-tasks and pre-records the
// aggregate status those sub-tasks will settle into.
func (c *Coordinator) Cancel(id table.ID) int {
	if id == table.Invalid {
		n := 0
		for _, rid := range c.table.Snapshot() {
			if rec, ok := c.table.Lookup(rid); ok {
				n += c.cancelRecord(rec, reasonUser)
			}
		}
		return n
	}
	rec, ok := c.table.Lookup(id)
	if !ok {
		return 0
	}
	return c.cancelRecord(rec, reasonUser)
}

func (c *Coordinator) cancelRecordByID(id table.ID, reason cancelReason) {
	if rec, ok := c.table.Lookup(id); ok {
		c.cancelRecord(rec, reason)
	}
}

func (c *Coordinator) cancelRecord(rec *record, reason cancelReason) int {
	rec.mu.Lock()
	if rec.terminal {
		rec.mu.Unlock()
		return 0
	}
	rec.status = worker.Merge(rec.status, reason.outcome())
	handles := make(map[worker.Domain]executor.SubHandle, len(rec.subtasks))
	for d, h := range rec.subtasks {
		handles[d] = h
	}
	rec.mu.Unlock()

	for d, h := range handles {
		if ex, ok := c.executors[d]; ok {
			ex.Cancel(h)
		}
	}
	return 1
}

func (c *Coordinator) terminalTransition(rec *record) {
	rec.mu.Lock()
	if rec.terminal {
		rec.mu.Unlock()
		return
	}
	rec.terminal = true
	status := rec.status
	pic := rec.picture
	timer := rec.timer
	rec.mu.Unlock()

	timer.Disarm()
	c.table.Remove(rec.id)

	switch status {
	case worker.Ok:
		c.terminalOk.Add(1)
	case worker.Timeout:
		c.terminalTO.Add(1)
	case worker.Interrupted:
		c.terminalIntr.Add(1)
	default:
		c.terminalErr.Add(1)
	}

	switch rec.kind {
	case kindParse:
		rec.parseCBs.OnPreparseEnded(rec.item, status, rec.userData)
	case kindThumbnail:
		var deliver *item.Picture
		if status == worker.Ok {
			deliver = pic
		} else if pic != nil {
			pic.Release()
		}
		rec.thumbCB(rec.item, status, deliver, rec.userData)
		if deliver != nil {
			deliver.Release()
		}
	}

	rec.item.Release()
}

// Destroy stops accepting new requests, cancels every outstanding one, and
// blocks until every sub-task has delivered its terminal callback.
func (c *Coordinator) Destroy() {
	c.shuttingDown.Store(true)
	c.Cancel(table.Invalid)
	for _, d := range worker.AllDomains {
		if ex, ok := c.executors[d]; ok {
			if drainer, ok := ex.(interface{ DrainAndShutdown() }); ok {
				drainer.DrainAndShutdown()
			}
		}
	}
}

// Stats returns a snapshot of the coordinator's lifetime counters.
func (c *Coordinator) Stats() map[string]uint64 {
	return map[string]uint64{
		"requests_accepted":   c.acceptedTotal.Load(),
		"requests_rejected":   c.rejectedTotal.Load(),
		"subtasks_started":    c.subtasksTotal.Load(),
		"terminal_ok":         c.terminalOk.Load(),
		"terminal_error":      c.terminalErr.Load(),
		"terminal_timeout":    c.terminalTO.Load(),
		"terminal_interrupted": c.terminalIntr.Load(),
		"outstanding":         uint64(c.table.Len()),
	}
}

// recordReporter adapts one record into a worker.Reporter, serializing
// intermediate callback delivery through the record's dedicated callback
// lock so two concurrently-completing sub-tasks never interleave two
// deliveries for the same request.
type recordReporter struct {
	rec *record
}

func (r *recordReporter) SubitemsAdded(subitems []item.Handle) {
	r.rec.mu.Lock()
	terminal := r.rec.terminal
	cb := r.rec.parseCBs.OnSubitemsAdded
	it := r.rec.item
	ud := r.rec.userData
	r.rec.mu.Unlock()
	if terminal || cb == nil {
		return
	}
	r.rec.cbMu.Lock()
	defer r.rec.cbMu.Unlock()
	cb(it, subitems, ud)
}

func (r *recordReporter) AttachmentsAdded() {
	r.rec.item.NotifyAttachmentsAdded()

	r.rec.mu.Lock()
	terminal := r.rec.terminal
	cb := r.rec.parseCBs.OnAttachmentsAdded
	it := r.rec.item
	ud := r.rec.userData
	r.rec.mu.Unlock()
	if terminal || cb == nil {
		return
	}
	r.rec.cbMu.Lock()
	defer r.rec.cbMu.Unlock()
	cb(it, ud)
}

func (r *recordReporter) MetaProgress(field, value string) {
	r.rec.item.SetMeta(field, value)
}

func (r *recordReporter) ArtFound(url string) {
	r.rec.item.SetArtURL(url)
}

func (r *recordReporter) PictureReady(pic *item.Picture) {
	r.rec.mu.Lock()
	r.rec.picture = pic
	r.rec.mu.Unlock()
}
