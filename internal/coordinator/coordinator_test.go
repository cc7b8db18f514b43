package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gopreparse/preparser/internal/executor"
	"github.com/gopreparse/preparser/internal/item"
	"github.com/gopreparse/preparser/internal/worker"
)

// stubWorker runs a caller-supplied function, letting tests control
// exactly how a domain's sub-task behaves and when it observes interrupt.
type stubWorker struct {
	run func(ctx context.Context, it item.Handle, rep worker.Reporter) (worker.Outcome, error)
}

func (w *stubWorker) Run(ctx context.Context, it item.Handle, _ worker.Options, _ *worker.SeekDescriptor, rep worker.Reporter) (worker.Outcome, error) {
	return w.run(ctx, it, rep)
}

type stubRegistry struct {
	mu      sync.Mutex
	workers map[worker.Domain]worker.Worker
}

func newStubRegistry() *stubRegistry {
	return &stubRegistry{workers: make(map[worker.Domain]worker.Worker)}
}

func (r *stubRegistry) set(d worker.Domain, w worker.Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[d] = w
}

func (r *stubRegistry) For(d worker.Domain) (worker.Worker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[d]
	return w, ok
}

func newTestCoordinator(t *testing.T, timeout time.Duration, registry *stubRegistry, domains ...worker.Domain) (*Coordinator, func()) {
	t.Helper()
	execs := make(map[worker.Domain]*executor.Executor)
	ctx, cancel := context.WithCancel(context.Background())
	for _, d := range domains {
		ex := executor.New(2, nil)
		ex.Start(ctx)
		execs[d] = ex
	}
	c := New(execs, registry, timeout, nil)
	return c, func() { cancel(); c.Destroy() }
}

func waitForResult(t *testing.T, ch <-chan worker.Outcome) worker.Outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for terminal callback")
		return worker.Error
	}
}

func TestSingleDomainSuccess(t *testing.T) {
	reg := newStubRegistry()
	reg.set(worker.Parse, &stubWorker{run: func(ctx context.Context, it item.Handle, rep worker.Reporter) (worker.Outcome, error) {
		return worker.Ok, nil
	}})
	c, cleanup := newTestCoordinator(t, 0, reg, worker.Parse)
	defer cleanup()

	it := item.New("movie-1")
	results := make(chan worker.Outcome, 1)
	id := c.EnqueueParse(it, worker.MaskParse, worker.Options{}, ParseCallbacks{
		OnPreparseEnded: func(it item.Handle, status worker.Outcome, _ any) { results <- status },
	})
	if id == 0 {
		t.Fatal("expected a valid request id")
	}
	if got := waitForResult(t, results); got != worker.Ok {
		t.Fatalf("got %v, want Ok", got)
	}
}

func TestErrorWinsOverOkPrecedence(t *testing.T) {
	reg := newStubRegistry()
	reg.set(worker.Parse, &stubWorker{run: func(ctx context.Context, it item.Handle, rep worker.Reporter) (worker.Outcome, error) {
		return worker.Ok, nil
	}})
	reg.set(worker.FetchMetaLocal, &stubWorker{run: func(ctx context.Context, it item.Handle, rep worker.Reporter) (worker.Outcome, error) {
		return worker.Error, errors.New("boom")
	}})
	c, cleanup := newTestCoordinator(t, 0, reg, worker.Parse, worker.FetchMetaLocal)
	defer cleanup()

	it := item.New("movie-2")
	results := make(chan worker.Outcome, 1)
	c.EnqueueParse(it, worker.MaskParse|worker.MaskFetchMetaLocal, worker.Options{}, ParseCallbacks{
		OnPreparseEnded: func(it item.Handle, status worker.Outcome, _ any) { results <- status },
	})
	if got := waitForResult(t, results); got != worker.Error {
		t.Fatalf("got %v, want Error", got)
	}
}

func TestTimeoutWinsOverLateCompletion(t *testing.T) {
	reg := newStubRegistry()
	reg.set(worker.Parse, &stubWorker{run: func(ctx context.Context, it item.Handle, rep worker.Reporter) (worker.Outcome, error) {
		<-ctx.Done()
		// Simulate a worker that manages to report success just as it is
		// being interrupted by the timeout; the coordinator must still
		// deliver Timeout, not Ok.
		return worker.Ok, nil
	}})
	c, cleanup := newTestCoordinator(t, 30*time.Millisecond, reg, worker.Parse)
	defer cleanup()

	it := item.New("movie-3")
	results := make(chan worker.Outcome, 1)
	c.EnqueueParse(it, worker.MaskParse, worker.Options{}, ParseCallbacks{
		OnPreparseEnded: func(it item.Handle, status worker.Outcome, _ any) { results <- status },
	})
	if got := waitForResult(t, results); got != worker.Timeout {
		t.Fatalf("got %v, want Timeout", got)
	}
}

func TestCancelDuringQueueYieldsInterrupted(t *testing.T) {
	reg := newStubRegistry()
	block := make(chan struct{})
	reg.set(worker.Parse, &stubWorker{run: func(ctx context.Context, it item.Handle, rep worker.Reporter) (worker.Outcome, error) {
		<-block
		return worker.Ok, nil
	}})

	execs := make(map[worker.Domain]*executor.Executor)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ex := executor.New(1, nil) // single thread: second request stays queued
	ex.Start(ctx)
	execs[worker.Parse] = ex
	c := New(execs, reg, 0, nil)

	// Occupy the only thread.
	busyResults := make(chan worker.Outcome, 1)
	c.EnqueueParse(item.New("busy"), worker.MaskParse, worker.Options{}, ParseCallbacks{
		OnPreparseEnded: func(item.Handle, worker.Outcome, any) { busyResults <- worker.Ok },
	})

	results := make(chan worker.Outcome, 1)
	id := c.EnqueueParse(item.New("queued"), worker.MaskParse, worker.Options{}, ParseCallbacks{
		OnPreparseEnded: func(it item.Handle, status worker.Outcome, _ any) { results <- status },
	})

	n := c.Cancel(id)
	if n != 1 {
		t.Fatalf("Cancel returned %d, want 1", n)
	}
	if got := waitForResult(t, results); got != worker.Interrupted {
		t.Fatalf("got %v, want Interrupted", got)
	}

	close(block)
	waitForResult(t, busyResults)
}

func TestCancelUnknownOrTerminalReturnsZero(t *testing.T) {
	reg := newStubRegistry()
	reg.set(worker.Parse, &stubWorker{run: func(ctx context.Context, it item.Handle, rep worker.Reporter) (worker.Outcome, error) {
		return worker.Ok, nil
	}})
	c, cleanup := newTestCoordinator(t, 0, reg, worker.Parse)
	defer cleanup()

	if n := c.Cancel(12345); n != 0 {
		t.Fatalf("Cancel of unknown id returned %d, want 0", n)
	}

	results := make(chan worker.Outcome, 1)
	id := c.EnqueueParse(item.New("done"), worker.MaskParse, worker.Options{}, ParseCallbacks{
		OnPreparseEnded: func(it item.Handle, status worker.Outcome, _ any) { results <- status },
	})
	waitForResult(t, results)

	if n := c.Cancel(id); n != 0 {
		t.Fatalf("Cancel of an already-terminal id returned %d, want 0", n)
	}
}

func TestThumbnailDeliversPictureOnlyOnOk(t *testing.T) {
	reg := newStubRegistry()
	reg.set(worker.Thumbnail, &stubWorker{run: func(ctx context.Context, it item.Handle, rep worker.Reporter) (worker.Outcome, error) {
		rep.PictureReady(item.NewPicture(100, 100, "jpeg", []byte{1, 2, 3}, 42))
		return worker.Ok, nil
	}})
	c, cleanup := newTestCoordinator(t, 0, reg, worker.Thumbnail)
	defer cleanup()

	type result struct {
		status worker.Outcome
		pic    *item.Picture
	}
	results := make(chan result, 1)
	c.EnqueueThumbnail(item.New("frame"), nil, 0, func(it item.Handle, status worker.Outcome, pic *item.Picture, _ any) {
		results <- result{status, pic}
	})

	select {
	case r := <-results:
		if r.status != worker.Ok {
			t.Fatalf("got status %v, want Ok", r.status)
		}
		if r.pic == nil || r.pic.Hash != 42 {
			t.Fatal("expected the produced picture to be delivered")
		}
		// The coordinator releases its own hold right after the callback
		// returns; a callback that wants to keep the picture must Hold()
		// before returning, so a callback that didn't must see refs reach
		// zero shortly after.
		deadline := time.Now().Add(time.Second)
		for r.pic.RefCount() != 0 {
			if time.Now().After(deadline) {
				t.Fatalf("picture refcount never reached 0 after callback return, got %d", r.pic.RefCount())
			}
			time.Sleep(time.Millisecond)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for thumbnail result")
	}
}

func TestDestroyDrainsInFlightRequests(t *testing.T) {
	reg := newStubRegistry()
	started := make(chan struct{})
	reg.set(worker.Parse, &stubWorker{run: func(ctx context.Context, it item.Handle, rep worker.Reporter) (worker.Outcome, error) {
		close(started)
		<-ctx.Done()
		return worker.Interrupted, nil
	}})

	execs := make(map[worker.Domain]*executor.Executor)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ex := executor.New(1, nil)
	ex.Start(ctx)
	execs[worker.Parse] = ex
	c := New(execs, reg, 0, nil)

	results := make(chan worker.Outcome, 1)
	c.EnqueueParse(item.New("in-flight"), worker.MaskParse, worker.Options{}, ParseCallbacks{
		OnPreparseEnded: func(it item.Handle, status worker.Outcome, _ any) { results <- status },
	})
	<-started

	done := make(chan struct{})
	go func() {
		c.Destroy()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Destroy never returned")
	}
	if got := waitForResult(t, results); got != worker.Interrupted {
		t.Fatalf("got %v, want Interrupted", got)
	}

	if id := c.EnqueueParse(item.New("after-destroy"), worker.MaskParse, worker.Options{}, ParseCallbacks{
		OnPreparseEnded: func(item.Handle, worker.Outcome, any) {},
	}); id != 0 {
		t.Fatal("expected EnqueueParse to be rejected after Destroy")
	}
}
