package preparser

import (
	"testing"

	"github.com/gopreparse/preparser/internal/config"
	"github.com/gopreparse/preparser/internal/coordinator"
	"github.com/gopreparse/preparser/internal/item"
	"github.com/gopreparse/preparser/internal/table"
	"github.com/gopreparse/preparser/internal/worker"
)

func parseOnlyConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Types = []string{"parse"}
	cfg.Metrics.Enabled = false
	return cfg
}

func TestEnqueueParseRejectsUnconfiguredDomain(t *testing.T) {
	eng, err := New(parseOnlyConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer eng.Destroy()

	it := item.New("title.nfo")
	defer it.Release()

	called := false
	cbs := coordinator.ParseCallbacks{
		OnPreparseEnded: func(item.Handle, worker.Outcome, any) { called = true },
	}

	id := eng.EnqueueParse(it, worker.MaskParse|worker.MaskFetchMetaNet, worker.Options{}, cbs)
	if id != table.Invalid {
		t.Fatalf("EnqueueParse with an unconfigured domain in the mask returned %d, want table.Invalid", id)
	}
	if called {
		t.Fatal("terminal callback fired for a request that should have been rejected synchronously")
	}
}

func TestEnqueueParseAcceptsConfiguredDomain(t *testing.T) {
	eng, err := New(parseOnlyConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer eng.Destroy()

	it := item.New("title.nfo")
	defer it.Release()

	done := make(chan worker.Outcome, 1)
	cbs := coordinator.ParseCallbacks{
		OnPreparseEnded: func(_ item.Handle, status worker.Outcome, _ any) { done <- status },
	}

	id := eng.EnqueueParse(it, worker.MaskParse, worker.Options{}, cbs)
	if id == table.Invalid {
		t.Fatal("EnqueueParse rejected a request whose mask only selects a configured domain")
	}
	<-done
}
