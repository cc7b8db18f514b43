package parse

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/gopreparse/preparser/internal/item"
	"github.com/gopreparse/preparser/internal/worker"
)

type memSource struct {
	docs map[string]string
}

func (m *memSource) Open(_ context.Context, key string) (io.ReadCloser, error) {
	doc, ok := m.docs[key]
	if !ok {
		return nil, errNotFound(key)
	}
	return io.NopCloser(strings.NewReader(doc)), nil
}

type notFoundError string

func (e notFoundError) Error() string { return "no sidecar for " + string(e) }
func errNotFound(key string) error    { return notFoundError(key) }

type capturingReporter struct {
	meta        map[string]string
	subitems    []item.Handle
	attachments int
}

func newCapturingReporter() *capturingReporter {
	return &capturingReporter{meta: make(map[string]string)}
}

func (r *capturingReporter) SubitemsAdded(items []item.Handle) { r.subitems = append(r.subitems, items...) }
func (r *capturingReporter) AttachmentsAdded()                 { r.attachments++ }
func (r *capturingReporter) MetaProgress(field, value string)  { r.meta[field] = value }
func (r *capturingReporter) ArtFound(string)                   {}
func (r *capturingReporter) PictureReady(*item.Picture)        {}

const sampleNFO = `<item>
  <title>Season One</title>
  <year>2019</year>
  <subitem key="episode-1"/>
  <subitem key="episode-2"/>
  <attachment path="episode-1.srt"/>
</item>`

func TestRunExtractsFieldsSubitemsAndAttachments(t *testing.T) {
	source := &memSource{docs: map[string]string{"season-1": sampleNFO}}
	w := New(source, DefaultRules(), nil)
	rep := newCapturingReporter()

	outcome, err := w.Run(context.Background(), item.New("season-1"), worker.Options{}, nil, rep)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != worker.Ok {
		t.Fatalf("got outcome %v, want Ok", outcome)
	}
	if rep.meta["title"] != "Season One" || rep.meta["year"] != "2019" {
		t.Fatalf("meta = %v, missing expected fields", rep.meta)
	}
	if len(rep.subitems) != 2 {
		t.Fatalf("got %d subitems, want 2", len(rep.subitems))
	}
	if rep.subitems[0].Key() != "episode-1" || rep.subitems[1].Key() != "episode-2" {
		t.Fatalf("unexpected subitem keys: %v", rep.subitems)
	}
	if rep.attachments != 1 {
		t.Fatalf("got %d attachment notifications, want 1", rep.attachments)
	}
}

func TestRunMissingSidecarIsError(t *testing.T) {
	source := &memSource{docs: map[string]string{}}
	w := New(source, DefaultRules(), nil)
	rep := newCapturingReporter()

	outcome, err := w.Run(context.Background(), item.New("missing"), worker.Options{}, nil, rep)
	if err == nil {
		t.Fatal("expected an error for a missing sidecar")
	}
	if outcome != worker.Error {
		t.Fatalf("got outcome %v, want Error", outcome)
	}
}

func TestRunNoSubitemsOrAttachmentsReportsNeither(t *testing.T) {
	source := &memSource{docs: map[string]string{"movie-1": `<item><title>Arrival</title></item>`}}
	w := New(source, DefaultRules(), nil)
	rep := newCapturingReporter()

	outcome, err := w.Run(context.Background(), item.New("movie-1"), worker.Options{}, nil, rep)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != worker.Ok {
		t.Fatalf("got outcome %v, want Ok", outcome)
	}
	if len(rep.subitems) != 0 || rep.attachments != 0 {
		t.Fatal("expected no subitem or attachment notifications")
	}
}
