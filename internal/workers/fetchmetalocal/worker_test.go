package fetchmetalocal

import (
	"context"
	"testing"

	"github.com/gopreparse/preparser/internal/item"
	"github.com/gopreparse/preparser/internal/mediastore"
	"github.com/gopreparse/preparser/internal/worker"
)

type fakeStore struct {
	entries map[string]*mediastore.Entry
}

func (f *fakeStore) Lookup(_ context.Context, key string) (*mediastore.Entry, bool, error) {
	e, ok := f.entries[key]
	return e, ok, nil
}

type recordingReporter struct {
	meta map[string]string
	art  string
}

func newRecordingReporter() *recordingReporter {
	return &recordingReporter{meta: make(map[string]string)}
}

func (r *recordingReporter) SubitemsAdded([]item.Handle)         {}
func (r *recordingReporter) AttachmentsAdded()                   {}
func (r *recordingReporter) MetaProgress(field, value string)    { r.meta[field] = value }
func (r *recordingReporter) ArtFound(url string)                 { r.art = url }
func (r *recordingReporter) PictureReady(pic *item.Picture)      {}

func TestRunReportsFieldsOnHit(t *testing.T) {
	store := &fakeStore{entries: map[string]*mediastore.Entry{
		"movie-1": {Title: "Arrival", Fields: map[string]string{"year": "2016"}, ArtPath: "/library/art/arrival.jpg"},
	}}
	w := New(store, nil)
	rep := newRecordingReporter()

	outcome, err := w.Run(context.Background(), item.New("movie-1"), worker.Options{}, nil, rep)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != worker.Ok {
		t.Fatalf("got outcome %v, want Ok", outcome)
	}
	if rep.meta["title"] != "Arrival" || rep.meta["year"] != "2016" {
		t.Fatalf("meta = %v, missing expected fields", rep.meta)
	}
	if rep.art != "/library/art/arrival.jpg" {
		t.Fatalf("art = %q, want the library art path", rep.art)
	}
}

func TestRunOkOnMiss(t *testing.T) {
	store := &fakeStore{entries: map[string]*mediastore.Entry{}}
	w := New(store, nil)
	rep := newRecordingReporter()

	outcome, err := w.Run(context.Background(), item.New("unknown"), worker.Options{}, nil, rep)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != worker.Ok {
		t.Fatalf("got outcome %v, want Ok on a library miss", outcome)
	}
	if len(rep.meta) != 0 || rep.art != "" {
		t.Fatal("expected no metadata reported on a miss")
	}
}
