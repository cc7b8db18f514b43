package thumbnail

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gopreparse/preparser/internal/artwork"
	"github.com/gopreparse/preparser/internal/item"
	"github.com/gopreparse/preparser/internal/worker"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: 120, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

type capturingReporter struct {
	pic *item.Picture
}

func (r *capturingReporter) SubitemsAdded([]item.Handle)      {}
func (r *capturingReporter) AttachmentsAdded()                {}
func (r *capturingReporter) MetaProgress(string, string)      {}
func (r *capturingReporter) ArtFound(string)                  {}
func (r *capturingReporter) PictureReady(pic *item.Picture)   { r.pic = pic }

func TestRunFetchesArtworkAndReportsPicture(t *testing.T) {
	data := pngBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	defer srv.Close()

	it := item.New("movie-1")
	it.SetArtURL(srv.URL + "/poster.png")

	fetcher := artwork.NewFetcher(0, nil, nil)
	w := New(fetcher, nil)
	rep := &capturingReporter{}

	outcome, err := w.Run(context.Background(), it, worker.Options{}, nil, rep)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != worker.Ok {
		t.Fatalf("got outcome %v, want Ok", outcome)
	}
	if rep.pic == nil {
		t.Fatal("expected a picture to be reported")
	}
	if rep.pic.Width != 16 || rep.pic.Height != 16 {
		t.Fatalf("picture dims = %dx%d, want 16x16", rep.pic.Width, rep.pic.Height)
	}
}

func TestRunMissingArtURLIsError(t *testing.T) {
	fetcher := artwork.NewFetcher(0, nil, nil)
	w := New(fetcher, nil)
	rep := &capturingReporter{}

	outcome, err := w.Run(context.Background(), item.New("movie-2"), worker.Options{}, nil, rep)
	if err == nil {
		t.Fatal("expected an error when the item has no art URL")
	}
	if outcome != worker.Error {
		t.Fatalf("got outcome %v, want Error", outcome)
	}
}
