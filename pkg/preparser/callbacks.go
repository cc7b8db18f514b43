package preparser

import (
	"github.com/gopreparse/preparser/internal/coordinator"
	"github.com/gopreparse/preparser/internal/item"
	"github.com/gopreparse/preparser/internal/worker"
)

// ParseResult is what a synchronous caller receives once a parse-family
// request reaches its terminal callback.
type ParseResult struct {
	Item   item.Handle
	Status worker.Outcome
}

// ThumbnailResult is what a synchronous caller receives once a
// thumbnail-family request reaches its terminal callback.
type ThumbnailResult struct {
	Item    item.Handle
	Status  worker.Outcome
	Picture *item.Picture
}

// SyncParseCallbacks builds a ParseCallbacks whose terminal callback
// delivers a ParseResult over the returned channel, for callers (like a
// demo CLI) that want to block on one request rather than juggle their own
// callback state. The channel is buffered so the terminal callback never
// blocks waiting for a reader.
func SyncParseCallbacks() (coordinator.ParseCallbacks, <-chan ParseResult) {
	done := make(chan ParseResult, 1)
	cbs := coordinator.ParseCallbacks{
		OnPreparseEnded: func(it item.Handle, status worker.Outcome, _ any) {
			done <- ParseResult{Item: it, Status: status}
		},
	}
	return cbs, done
}

// SyncThumbnailCallback builds a ThumbnailCallback that delivers a
// ThumbnailResult over the returned channel. The callback takes its own
// reference on a delivered Picture before returning, so the receiver owns
// that reference and must Release it.
func SyncThumbnailCallback() (coordinator.ThumbnailCallback, <-chan ThumbnailResult) {
	done := make(chan ThumbnailResult, 1)
	cb := func(it item.Handle, status worker.Outcome, pic *item.Picture, _ any) {
		done <- ThumbnailResult{Item: it, Status: status, Picture: pic.Hold()}
	}
	return cb, done
}
