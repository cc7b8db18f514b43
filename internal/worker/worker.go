// Package worker defines the domain worker contract that the coordinator
// dispatches sub-tasks through, along with the small vocabulary of types
// (outcomes, domains, seek descriptors) shared across every domain
// implementation in internal/workers.
package worker

import (
	"context"

	"github.com/gopreparse/preparser/internal/item"
)

// Domain identifies one of the four sub-task families a preparse request
// can fan out into.
type Domain int

const (
	Parse Domain = iota
	FetchMetaLocal
	FetchMetaNet
	Thumbnail
)

func (d Domain) String() string {
	switch d {
	case Parse:
		return "parse"
	case FetchMetaLocal:
		return "fetch_meta_local"
	case FetchMetaNet:
		return "fetch_meta_net"
	case Thumbnail:
		return "thumbnail"
	default:
		return "unknown"
	}
}

// AllDomains lists every domain in a fixed, stable order. Dispatch order
// for a parse-family request follows this order.
var AllDomains = []Domain{Parse, FetchMetaLocal, FetchMetaNet, Thumbnail}

// Mask selects a subset of domains for a parse-family request.
type Mask uint8

const (
	MaskParse Mask = 1 << iota
	MaskFetchMetaLocal
	MaskFetchMetaNet
	MaskThumbnail
)

// Has reports whether the mask selects the given domain.
func (m Mask) Has(d Domain) bool {
	switch d {
	case Parse:
		return m&MaskParse != 0
	case FetchMetaLocal:
		return m&MaskFetchMetaLocal != 0
	case FetchMetaNet:
		return m&MaskFetchMetaNet != 0
	case Thumbnail:
		return m&MaskThumbnail != 0
	default:
		return false
	}
}

// Domains returns the selected domains in dispatch order.
func (m Mask) Domains() []Domain {
	out := make([]Domain, 0, len(AllDomains))
	for _, d := range AllDomains {
		if m.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

// Popcount returns the number of domains selected by the mask.
func (m Mask) Popcount() int { return len(m.Domains()) }

// Precision trades thumbnail accuracy for speed.
type Precision int

const (
	Precise Precision = iota
	Fast
)

// SeekKind selects how a thumbnail request locates the frame to capture.
type SeekKind int

const (
	SeekNone SeekKind = iota
	SeekByTime
	SeekByPosition
)

// SeekDescriptor pins the thumbnail worker to a specific point in the
// media, either an absolute time offset or a fractional position.
type SeekDescriptor struct {
	Kind      SeekKind
	Ticks     int64   // nanoseconds, valid when Kind == SeekByTime
	Fraction  float64 // in [0,1], valid when Kind == SeekByPosition
	Precision Precision
}

// Options carries the per-request tuning a caller may request, independent
// of which domains are selected.
type Options struct {
	// Interact is passed unchanged to every domain worker a parse-family
	// request dispatches. None of the workers in internal/workers reads it;
	// the fetch-meta-net backend (http or browser) is chosen by
	// configuration, not per request.
	Interact bool
}

// Outcome is the tagged result every worker and every aggregate request
// converges to. Values are ordered by precedence: a later constant always
// outranks an earlier one when outcomes are merged.
type Outcome int

const (
	Ok Outcome = iota
	Interrupted
	Timeout
	Error
)

func (o Outcome) String() string {
	switch o {
	case Ok:
		return "ok"
	case Timeout:
		return "timeout"
	case Interrupted:
		return "interrupted"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Merge combines two outcomes under the fixed precedence
// Error > Timeout > Interrupted > Ok, keeping whichever outranks the other.
// A later arrival never downgrades an already-recorded failure.
func Merge(current, incoming Outcome) Outcome {
	if incoming > current {
		return incoming
	}
	return current
}

// Reporter lets a running worker push intermediate events about a request
// without ending the sub-task. Every method must be safe to call from the
// worker's own goroutine. The coordinator's implementation serializes
// intermediate callbacks per request, so a call may wait while another
// sub-task of the same request is delivering one.
type Reporter interface {
	// SubitemsAdded announces newly discovered child items.
	SubitemsAdded(items []item.Handle)
	// AttachmentsAdded announces that the item gained attachments.
	AttachmentsAdded()
	// MetaProgress records a single discovered metadata field.
	MetaProgress(field, value string)
	// ArtFound records a discovered artwork URL.
	ArtFound(url string)
	// PictureReady hands over a produced thumbnail. Only meaningful for the
	// Thumbnail domain; other domains must never call it.
	PictureReady(pic *item.Picture)
}

// Worker is the contract every domain implementation satisfies. Run must
// return promptly once ctx is done, reporting Interrupted unless it has
// already committed to a different outcome.
type Worker interface {
	Run(ctx context.Context, it item.Handle, opts Options, seek *SeekDescriptor, rep Reporter) (Outcome, error)
}
