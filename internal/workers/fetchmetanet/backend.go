// Package fetchmetanet implements the FetchMetaNet domain worker: looking
// up an item's metadata page at a network provider and extracting title,
// synopsis, and poster URL from it. Two backends are available: a plain
// HTTP+goquery scraper for static pages, and a headless-browser backend
// for JS-rendered ones, selected by configuration.
package fetchmetanet

import "context"

// Metadata is what a backend extracts from a provider's page for one item.
type Metadata struct {
	Title     string
	Synopsis  string
	PosterURL string
}

// Backend fetches and extracts Metadata for a single provider URL.
type Backend interface {
	FetchMeta(ctx context.Context, providerURL string) (*Metadata, error)
	Close() error
}
