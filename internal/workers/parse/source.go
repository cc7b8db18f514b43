package parse

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Source resolves an item's sidecar document (NFO, playlist, or similar
// structured metadata file) by key. It is an interface so tests can supply
// in-memory documents without touching a filesystem.
type Source interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// FileSource resolves sidecars as files under a root directory, keyed by
// the item's key plus a fixed suffix (e.g. "movie-1" -> "movie-1.nfo").
type FileSource struct {
	Root   string
	Suffix string
}

// NewFileSource creates a sidecar source rooted at root, resolving
// "<key><suffix>" as the sidecar path.
func NewFileSource(root, suffix string) *FileSource {
	return &FileSource{Root: root, Suffix: suffix}
}

func (s *FileSource) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path := filepath.Join(s.Root, key+s.Suffix)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("parse: open sidecar %s: %w", path, err)
	}
	return f, nil
}
