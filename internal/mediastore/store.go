// Package mediastore looks media items up in a pre-existing local media
// library index. It is adapted from the teacher's MongoDB-backed item
// storage, inverted from a write-side item sink into a read-side lookup:
// the fetch-meta-local domain consults an existing library rather than
// writing request results into one, which keeps it distinct from a
// forbidden cross-request result cache.
package mediastore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Entry is the local metadata record for one library item.
type Entry struct {
	Key      string            `bson:"_key"`
	Title    string            `bson:"title"`
	Fields   map[string]string `bson:"fields"`
	ArtPath  string            `bson:"art_path"`
	Indexed  time.Time         `bson:"indexed_at"`
}

// Store looks items up by key in a MongoDB-backed local media library.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
	timeout    time.Duration
	logger     *slog.Logger
}

// New connects to the local media library index. uri/database/collection
// point at a pre-populated library the host application maintains.
func New(ctx context.Context, uri, database, collection string, timeout time.Duration, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mediastore: connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("mediastore: ping: %w", err)
	}

	return &Store{
		client:     client,
		collection: client.Database(database).Collection(collection),
		timeout:    timeout,
		logger:     logger.With("component", "mediastore"),
	}, nil
}

// Lookup returns the local library entry for key, if the library has one.
func (s *Store) Lookup(ctx context.Context, key string) (*Entry, bool, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var entry Entry
	err := s.collection.FindOne(lookupCtx, bson.M{"_key": key}).Decode(&entry)
	if err == mongo.ErrNoDocuments {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("mediastore: lookup %q: %w", key, err)
	}
	return &entry, true, nil
}

// Close disconnects from the backing store.
func (s *Store) Close(ctx context.Context) error {
	closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.client.Disconnect(closeCtx)
}
