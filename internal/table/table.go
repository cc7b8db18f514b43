// Package table implements the request table: the single place a running
// request's record is looked up by id, inserted, and removed. It is kept
// generic over the record type so the coordinator package can own the
// shape of what a "request" actually is.
package table

import "sync"

// ID is a request identifier. 0 is reserved and is never issued by
// Allocate.
type ID uint64

// Invalid is the reserved, never-issued id.
const Invalid ID = 0

// Table is a concurrency-safe map from request id to record, behind a
// single mutex. Lookups, inserts and removals are all O(1).
type Table[R any] struct {
	mu      sync.Mutex
	nextID  uint64
	records map[ID]*R
}

// New creates an empty table.
func New[R any]() *Table[R] {
	return &Table[R]{records: make(map[ID]*R)}
}

// Allocate returns the next monotonically increasing, never-zero id. It
// does not insert anything into the table.
func (t *Table[R]) Allocate() ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	return ID(t.nextID)
}

// Insert associates id with rec, overwriting any previous association.
func (t *Table[R]) Insert(id ID, rec *R) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records[id] = rec
}

// Lookup returns the record for id, if any.
func (t *Table[R]) Lookup(id ID) (*R, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[id]
	return rec, ok
}

// Remove deletes id from the table. Removing an unknown id is a no-op.
func (t *Table[R]) Remove(id ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, id)
}

// Len reports the number of live records.
func (t *Table[R]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// Snapshot returns the ids currently in the table. The caller may use it
// to iterate without holding the table's lock for the duration — entries
// may be removed concurrently, so a subsequent Lookup can legitimately miss.
func (t *Table[R]) Snapshot() []ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]ID, 0, len(t.records))
	for id := range t.records {
		ids = append(ids, id)
	}
	return ids
}
