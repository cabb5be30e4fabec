// Package memory keeps the audit log in process memory
package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"warpmine/domain/history"
	"warpmine/ports"
)

// Store is an append-only history log. Writers serialize on a mutex, append
// into spare capacity and publish the longer slice header. A reader only
// sees the entries below its header's length, which are never rewritten.
type Store struct {
	mu       sync.Mutex
	snapshot atomic.Pointer[[]history.Entry]
	closed   atomic.Bool
}

var _ ports.HistoryPort = (*Store)(nil)

// New creates an empty store
func New() *Store {
	s := &Store{}
	empty := []history.Entry{}
	s.snapshot.Store(&empty)
	return s
}

// Append adds entry to the end of the log
func (s *Store) Append(ctx context.Context, entry history.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed.Load() {
		return ports.ErrHistoryClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := append(*s.snapshot.Load(), entry)
	s.snapshot.Store(&next)
	return nil
}

// List returns matching entries newest first
func (s *Store) List(ctx context.Context, filter history.Filter) ([]history.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return filter.Apply(*s.snapshot.Load()), nil
}

// Len is the number of stored entries
func (s *Store) Len() int {
	return len(*s.snapshot.Load())
}

// Close rejects further appends. Existing entries stay readable.
func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}
