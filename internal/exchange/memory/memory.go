package memory

import (
	"context"
	"sync"

	"budgettable/internal/exchange"
)

// Store keeps exported entries in memory. Used when no spreadsheet is
// configured and in tests.
type Store struct {
	mu      sync.Mutex
	entries []exchange.Entry
}

var _ exchange.Exporter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// Export records the entry.
func (s *Store) Export(_ context.Context, e exchange.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

// Entries returns a copy of everything exported so far.
func (s *Store) Entries() []exchange.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]exchange.Entry(nil), s.entries...)
}

// Len returns the number of exported entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
