// Package repository holds the aggregate stores behind the global
// aggregator and the SQLite report database.
package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/jules-maulard/clash-royale-analytics/internal/domain/aggregate"
)

// Store is the persistence contract of the global aggregator.
type Store interface {
	aggregate.Store
	// Len returns the number of keys held in one namespace.
	Len(ctx context.Context, kind aggregate.Kind) (int, error)
}

// MemoryStore keeps tallies in a map.
type MemoryStore struct {
	mu      sync.RWMutex
	tallies map[aggregate.Key]aggregate.Tally
	closed  bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tallies: make(map[aggregate.Key]aggregate.Tally)}
}

// Merge adds every partial to the tally held for its key.
func (s *MemoryStore) Merge(ctx context.Context, batch []aggregate.Partial) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	for _, p := range batch {
		s.tallies[p.Key] = s.tallies[p.Key].Add(p.Tally)
	}
	return nil
}

// Range calls fn for every key of kind, in key order.
func (s *MemoryStore) Range(ctx context.Context, kind aggregate.Kind, fn func(aggregate.Partial) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	rows := make([]aggregate.Partial, 0, len(s.tallies))
	for k, t := range s.tallies {
		if k.Kind == kind {
			rows = append(rows, aggregate.Partial{Key: k, Tally: t})
		}
	}
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].Key.Less(rows[j].Key) })
	for _, p := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of keys of kind.
func (s *MemoryStore) Len(_ context.Context, kind aggregate.Kind) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrStoreClosed
	}
	n := 0
	for k := range s.tallies {
		if k.Kind == kind {
			n++
		}
	}
	return n, nil
}

// Close releases the map. Further calls fail with ErrStoreClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.tallies = nil
	return nil
}
