package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// SeenSet remembers payloads so byte-identical copies are emitted once.
type SeenSet interface {
	// SeenAndRecord atomically checks whether id was seen and records it if not.
	// Returns true if id was already seen.
	SeenAndRecord(ctx context.Context, id string) bool

	Size() int64
}

// inMemorySeenSet is an exact, unbounded set; evicting would let duplicates through.
type inMemorySeenSet struct {
	mu       sync.Mutex
	seen     map[string]struct{}
	expected int
	size     atomic.Int64
}

// NewSeenSet creates an empty SeenSet safe for concurrent use.
func NewSeenSet(opts ...SeenOption) SeenSet {
	s := &inMemorySeenSet{}
	for _, opt := range opts {
		opt(s)
	}
	s.seen = make(map[string]struct{}, s.expected)
	return s
}

func (s *inMemorySeenSet) SeenAndRecord(_ context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[id]; ok {
		return true
	}
	s.seen[id] = struct{}{}
	s.size.Add(1)
	return false
}

func (s *inMemorySeenSet) Size() int64 {
	return s.size.Load()
}
