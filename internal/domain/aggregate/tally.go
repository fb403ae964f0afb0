// Package aggregate sums node and edge observations into (count, wins)
// tallies, locally per worker and globally across workers.
package aggregate

import "github.com/jules-maulard/clash-royale-analytics/internal/domain/model"

// Kind separates the node and edge key namespaces.
type Kind uint8

const (
	KindNode Kind = iota + 1
	KindEdge
)

func (k Kind) String() string {
	switch k {
	case KindNode:
		return "node"
	case KindEdge:
		return "edge"
	default:
		return "unknown"
	}
}

// Key identifies an aggregated row. Nodes leave B empty.
type Key struct {
	Kind Kind
	A, B string
}

// NodeKey returns the key of an archetype node.
func NodeKey(archetype string) Key { return Key{Kind: KindNode, A: archetype} }

// EdgeKey returns the key of an archetype pair. Callers pass a <= b.
func EdgeKey(a, b string) Key { return Key{Kind: KindEdge, A: a, B: b} }

// Less orders keys by kind, then A, then B.
func (k Key) Less(o Key) bool {
	if k.Kind != o.Kind {
		return k.Kind < o.Kind
	}
	if k.A != o.A {
		return k.A < o.A
	}
	return k.B < o.B
}

// Tally is a (count, wins) pair. Add is associative and commutative with
// the zero Tally as identity, so partial sums can be merged in any grouping.
type Tally struct {
	Count int64
	Wins  int64
}

// Add returns the component-wise sum.
func (t Tally) Add(o Tally) Tally {
	return Tally{Count: t.Count + o.Count, Wins: t.Wins + o.Wins}
}

// Observe returns the tally of a single observation.
func Observe(won bool) Tally {
	if won {
		return Tally{Count: 1, Wins: 1}
	}
	return Tally{Count: 1}
}

// Partial is a tally for one key, as shipped from a worker to the aggregator.
type Partial struct {
	Key   Key
	Tally Tally
}

// NodeStats converts a node partial to its table row.
func (p Partial) NodeStats() model.NodeStats {
	return model.NodeStats{Archetype: p.Key.A, Count: p.Tally.Count, Wins: p.Tally.Wins}
}

// EdgeStats converts an edge partial to its table row.
func (p Partial) EdgeStats() model.EdgeStats {
	return model.EdgeStats{A: p.Key.A, B: p.Key.B, Count: p.Tally.Count, WinsA: p.Tally.Wins}
}
