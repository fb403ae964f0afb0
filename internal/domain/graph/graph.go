// Package graph expands a match into archetype node and edge observations.
package graph

import (
	"github.com/jules-maulard/clash-royale-analytics/internal/domain/archetype"
	"github.com/jules-maulard/clash-royale-analytics/internal/domain/model"
)

// Emitter receives the observations produced for a match.
type Emitter interface {
	EmitNode(obs model.NodeObservation)
	EmitEdge(obs model.EdgeObservation)
}

// Builder enumerates archetypes of every size from minSize to a full deck.
// It holds no mutable state and can be shared between workers.
type Builder struct {
	minSize int
}

// Option configures a Builder.
type Option func(*Builder)

// WithMinSize sets the smallest archetype size. Values outside [1, 8] are ignored.
func WithMinSize(k int) Option {
	return func(b *Builder) {
		if k >= 1 && k <= archetype.DeckSize {
			b.minSize = k
		}
	}
}

// NewBuilder creates a Builder that, by default, only looks at full decks.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{minSize: archetype.DeckSize}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// MinSize returns the smallest archetype size emitted.
func (b *Builder) MinSize() int { return b.minSize }

// Build emits, for each size k, one node observation per archetype per
// player and one edge observation per cross-player archetype pair. Edge
// endpoints are ordered so that A <= B, and WonByA follows whichever player
// holds A. It returns the number of nodes and edges emitted.
func (b *Builder) Build(rec model.MatchRecord, out Emitter) (nodes, edges int) {
	deck1 := archetype.SortDeck(rec.Players[0].Deck)
	deck2 := archetype.SortDeck(rec.Players[1].Deck)
	won1, won2 := rec.Won(0), rec.Won(1)

	for k := b.minSize; k <= archetype.DeckSize; k++ {
		arch1 := archetype.Enumerate(deck1, k)
		arch2 := archetype.Enumerate(deck2, k)

		for _, a := range arch1 {
			out.EmitNode(model.NodeObservation{Archetype: a, Won: won1})
		}
		for _, a := range arch2 {
			out.EmitNode(model.NodeObservation{Archetype: a, Won: won2})
		}
		nodes += len(arch1) + len(arch2)

		for _, a1 := range arch1 {
			for _, a2 := range arch2 {
				if a1 < a2 {
					out.EmitEdge(model.EdgeObservation{A: a1, B: a2, WonByA: won1})
				} else {
					out.EmitEdge(model.EdgeObservation{A: a2, B: a1, WonByA: won2})
				}
			}
		}
		edges += len(arch1) * len(arch2)
	}
	return nodes, edges
}
