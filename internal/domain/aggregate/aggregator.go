package aggregate

import (
	"context"
	"fmt"
	"sort"

	"github.com/jules-maulard/clash-royale-analytics/internal/domain/model"
)

// Store persists tallies by key. Merge adds each partial to whatever the
// store already holds for its key.
type Store interface {
	Merge(ctx context.Context, batch []Partial) error
	Range(ctx context.Context, kind Kind, fn func(Partial) error) error
	Close() error
}

// Tables are the materialized aggregates, each sorted by key.
type Tables struct {
	Nodes []model.NodeStats
	Edges []model.EdgeStats
}

// Aggregator is the global reduction over every worker's partials.
// Merge must be called from a single goroutine.
type Aggregator struct {
	store  Store
	merged int
}

// NewAggregator creates an Aggregator on store.
func NewAggregator(store Store) *Aggregator {
	return &Aggregator{store: store}
}

// Merge adds a batch of partials.
func (a *Aggregator) Merge(ctx context.Context, batch []Partial) error {
	if err := a.store.Merge(ctx, batch); err != nil {
		return fmt.Errorf("merge %d partials: %w", len(batch), err)
	}
	a.merged += len(batch)
	return nil
}

// Merged returns the number of partials merged so far.
func (a *Aggregator) Merged() int { return a.merged }

// Materialize reads both namespaces back as sorted tables.
func (a *Aggregator) Materialize(ctx context.Context) (Tables, error) {
	var t Tables
	err := a.store.Range(ctx, KindNode, func(p Partial) error {
		t.Nodes = append(t.Nodes, p.NodeStats())
		return nil
	})
	if err != nil {
		return Tables{}, fmt.Errorf("read nodes: %w", err)
	}
	err = a.store.Range(ctx, KindEdge, func(p Partial) error {
		t.Edges = append(t.Edges, p.EdgeStats())
		return nil
	})
	if err != nil {
		return Tables{}, fmt.Errorf("read edges: %w", err)
	}

	sort.Slice(t.Nodes, func(i, j int) bool { return t.Nodes[i].Archetype < t.Nodes[j].Archetype })
	sort.Slice(t.Edges, func(i, j int) bool {
		if t.Edges[i].A != t.Edges[j].A {
			return t.Edges[i].A < t.Edges[j].A
		}
		return t.Edges[i].B < t.Edges[j].B
	})
	return t, nil
}

// Reduce sums partials in memory. It is the reference reduction used where
// no store is needed.
func Reduce(partials ...[]Partial) map[Key]Tally {
	out := make(map[Key]Tally)
	for _, batch := range partials {
		for _, p := range batch {
			out[p.Key] = out[p.Key].Add(p.Tally)
		}
	}
	return out
}
