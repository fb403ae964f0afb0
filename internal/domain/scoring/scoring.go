// Package scoring compares observed archetype pair counts with the count
// expected if archetypes were paired independently.
package scoring

import (
	"fmt"

	"github.com/jules-maulard/clash-royale-analytics/internal/domain/archetype"
	"github.com/jules-maulard/clash-royale-analytics/internal/domain/model"
)

const defaultMinSupport = 10

// DropReason explains why an edge was not scored. The empty reason means it was.
type DropReason string

const (
	Scored       DropReason = ""
	DropLowCount DropReason = "low_support"
	DropUnknown  DropReason = "unknown_node"
)

// Scorer scores one aggregated edge.
type Scorer interface {
	Score(edge model.EdgeStats) (model.PredictionRecord, DropReason)
}

// Option configures a NodeTable.
type Option func(*NodeTable)

// WithMinSupport sets the node count below which archetypes are not scored.
func WithMinSupport(n int64) Option {
	return func(t *NodeTable) {
		if n >= 0 {
			t.minSupport = n
		}
	}
}

// NodeTable is the read-only node side of the join. Build it once and share
// it between workers.
type NodeTable struct {
	minSupport  int64
	counts      map[string]int64
	totalBySize [archetype.DeckSize + 1]int64
	retained    int
}

// NewNodeTable indexes nodes. Totals per archetype size cover every node;
// lookups only see nodes whose count reaches the minimum support.
func NewNodeTable(nodes []model.NodeStats, opts ...Option) (*NodeTable, error) {
	if len(nodes) == 0 {
		return nil, ErrEmptyNodeTable
	}
	t := &NodeTable{minSupport: defaultMinSupport}
	for _, opt := range opts {
		opt(t)
	}
	t.counts = make(map[string]int64, len(nodes))
	for _, n := range nodes {
		size := archetype.Size(n.Archetype)
		if len(n.Archetype)%archetype.CodeWidth != 0 || size < 1 || size > archetype.DeckSize {
			return nil, fmt.Errorf("%w: archetype %q", ErrInvalidNode, n.Archetype)
		}
		t.totalBySize[size] += n.Count
		t.counts[n.Archetype] = n.Count
		if n.Count >= t.minSupport {
			t.retained++
		}
	}
	return t, nil
}

// Lookup returns the count of an archetype that reaches the minimum support.
func (t *NodeTable) Lookup(arch string) (int64, bool) {
	c, ok := t.counts[arch]
	if !ok || c < t.minSupport {
		return 0, false
	}
	return c, true
}

// TotalBySize returns the summed node count of all archetypes of size k.
func (t *NodeTable) TotalBySize(k int) int64 {
	if k < 0 || k > archetype.DeckSize {
		return 0
	}
	return t.totalBySize[k]
}

// Len returns the number of nodes indexed.
func (t *NodeTable) Len() int { return len(t.counts) }

// Retained returns the number of nodes visible to lookups.
func (t *NodeTable) Retained() int { return t.retained }

// TableScorer scores edges against a NodeTable.
type TableScorer struct {
	table *NodeTable
}

// NewTableScorer creates a scorer over table.
func NewTableScorer(table *NodeTable) *TableScorer {
	return &TableScorer{table: table}
}

// Score joins both endpoints with the node table and computes
// expected = countA * countB / totalBySize[size(A)].
func (s *TableScorer) Score(edge model.EdgeStats) (model.PredictionRecord, DropReason) {
	countA, okA := s.table.Lookup(edge.A)
	countB, okB := s.table.Lookup(edge.B)
	if !okA || !okB {
		return model.PredictionRecord{}, s.reason(edge, okA, okB)
	}
	total := s.table.TotalBySize(archetype.Size(edge.A))
	if total == 0 {
		return model.PredictionRecord{}, DropUnknown
	}
	return model.PredictionRecord{
		A:             edge.A,
		B:             edge.B,
		ObservedCount: edge.Count,
		ObservedWinA:  edge.WinsA,
		CountA:        countA,
		CountB:        countB,
		ExpectedScore: float64(countA) * float64(countB) / float64(total),
	}, Scored
}

func (s *TableScorer) reason(edge model.EdgeStats, okA, okB bool) DropReason {
	for _, miss := range []struct {
		arch string
		ok   bool
	}{{edge.A, okA}, {edge.B, okB}} {
		if miss.ok {
			continue
		}
		if _, known := s.table.counts[miss.arch]; !known {
			return DropUnknown
		}
	}
	return DropLowCount
}
