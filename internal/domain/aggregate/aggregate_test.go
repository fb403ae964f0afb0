package aggregate_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/jules-maulard/clash-royale-analytics/internal/domain/aggregate"
	"github.com/jules-maulard/clash-royale-analytics/internal/domain/graph"
	"github.com/jules-maulard/clash-royale-analytics/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// mapStore is the smallest Store: a map guarded by the single-goroutine contract.
type mapStore struct {
	tallies map[aggregate.Key]aggregate.Tally
}

func (s *mapStore) Merge(_ context.Context, batch []aggregate.Partial) error {
	for _, p := range batch {
		s.tallies[p.Key] = s.tallies[p.Key].Add(p.Tally)
	}
	return nil
}

func (s *mapStore) Range(_ context.Context, kind aggregate.Kind, fn func(aggregate.Partial) error) error {
	for k, t := range s.tallies {
		if k.Kind == kind {
			if err := fn(aggregate.Partial{Key: k, Tally: t}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *mapStore) Close() error { return nil }

var cards = []string{"01", "02", "03", "04", "05", "06", "07", "08", "09", "0a", "0b", "0c"}

func randomMatches(n int, seed int64) []model.MatchRecord {
	rng := rand.New(rand.NewSource(seed))
	deck := func() string {
		perm := rng.Perm(len(cards))[:8]
		s := ""
		for _, i := range perm {
			s += cards[i]
		}
		return s
	}
	out := make([]model.MatchRecord, n)
	for i := range out {
		out[i] = model.MatchRecord{
			Winner:  rng.Intn(2),
			Players: [2]model.Player{{Tag: "#A", Deck: deck()}, {Tag: "#B", Deck: deck()}},
		}
	}
	return out
}

type flusher interface {
	graph.Emitter
	Flush() error
}

func collect(matches []model.MatchRecord, b *graph.Builder, newEmitter func(aggregate.Sink) flusher) map[aggregate.Key]aggregate.Tally {
	var batches [][]aggregate.Partial
	e := newEmitter(func(batch []aggregate.Partial) error {
		batches = append(batches, batch)
		return nil
	})
	for _, m := range matches {
		b.Build(m, e)
	}
	So(e.Flush(), ShouldBeNil)
	return aggregate.Reduce(batches...)
}

func TestTally(t *testing.T) {
	Convey("Given tallies", t, func() {
		a := aggregate.Tally{Count: 3, Wins: 1}
		b := aggregate.Tally{Count: 2, Wins: 2}

		So(a.Add(b), ShouldResemble, aggregate.Tally{Count: 5, Wins: 3})
		So(a.Add(b), ShouldResemble, b.Add(a))
		So(a.Add(aggregate.Tally{}), ShouldResemble, a)
		So(aggregate.Observe(true), ShouldResemble, aggregate.Tally{Count: 1, Wins: 1})
		So(aggregate.Observe(false), ShouldResemble, aggregate.Tally{Count: 1})
	})
}

func TestKeyNamespaces(t *testing.T) {
	Convey("Given a node and an edge built from the same strings", t, func() {
		n := aggregate.NodeKey("0102")
		e := aggregate.EdgeKey("0102", "")

		Convey("Then they never collide and nodes sort first", func() {
			So(n, ShouldNotResemble, e)
			So(n.Less(e), ShouldBeTrue)
			So(aggregate.EdgeKey("01", "03").Less(aggregate.EdgeKey("01", "04")), ShouldBeTrue)
			So(aggregate.KindNode.String(), ShouldEqual, "node")
			So(aggregate.KindEdge.String(), ShouldEqual, "edge")
		})
	})
}

func TestCombinerTransparency(t *testing.T) {
	Convey("Given a batch of matches and a size-6 builder", t, func() {
		matches := randomMatches(40, 7)
		b := graph.NewBuilder(graph.WithMinSize(6))

		raw := collect(matches, b, func(s aggregate.Sink) flusher { return aggregate.NewPassthrough(64, s) })

		Convey("Then combining once at the end gives the same totals", func() {
			got := collect(matches, b, func(s aggregate.Sink) flusher { return aggregate.NewCombiner(0, s) })
			So(got, ShouldResemble, raw)
		})

		Convey("Then combining with frequent spills gives the same totals", func() {
			for _, size := range []int{1, 5, 97} {
				got := collect(matches, b, func(s aggregate.Sink) flusher { return aggregate.NewCombiner(size, s) })
				So(got, ShouldResemble, raw)
			}
		})

		Convey("Then node counts add up to one per player per archetype", func() {
			var nodes, edges int64
			for k, tl := range raw {
				switch k.Kind {
				case aggregate.KindNode:
					nodes += tl.Count
				case aggregate.KindEdge:
					edges += tl.Count
					So(k.A <= k.B, ShouldBeTrue)
				}
				So(tl.Wins <= tl.Count, ShouldBeTrue)
			}
			So(nodes, ShouldEqual, int64(len(matches))*2*(28+8+1))
			So(edges, ShouldEqual, int64(len(matches))*(28*28+8*8+1))
		})
	})
}

func TestCombinerSinkError(t *testing.T) {
	Convey("Given a sink that fails", t, func() {
		boom := errors.New("boom")
		calls := 0
		c := aggregate.NewCombiner(1, func([]aggregate.Partial) error {
			calls++
			return boom
		})
		c.EmitNode(model.NodeObservation{Archetype: "0102"})
		c.EmitNode(model.NodeObservation{Archetype: "0103"})

		Convey("Then the first error sticks and later drains are skipped", func() {
			So(errors.Is(c.Flush(), boom), ShouldBeTrue)
			So(calls, ShouldEqual, 1)
			So(c.Emitted(), ShouldEqual, 1)
		})
	})
}

func TestAggregatorMaterialize(t *testing.T) {
	Convey("Given an aggregator fed from two workers", t, func() {
		ctx := context.Background()
		agg := aggregate.NewAggregator(&mapStore{tallies: map[aggregate.Key]aggregate.Tally{}})

		So(agg.Merge(ctx, []aggregate.Partial{
			{Key: aggregate.NodeKey("b"), Tally: aggregate.Tally{Count: 2, Wins: 1}},
			{Key: aggregate.EdgeKey("a", "b"), Tally: aggregate.Tally{Count: 1, Wins: 1}},
		}), ShouldBeNil)
		So(agg.Merge(ctx, []aggregate.Partial{
			{Key: aggregate.NodeKey("a"), Tally: aggregate.Tally{Count: 1}},
			{Key: aggregate.NodeKey("b"), Tally: aggregate.Tally{Count: 3, Wins: 3}},
			{Key: aggregate.EdgeKey("a", "b"), Tally: aggregate.Tally{Count: 2}},
		}), ShouldBeNil)

		tables, err := agg.Materialize(ctx)

		Convey("Then rows are summed per key and sorted", func() {
			So(err, ShouldBeNil)
			So(agg.Merged(), ShouldEqual, 5)
			So(tables.Nodes, ShouldResemble, []model.NodeStats{
				{Archetype: "a", Count: 1, Wins: 0},
				{Archetype: "b", Count: 5, Wins: 4},
			})
			So(tables.Edges, ShouldResemble, []model.EdgeStats{
				{A: "a", B: "b", Count: 3, WinsA: 1},
			})
		})
	})
}
