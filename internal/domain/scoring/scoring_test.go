package scoring_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jules-maulard/clash-royale-analytics/internal/domain/model"
	scoring "github.com/jules-maulard/clash-royale-analytics/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

const (
	archA = "0102030a"
	archB = "0405060b"
	archC = "0708090c"
	archD = "0d0e0f10"
)

func TestTableScorer(t *testing.T) {
	Convey("Given a node table whose size-4 total is 1000", t, func() {
		table, err := scoring.NewNodeTable([]model.NodeStats{
			{Archetype: archA, Count: 20, Wins: 11},
			{Archetype: archB, Count: 15, Wins: 7},
			{Archetype: archC, Count: 5, Wins: 1},
			{Archetype: archD, Count: 960, Wins: 500},
			{Archetype: "0102030a0405060b", Count: 3, Wins: 2},
		})
		So(err, ShouldBeNil)
		scorer := scoring.NewTableScorer(table)

		Convey("Then totals cover every node while lookups honour the support", func() {
			So(table.Len(), ShouldEqual, 5)
			So(table.Retained(), ShouldEqual, 3)
			So(table.TotalBySize(4), ShouldEqual, 1000)
			So(table.TotalBySize(8), ShouldEqual, 3)
			_, ok := table.Lookup(archC)
			So(ok, ShouldBeFalse)
		})

		Convey("When scoring an edge between two supported nodes", func() {
			rec, reason := scorer.Score(model.EdgeStats{A: archA, B: archB, Count: 3, WinsA: 2})

			Convey("Then the expected count is countA*countB/total", func() {
				So(reason, ShouldEqual, scoring.Scored)
				So(rec, ShouldResemble, model.PredictionRecord{
					A: archA, B: archB, ObservedCount: 3, ObservedWinA: 2,
					CountA: 20, CountB: 15, ExpectedScore: 0.3,
				})
				So(fmt.Sprintf("%.2f", rec.ExpectedScore), ShouldEqual, "0.30")
			})
		})

		Convey("When an endpoint is below the support threshold", func() {
			_, reason := scorer.Score(model.EdgeStats{A: archA, B: archC, Count: 1})

			Convey("Then the edge is dropped as low support", func() {
				So(reason, ShouldEqual, scoring.DropLowCount)
			})
		})

		Convey("When an endpoint is not in the table at all", func() {
			_, reason := scorer.Score(model.EdgeStats{A: archA, B: "aabbccdd", Count: 1})

			Convey("Then the edge is dropped as unknown", func() {
				So(reason, ShouldEqual, scoring.DropUnknown)
			})
		})
	})
}

func TestNodeTableErrors(t *testing.T) {
	Convey("Given an empty node list", t, func() {
		_, err := scoring.NewNodeTable(nil)
		So(errors.Is(err, scoring.ErrEmptyNodeTable), ShouldBeTrue)
	})

	Convey("Given a node that is not whole card codes", t, func() {
		_, err := scoring.NewNodeTable([]model.NodeStats{{Archetype: "010", Count: 1}})
		So(errors.Is(err, scoring.ErrInvalidNode), ShouldBeTrue)
	})
}

func TestSupportIsMonotone(t *testing.T) {
	Convey("Given the same nodes and edges under rising thresholds", t, func() {
		nodes := []model.NodeStats{
			{Archetype: archA, Count: 4}, {Archetype: archB, Count: 12},
			{Archetype: archC, Count: 30}, {Archetype: archD, Count: 9},
		}
		edges := []model.EdgeStats{
			{A: archA, B: archB, Count: 1}, {A: archA, B: archC, Count: 2},
			{A: archB, B: archC, Count: 5}, {A: archC, B: archD, Count: 3},
			{A: archB, B: archD, Count: 2},
		}

		prevNodes, prevEdges := len(nodes)+1, len(edges)+1
		for _, support := range []int64{0, 5, 10, 13, 31} {
			table, err := scoring.NewNodeTable(nodes, scoring.WithMinSupport(support))
			So(err, ShouldBeNil)
			scorer := scoring.NewTableScorer(table)
			scored := 0
			for _, e := range edges {
				if _, reason := scorer.Score(e); reason == scoring.Scored {
					scored++
				}
			}

			So(table.Retained(), ShouldBeLessThanOrEqualTo, prevNodes)
			So(scored, ShouldBeLessThanOrEqualTo, prevEdges)
			prevNodes, prevEdges = table.Retained(), scored
		}
		So(prevNodes, ShouldEqual, 0)
		So(prevEdges, ShouldEqual, 0)
	})
}

func TestCalibrate(t *testing.T) {
	Convey("Given predictions on a perfect line", t, func() {
		recs := []model.PredictionRecord{
			{ObservedCount: 3, ExpectedScore: 1},
			{ObservedCount: 5, ExpectedScore: 2},
			{ObservedCount: 7, ExpectedScore: 3},
		}
		c := scoring.Calibrate(recs)

		Convey("Then the correlation is one and the line is recovered", func() {
			So(c.Defined, ShouldBeTrue)
			So(c.N, ShouldEqual, 3)
			So(c.Pearson, ShouldAlmostEqual, 1.0, 1e-9)
			So(c.Slope, ShouldAlmostEqual, 2.0, 1e-9)
			So(c.Intercept, ShouldAlmostEqual, 1.0, 1e-9)
		})
	})

	Convey("Given predictions without variance", t, func() {
		c := scoring.Calibrate([]model.PredictionRecord{
			{ObservedCount: 3, ExpectedScore: 1}, {ObservedCount: 4, ExpectedScore: 1},
		})
		So(c.Defined, ShouldBeFalse)
		So(scoring.Calibrate(nil).N, ShouldEqual, 0)
	})
}
