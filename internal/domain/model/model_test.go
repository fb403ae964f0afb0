package model_test

import (
	"testing"

	"github.com/jules-maulard/clash-royale-analytics/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMatchRecordWon(t *testing.T) {
	Convey("Given a match won by the second player", t, func() {
		m := model.MatchRecord{Winner: 1}

		Convey("Then only index 1 is reported as the winner", func() {
			So(m.Won(0), ShouldBeFalse)
			So(m.Won(1), ShouldBeTrue)
		})
	})
}

func TestPredictionRatio(t *testing.T) {
	Convey("Given prediction records", t, func() {
		Convey("When something was expected", func() {
			p := model.PredictionRecord{ObservedCount: 3, ExpectedScore: 1.5}
			So(p.Ratio(), ShouldEqual, 2)
		})

		Convey("When nothing was expected", func() {
			p := model.PredictionRecord{ObservedCount: 3}
			So(p.Ratio(), ShouldEqual, 0)
		})
	})
}
