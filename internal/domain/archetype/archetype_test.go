package archetype_test

import (
	"errors"
	"testing"

	"github.com/jules-maulard/clash-royale-analytics/internal/domain/archetype"
	. "github.com/smartystreets/goconvey/convey"
)

const deck = "0a0e151e264d5a65"

func TestCards(t *testing.T) {
	Convey("Given decks to decode", t, func() {
		Convey("When the deck is well formed", func() {
			cards, err := archetype.Cards("650a1e0e4d265a15")

			Convey("Then it yields eight codes in submitted order", func() {
				So(err, ShouldBeNil)
				So(cards, ShouldResemble, []string{"65", "0a", "1e", "0e", "4d", "26", "5a", "15"})
			})
		})

		Convey("When the deck uses uppercase hex", func() {
			cards, err := archetype.Cards("650A1E0E4D265A15")

			Convey("Then the codes are lowercased", func() {
				So(err, ShouldBeNil)
				So(cards, ShouldResemble, []string{"65", "0a", "1e", "0e", "4d", "26", "5a", "15"})
			})

			Convey("Then codes differing only in case are duplicates", func() {
				_, err := archetype.Cards("0a0A151e264d5a65")
				So(errors.Is(err, archetype.ErrInvalidDeck), ShouldBeTrue)
			})
		})

		Convey("When the deck is malformed", func() {
			for _, bad := range []string{"0a0e151e264d5a", "0a0e151e264d5a6500", "0a0e151e264d5azz", "0a0a151e264d5a65"} {
				_, err := archetype.Cards(bad)
				So(errors.Is(err, archetype.ErrInvalidDeck), ShouldBeTrue)
			}
		})
	})
}

func TestSortDeck(t *testing.T) {
	Convey("Given an unsorted deck", t, func() {
		So(archetype.SortDeck("650a1e0e4d265a15"), ShouldEqual, deck)
		So(archetype.SortDeck(deck), ShouldEqual, deck)
		So(archetype.SortDeck("650A1E0E4D265A15"), ShouldEqual, deck)
	})
}

func TestEnumerate(t *testing.T) {
	Convey("Given a sorted deck", t, func() {
		Convey("When enumerating the full deck", func() {
			got := archetype.Enumerate(deck, 8)

			Convey("Then the only archetype is the deck itself", func() {
				So(got, ShouldResemble, []string{deck})
			})
		})

		Convey("When enumerating every size", func() {
			expected := []int{0, 8, 28, 56, 70, 56, 28, 8, 1}
			for k := 1; k <= archetype.DeckSize; k++ {
				got := archetype.Enumerate(deck, k)
				So(len(got), ShouldEqual, expected[k])
				So(archetype.Combinations(k), ShouldEqual, expected[k])

				seen := map[string]bool{}
				for _, a := range got {
					So(len(a), ShouldEqual, 2*k)
					So(archetype.Size(a), ShouldEqual, k)
					So(archetype.SortDeck(a), ShouldEqual, a)
					So(seen[a], ShouldBeFalse)
					seen[a] = true
				}
			}
		})

		Convey("When enumerating size 7", func() {
			got := archetype.Enumerate(deck, 7)

			Convey("Then the first mask drops the last card and the last mask drops the first", func() {
				So(got[0], ShouldEqual, "0a0e151e264d5a")
				So(got[1], ShouldEqual, "0a0e151e264d65")
				So(got[len(got)-1], ShouldEqual, "0e151e264d5a65")
			})
		})

		Convey("When k is out of range", func() {
			So(archetype.Enumerate(deck, 0), ShouldBeNil)
			So(archetype.Enumerate(deck, 9), ShouldBeNil)
			So(archetype.Enumerate("0a0e", 1), ShouldBeNil)
			So(archetype.Combinations(9), ShouldEqual, 0)
		})
	})
}
