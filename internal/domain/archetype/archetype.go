// Package archetype decodes decks into card codes and enumerates the
// fixed-size card subsets ("archetypes") of a deck.
//
// An archetype of size k is the concatenation of k card codes taken from a
// sorted deck, in deck order, so it is itself sorted and has length 2k.
package archetype

import (
	"fmt"
	"math/bits"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring"
)

// Deck geometry.
const (
	DeckSize  = 8
	CodeWidth = 2
	DeckWidth = DeckSize * CodeWidth
)

// masksBySize[k] holds every 8-bit mask with exactly k bits set.
var masksBySize = buildMasks()

func buildMasks() [DeckSize + 1]*roaring.Bitmap {
	var out [DeckSize + 1]*roaring.Bitmap
	for k := range out {
		out[k] = roaring.New()
	}
	for mask := uint32(0); mask < 1<<DeckSize; mask++ {
		out[bits.OnesCount32(mask)].Add(mask)
	}
	for _, bm := range out {
		bm.RunOptimize()
	}
	return out
}

// Cards splits a deck into lowercase card codes. The deck must be exactly
// DeckWidth hex characters forming DeckSize distinct codes, ignoring case.
func Cards(deck string) ([]string, error) {
	deck = strings.ToLower(deck)
	if len(deck) != DeckWidth {
		return nil, fmt.Errorf("%w: length %d, want %d", ErrInvalidDeck, len(deck), DeckWidth)
	}
	cards := make([]string, 0, DeckSize)
	seen := make(map[string]struct{}, DeckSize)
	for i := 0; i < DeckWidth; i += CodeWidth {
		code := deck[i : i+CodeWidth]
		if !isHex(code) {
			return nil, fmt.Errorf("%w: card %q is not hex", ErrInvalidDeck, code)
		}
		if _, dup := seen[code]; dup {
			return nil, fmt.Errorf("%w: card %q repeated", ErrInvalidDeck, code)
		}
		seen[code] = struct{}{}
		cards = append(cards, code)
	}
	return cards, nil
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f') {
			return false
		}
	}
	return true
}

// SortDeck returns the lowercased deck with its card codes in ascending
// order. Decks that are not made of whole codes are returned unchanged.
func SortDeck(deck string) string {
	if len(deck)%CodeWidth != 0 {
		return deck
	}
	deck = strings.ToLower(deck)
	codes := make([]string, 0, len(deck)/CodeWidth)
	for i := 0; i < len(deck); i += CodeWidth {
		codes = append(codes, deck[i:i+CodeWidth])
	}
	sort.Strings(codes)
	return strings.Join(codes, "")
}

// Enumerate returns every size-k archetype of a sorted deck, one per
// k-subset of card positions, ordered by ascending position mask.
// It returns nil when k is outside [1, DeckSize] or the deck is not DeckWidth long.
func Enumerate(sortedDeck string, k int) []string {
	if k < 1 || k > DeckSize || len(sortedDeck) != DeckWidth {
		return nil
	}
	masks := masksBySize[k]
	out := make([]string, 0, masks.GetCardinality())
	var sb strings.Builder
	it := masks.Iterator()
	for it.HasNext() {
		mask := it.Next()
		sb.Reset()
		sb.Grow(k * CodeWidth)
		for pos := 0; pos < DeckSize; pos++ {
			if mask&(1<<pos) != 0 {
				sb.WriteString(sortedDeck[pos*CodeWidth : (pos+1)*CodeWidth])
			}
		}
		out = append(out, sb.String())
	}
	return out
}

// Combinations returns C(DeckSize, k), the number of archetypes of size k per deck.
func Combinations(k int) int {
	if k < 0 || k > DeckSize {
		return 0
	}
	return int(masksBySize[k].GetCardinality())
}

// Size returns the number of cards in an archetype.
func Size(archetype string) int {
	return len(archetype) / CodeWidth
}
