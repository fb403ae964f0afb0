// Package model contains domain models passed between layers.
package model

import "time"

// PlayerCount is the number of players in a match.
const PlayerCount = 2

// Player is one side of a match.
type Player struct {
	Tag  string // player identifier
	Deck string // 8 two-character hex card codes, as submitted
}

// MatchRecord is one validated match submission.
type MatchRecord struct {
	Raw     string // exact input line; byte-identity is judged on it
	Date    time.Time
	Round   int
	Winner  int // index into Players
	Players [PlayerCount]Player
}

// Won reports whether the player at index i won the match.
func (m MatchRecord) Won(i int) bool {
	return m.Winner == i
}
