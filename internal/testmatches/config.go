// Package testmatches generates synthetic match submissions with known
// redundancy and checks that the clean stage recovers every real match.
package testmatches

import "time"

// Config holds configuration for a generation run.
type Config struct {
	Matches     int           // Real matches to generate
	Seed        int64         // Seed of the deterministic generator
	MaxCopies   int           // Upper bound of submissions per match
	Jitter      time.Duration // Largest timestamp drift between copies
	SwapRate    float64       // Share of copies with the players swapped
	RematchRate float64       // Share of matches replayed later by the same players
	NoiseRate   float64       // Malformed lines per real match
	MetaDecks   int           // Size of the shared deck pool
	MetaShare   float64       // Share of players picking a deck from the pool
	Start       time.Time     // Earliest match timestamp
	Output      string        // NDJSON output file
	Verify      bool          // Run the clean stage on the output and check it
	Workers     int           // Workers of the verification run
}

// DefaultConfig returns the generator defaults.
func DefaultConfig() *Config {
	return &Config{
		Matches:     10000,
		Seed:        1,
		MaxCopies:   3,
		Jitter:      time.Second,
		SwapRate:    0.5,
		RematchRate: 0.1,
		NoiseRate:   0.02,
		MetaDecks:   24,
		MetaShare:   0.7,
		Start:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Output:      "matches.ndjson",
	}
}

// Player is one side of a submitted match.
type Player struct {
	Tag  string `json:"utag"`
	Deck string `json:"deck"`
}

// Match is the JSON shape of one submission.
type Match struct {
	Date    string    `json:"date"`
	Round   int       `json:"round"`
	Winner  int       `json:"winner"`
	Players [2]Player `json:"players"`
}

// Stats holds generation statistics.
type Stats struct {
	Matches   int
	Rematches int
	Lines     int
	Copies    int
	Swapped   int
	Noise     int
	StartTime time.Time
	Duration  time.Duration
}
