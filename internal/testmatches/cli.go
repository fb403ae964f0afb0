package testmatches

import "os"

// ShowHelp prints usage information for the generator.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Match Submission Generator
==========================

Writes synthetic match records with redundant submissions, swapped player
order, rematches and malformed lines, for exercising the clean stage.

Usage:
  gen-matches [options]

Options:
  -matches int       real matches to generate (default 10000)
  -seed int          generator seed (default 1)
  -copies int        maximum submissions per match (default 3)
  -jitter duration   largest timestamp drift between copies (default 1s)
  -swap float        share of copies with players swapped (default 0.5)
  -rematch float     share of matches replayed later (default 0.1)
  -noise float       malformed lines per match (default 0.02)
  -output string     output NDJSON file (default "matches.ndjson")
  -verify            run the clean stage on the output and check it
  -workers int       workers of the verification run (default CPU cores)
  -help              show this help message

Examples:
  gen-matches -matches 50000 -output data/matches.ndjson
  gen-matches -matches 2000 -copies 5 -verify
`)
}
