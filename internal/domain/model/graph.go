package model

// NodeObservation records one archetype fielded by one player in one match.
type NodeObservation struct {
	Archetype string
	Won       bool
}

// EdgeObservation records one archetype pair facing each other in one match.
// A <= B; WonByA tells whether the player holding A won.
type EdgeObservation struct {
	A, B   string
	WonByA bool
}

// NodeStats is the aggregated row for one archetype.
type NodeStats struct {
	Archetype string
	Count     int64
	Wins      int64
}

// EdgeStats is the aggregated row for one archetype pair.
type EdgeStats struct {
	A, B  string
	Count int64
	WinsA int64
}

// PredictionRecord compares an observed pair count with the independence baseline.
type PredictionRecord struct {
	A, B          string
	ObservedCount int64
	ObservedWinA  int64
	CountA        int64
	CountB        int64
	ExpectedScore float64
}

// Ratio returns observed over expected, or 0 when nothing was expected.
func (p PredictionRecord) Ratio() float64 {
	if p.ExpectedScore == 0 {
		return 0
	}
	return float64(p.ObservedCount) / p.ExpectedScore
}
