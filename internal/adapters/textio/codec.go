package textio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jules-maulard/clash-royale-analytics/internal/domain/model"
)

const fieldSep = ";"

// Field counts per table row.
const (
	nodeFields       = 3
	edgeFields       = 4
	predictionFields = 7
)

// FormatNode renders archetype;count;winCount.
func FormatNode(n model.NodeStats) string {
	return n.Archetype + fieldSep + strconv.FormatInt(n.Count, 10) + fieldSep + strconv.FormatInt(n.Wins, 10)
}

// FormatEdge renders A;B;count;winCountA.
func FormatEdge(e model.EdgeStats) string {
	return e.A + fieldSep + e.B + fieldSep + strconv.FormatInt(e.Count, 10) + fieldSep + strconv.FormatInt(e.WinsA, 10)
}

// FormatPrediction renders A;B;observedCount;observedWinA;countA;countB;expected
// with the expected score to two decimals.
func FormatPrediction(p model.PredictionRecord) string {
	return strings.Join([]string{
		p.A, p.B,
		strconv.FormatInt(p.ObservedCount, 10),
		strconv.FormatInt(p.ObservedWinA, 10),
		strconv.FormatInt(p.CountA, 10),
		strconv.FormatInt(p.CountB, 10),
		strconv.FormatFloat(p.ExpectedScore, 'f', 2, 64),
	}, fieldSep)
}

// ParseNode reads a node row. Rows with too few fields return ErrShortRow.
func ParseNode(line string) (model.NodeStats, error) {
	f := strings.Split(line, fieldSep)
	if len(f) < nodeFields {
		return model.NodeStats{}, fmt.Errorf("%w: %q", ErrShortRow, line)
	}
	ints, err := parseInts(line, f[1:nodeFields])
	if err != nil {
		return model.NodeStats{}, err
	}
	return model.NodeStats{Archetype: f[0], Count: ints[0], Wins: ints[1]}, nil
}

// ParseEdge reads an edge row. Rows with too few fields return ErrShortRow.
func ParseEdge(line string) (model.EdgeStats, error) {
	f := strings.Split(line, fieldSep)
	if len(f) < edgeFields {
		return model.EdgeStats{}, fmt.Errorf("%w: %q", ErrShortRow, line)
	}
	ints, err := parseInts(line, f[2:edgeFields])
	if err != nil {
		return model.EdgeStats{}, err
	}
	return model.EdgeStats{A: f[0], B: f[1], Count: ints[0], WinsA: ints[1]}, nil
}

// ParsePrediction reads a final report row.
func ParsePrediction(line string) (model.PredictionRecord, error) {
	f := strings.Split(line, fieldSep)
	if len(f) < predictionFields {
		return model.PredictionRecord{}, fmt.Errorf("%w: %q", ErrShortRow, line)
	}
	ints, err := parseInts(line, f[2:6])
	if err != nil {
		return model.PredictionRecord{}, err
	}
	expected, err := strconv.ParseFloat(f[6], 64)
	if err != nil {
		return model.PredictionRecord{}, fmt.Errorf("%w: %q: %v", ErrBadNumber, line, err)
	}
	return model.PredictionRecord{
		A: f[0], B: f[1],
		ObservedCount: ints[0], ObservedWinA: ints[1],
		CountA: ints[2], CountB: ints[3],
		ExpectedScore: expected,
	}, nil
}

func parseInts(line string, fields []string) ([]int64, error) {
	out := make([]int64, len(fields))
	for i, s := range fields {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrBadNumber, line, err)
		}
		out[i] = v
	}
	return out, nil
}
