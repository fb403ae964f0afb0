package testmatches

import (
	"context"
	"fmt"
	"os"

	"github.com/jules-maulard/clash-royale-analytics/internal/adapters/textio"
	"github.com/jules-maulard/clash-royale-analytics/internal/app"
	"github.com/jules-maulard/clash-royale-analytics/internal/domain/dedupe"
	"github.com/jules-maulard/clash-royale-analytics/internal/domain/validate"
	"github.com/jules-maulard/clash-royale-analytics/pkg/logger"
)

// Report is the outcome of a verification run.
type Report struct {
	Expected int
	Written  int64
	Rejected int64
	Missing  []string // canonical keys with fewer records than generated
	Extra    []string // canonical keys with more records than generated
}

// OK reports whether the clean log holds exactly one record per match.
func (r *Report) OK() bool {
	return int64(r.Expected) == r.Written && len(r.Missing) == 0 && len(r.Extra) == 0
}

// Verify runs the clean stage on input and checks that every generated
// match appears exactly once in its output.
func Verify(ctx context.Context, cfg *Config, input string, matches []Match) (*Report, error) {
	if threshold := dedupe.New().Threshold(); cfg.Jitter > threshold {
		return nil, fmt.Errorf("%w: jitter %s exceeds dedup threshold %s", ErrInvalidConfig, cfg.Jitter, threshold)
	}

	out, err := os.MkdirTemp("", "gen-matches-verify-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(out)

	svc := app.New(
		app.WithLogger(logger.Get().Named("verify")),
		app.WithWorkerCount(cfg.Workers),
	)
	stats, err := svc.Clean(ctx, input, out)
	if err != nil {
		return nil, err
	}

	want := make(map[string]int)
	v := validate.New()
	for _, m := range matches {
		data, err := marshalMatch(m)
		if err != nil {
			return nil, err
		}
		rec, err := v.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("generated match does not parse: %w", err)
		}
		want[dedupe.CanonicalKey(rec)]++
	}

	got := make(map[string]int)
	err = textio.ReadLines(ctx, out, func(line string) error {
		rec, err := v.Parse(line)
		if err != nil {
			return fmt.Errorf("clean output does not parse: %w", err)
		}
		got[dedupe.CanonicalKey(rec)]++
		return nil
	})
	if err != nil {
		return nil, err
	}

	report := &Report{Expected: len(matches), Written: stats.Written}
	for _, n := range stats.Rejected {
		report.Rejected += n
	}
	for k, n := range want {
		switch {
		case got[k] < n:
			report.Missing = append(report.Missing, k)
		case got[k] > n:
			report.Extra = append(report.Extra, k)
		}
	}
	for k := range got {
		if _, ok := want[k]; !ok {
			report.Extra = append(report.Extra, k)
		}
	}
	return report, nil
}
