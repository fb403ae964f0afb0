package testmatches

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jules-maulard/clash-royale-analytics/internal/adapters/textio"
	"github.com/jules-maulard/clash-royale-analytics/pkg/logger"
)

// Run generates the submissions, writes them to cfg.Output and, when asked,
// verifies them through the clean stage.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "starting match generation",
		logger.String("output", cfg.Output),
		logger.Int("matches", cfg.Matches),
		logger.Int("maxCopies", cfg.MaxCopies),
		logger.Duration("jitter", cfg.Jitter),
		logger.Bool("verify", cfg.Verify),
	)

	gen, err := Generate(ctx, cfg, stats)
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}
	if err := writeLines(cfg.Output, gen.Lines); err != nil {
		return nil, fmt.Errorf("write %s: %w", cfg.Output, err)
	}

	if cfg.Verify {
		report, err := Verify(ctx, cfg, cfg.Output, gen.Matches)
		if err != nil {
			return nil, fmt.Errorf("verification run failed: %w", err)
		}
		logger.Get().Info(ctx, "verification finished",
			logger.Int("expected", report.Expected),
			logger.Int64("written", report.Written),
			logger.Int64("rejected", report.Rejected),
			logger.Int("missing", len(report.Missing)),
			logger.Int("extra", len(report.Extra)),
		)
		if !report.OK() {
			return stats, fmt.Errorf("%w: expected %d records, clean wrote %d", ErrVerify, report.Expected, report.Written)
		}
	}

	stats.Duration = time.Since(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

func writeLines(path string, lines []string) error {
	w, err := textio.Create(path)
	if err != nil {
		return err
	}
	for _, l := range lines {
		if err := w.WriteLine(l); err != nil {
			_ = w.Close()
			return err
		}
	}
	return w.Close()
}

func marshalMatch(m Match) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal match: %w", err)
	}
	return string(data), nil
}

// displayFinalStats logs the generation statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	logger.Get().Info(ctx, "final statistics",
		logger.Int("matches", stats.Matches),
		logger.Int("rematches", stats.Rematches),
		logger.Int("lines", stats.Lines),
		logger.Int("copies", stats.Copies),
		logger.Int("swapped", stats.Swapped),
		logger.Int("noise", stats.Noise),
		logger.Duration("duration", stats.Duration),
	)
}
