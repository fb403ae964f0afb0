package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/jules-maulard/clash-royale-analytics/internal/adapters/textio"
	"github.com/jules-maulard/clash-royale-analytics/internal/domain/model"
	"github.com/jules-maulard/clash-royale-analytics/internal/domain/scoring"
	"github.com/jules-maulard/clash-royale-analytics/pkg/logger"
	"github.com/jules-maulard/clash-royale-analytics/pkg/metrics"
)

// ScoreStats are the counters of one stats stage.
type ScoreStats struct {
	Nodes       int64               `yaml:"nodes" json:"nodes"`
	Retained    int64               `yaml:"retained_nodes" json:"retainedNodes"`
	Edges       int64               `yaml:"edges" json:"edges"`
	Skipped     int64               `yaml:"skipped_rows" json:"skippedRows"`
	Scored      int64               `yaml:"scored" json:"scored"`
	Dropped     map[string]int64    `yaml:"dropped,omitempty" json:"dropped,omitempty"`
	Calibration scoring.Calibration `yaml:"calibration" json:"calibration"`
	Output      string              `yaml:"output" json:"output"`
	Duration    time.Duration       `yaml:"duration" json:"duration"`
}

type scoreShard struct {
	records []model.PredictionRecord
	dropped map[string]int64
	skipped int64
}

// Score joins the edge table under graphDir with its node table and writes
// the prediction report to outDir/part-00000, sorted by pair.
func (s *Service) Score(ctx context.Context, graphDir, outDir string) (*ScoreStats, error) {
	stats, _, err := s.scoreStage(ctx, graphDir, outDir)
	return stats, err
}

func (s *Service) scoreStage(ctx context.Context, graphDir, outDir string) (*ScoreStats, []model.PredictionRecord, error) {
	s.setRunning(StageStats)
	defer s.setRunning("")

	start := time.Now()
	s.logger.Info(ctx, "stats started",
		logger.String("input", graphDir),
		logger.Int64("min_support", s.minNodeSupport),
	)

	stats, recs, err := s.score(ctx, graphDir, outDir)
	if err != nil {
		s.logger.Error(ctx, "stats failed", logger.Error(err))
		return nil, nil, stageError(StageStats, err)
	}
	stats.Duration = time.Since(start)
	metrics.RecordStageDuration(StageStats, stats.Duration)
	s.record(func(m *Manifest) { m.Stats = stats })

	s.logger.Info(ctx, "stats finished",
		logger.Int64("edges", stats.Edges),
		logger.Int64("scored", stats.Scored),
		logger.Float64("pearson", stats.Calibration.Pearson),
		logger.Duration("took", stats.Duration),
	)
	return stats, recs, nil
}

func (s *Service) score(ctx context.Context, graphDir, outDir string) (*ScoreStats, []model.PredictionRecord, error) {
	stats := &ScoreStats{Dropped: make(map[string]int64)}

	table, err := s.loadNodeTable(ctx, filepath.Join(graphDir, DirNodes), stats)
	if err != nil {
		return nil, nil, err
	}
	scorer := scoring.NewTableScorer(table)

	workers := s.workerCount
	shards := make([]scoreShard, workers)
	for i := range shards {
		shards[i].dropped = make(map[string]int64)
	}

	edgesPath := filepath.Join(graphDir, DirEdges)
	var lines lineCounts
	err = runStage(ctx, s, StageStats, workers, s.lineProducer(StageStats, edgesPath, true, &lines),
		func(_ context.Context, id int, line string) error {
			sh := &shards[id]
			edge, err := textio.ParseEdge(line)
			if errors.Is(err, textio.ErrShortRow) {
				sh.skipped++
				return nil
			}
			if err != nil {
				return err
			}
			rec, reason := scorer.Score(edge)
			if reason != scoring.Scored {
				sh.dropped[string(reason)]++
				metrics.RecordEdgeDropped(string(reason))
				return nil
			}
			sh.records = append(sh.records, rec)
			metrics.RecordEdgeScored()
			return nil
		})
	if err != nil {
		return nil, nil, err
	}
	metrics.RecordRead(StageStats, int(lines.read))
	if lines.read == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrEmptyInput, edgesPath)
	}
	stats.Edges = lines.read
	stats.Skipped += lines.oversized

	var recs []model.PredictionRecord
	for _, sh := range shards {
		recs = append(recs, sh.records...)
		stats.Skipped += sh.skipped
		for reason, n := range sh.dropped {
			stats.Dropped[reason] += n
		}
	}
	if len(stats.Dropped) == 0 {
		stats.Dropped = nil
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].A != recs[j].A {
			return recs[i].A < recs[j].A
		}
		return recs[i].B < recs[j].B
	})

	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = textio.FormatPrediction(r)
	}
	stats.Output, err = textio.WriteLines(outDir, out)
	if err != nil {
		return nil, nil, fmt.Errorf("write report: %w", err)
	}
	stats.Scored = int64(len(recs))
	stats.Calibration = scoring.Calibrate(recs)
	metrics.RecordEmitted(StageStats, len(recs))
	metrics.UpdateTableRows(DirFinal, len(recs))
	return stats, recs, nil
}

// loadNodeTable reads the whole node table before any edge is scored.
func (s *Service) loadNodeTable(ctx context.Context, path string, stats *ScoreStats) (*scoring.NodeTable, error) {
	var nodes []model.NodeStats
	err := textio.ReadLines(ctx, path, func(line string) error {
		n, err := textio.ParseNode(line)
		if errors.Is(err, textio.ErrShortRow) {
			stats.Skipped++
			return nil
		}
		if err != nil {
			return err
		}
		nodes = append(nodes, n)
		return nil
	}, textio.WithMaxLineSize(s.maxLineSize), textio.OnLongLine(func(int) error {
		stats.Skipped++
		return nil
	}))
	if errors.Is(err, textio.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrNodesTableMissing, err)
	}
	if err != nil {
		return nil, fmt.Errorf("load nodes: %w", err)
	}

	table, err := scoring.NewNodeTable(nodes, scoring.WithMinSupport(s.minNodeSupport))
	if err != nil {
		return nil, err
	}
	stats.Nodes = int64(table.Len())
	stats.Retained = int64(table.Retained())
	s.logger.Debug(ctx, "node table loaded",
		logger.Int64("nodes", stats.Nodes),
		logger.Int64("retained", stats.Retained),
	)
	return table, nil
}
