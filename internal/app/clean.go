package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/jules-maulard/clash-royale-analytics/internal/adapters/textio"
	"github.com/jules-maulard/clash-royale-analytics/internal/domain/dedupe"
	"github.com/jules-maulard/clash-royale-analytics/internal/domain/model"
	"github.com/jules-maulard/clash-royale-analytics/internal/domain/validate"
	"github.com/jules-maulard/clash-royale-analytics/pkg/logger"
	"github.com/jules-maulard/clash-royale-analytics/pkg/metrics"
)

// CleanStats are the counters of one clean stage.
type CleanStats struct {
	Read       int64            `yaml:"read" json:"read"`
	Valid      int64            `yaml:"valid" json:"valid"`
	Rejected   map[string]int64 `yaml:"rejected,omitempty" json:"rejected,omitempty"`
	Groups     int64            `yaml:"groups" json:"groups"`
	Suppressed int64            `yaml:"suppressed" json:"suppressed"`
	Written    int64            `yaml:"written" json:"written"`
	Output     string           `yaml:"output" json:"output"`
	Duration   time.Duration    `yaml:"duration" json:"duration"`
}

// cleanShard is the per-worker state of the parse phase.
type cleanShard struct {
	validator *validate.Validator
	groups    map[string][]model.MatchRecord
	rejected  map[string]int64
	valid     int64
}

// Clean validates and deduplicates the match records under in and writes
// the canonical log to out/part-00000.ndjson in chronological order.
func (s *Service) Clean(ctx context.Context, in, out string) (*CleanStats, error) {
	s.setRunning(StageClean)
	defer s.setRunning("")

	start := time.Now()
	s.logger.Info(ctx, "clean started",
		logger.String("input", in),
		logger.String("strategy", string(s.dedup.Strategy())),
	)

	stats, err := s.clean(ctx, in, out)
	if err != nil {
		s.logger.Error(ctx, "clean failed", logger.Error(err))
		return nil, stageError(StageClean, err)
	}
	stats.Duration = time.Since(start)
	metrics.RecordStageDuration(StageClean, stats.Duration)
	s.record(func(m *Manifest) { m.Clean = stats })

	s.logger.Info(ctx, "clean finished",
		logger.Int64("read", stats.Read),
		logger.Int64("valid", stats.Valid),
		logger.Int64("written", stats.Written),
		logger.Int64("suppressed", stats.Suppressed),
		logger.Duration("took", stats.Duration),
	)
	if stats.Written == 0 {
		s.logger.Warn(ctx, "clean wrote no records", logger.String("output", stats.Output))
	}
	return stats, nil
}

func (s *Service) clean(ctx context.Context, in, out string) (*CleanStats, error) {
	workers := s.workerCount
	shards := make([]cleanShard, workers)
	for i := range shards {
		shards[i] = cleanShard{
			validator: validate.New(),
			groups:    make(map[string][]model.MatchRecord),
			rejected:  make(map[string]int64),
		}
	}

	var lines lineCounts
	err := runStage(ctx, s, StageClean, workers, s.lineProducer(StageClean, in, false, &lines),
		func(ctx context.Context, id int, line string) error {
			sh := &shards[id]
			rec, err := sh.validator.Parse(line)
			if err != nil {
				reason := validate.Reason(err)
				sh.rejected[reason]++
				metrics.RecordRejected(StageClean, reason)
				if errors.Is(err, validate.ErrInvalidTimestamp) {
					s.logger.Warn(ctx, "dropping record with bad timestamp", logger.Error(err))
				} else {
					s.logger.Debug(ctx, "dropping record", logger.String("reason", reason), logger.Error(err))
				}
				return nil
			}
			sh.valid++
			for _, k := range s.dedup.GroupKeys(rec) {
				sh.groups[k] = append(sh.groups[k], rec)
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	metrics.RecordRead(StageClean, int(lines.read))
	if lines.read == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyInput, in)
	}

	stats := &CleanStats{Read: lines.read, Rejected: make(map[string]int64)}
	if lines.oversized > 0 {
		reason := validate.Reason(validate.ErrMalformed)
		stats.Rejected[reason] += lines.oversized
		for i := int64(0); i < lines.oversized; i++ {
			metrics.RecordRejected(StageClean, reason)
		}
	}
	groups := make(map[string][]model.MatchRecord)
	for _, sh := range shards {
		stats.Valid += sh.valid
		for reason, n := range sh.rejected {
			stats.Rejected[reason] += n
		}
		for k, recs := range sh.groups {
			groups[k] = append(groups[k], recs...)
		}
	}
	if len(stats.Rejected) == 0 {
		stats.Rejected = nil
	}

	kept, err := s.reduceGroups(ctx, groups)
	if err != nil {
		return nil, err
	}
	stats.Groups = int64(len(groups))
	stats.Suppressed = stats.Valid - int64(len(kept))

	stats.Output = filepath.Join(out, cleanPartName)
	w, err := textio.Create(stats.Output)
	if err != nil {
		return nil, err
	}
	for _, rec := range kept {
		if err := w.WriteLine(rec.Raw); err != nil {
			_ = w.Close()
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	stats.Written = int64(len(kept))
	metrics.RecordEmitted(StageClean, len(kept))
	return stats, nil
}

// reduceGroups deduplicates every group in parallel and returns the
// surviving records in chronological order.
func (s *Service) reduceGroups(ctx context.Context, groups map[string][]model.MatchRecord) ([]model.MatchRecord, error) {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	workers := s.workerCount
	outs := make([][]model.MatchRecord, workers)
	err := runStage(ctx, s, StageClean+"-reduce", workers, sliceProducer(keys),
		func(ctx context.Context, id int, key string) error {
			group := groups[key]
			kept := s.dedup.ReduceGroup(ctx, group)
			metrics.RecordDedupGroup(len(group) - len(kept))
			outs[id] = append(outs[id], kept...)
			return nil
		})
	if err != nil {
		return nil, err
	}

	var kept []model.MatchRecord
	if s.dedup.NeedsGlobalUniq() {
		seen := dedupe.NewSeenSet()
		for _, part := range outs {
			for _, rec := range part {
				if !seen.SeenAndRecord(ctx, rec.Raw) {
					kept = append(kept, rec)
				}
			}
		}
	} else {
		for _, part := range outs {
			kept = append(kept, part...)
		}
	}
	dedupe.SortChronological(kept)
	return kept, nil
}
