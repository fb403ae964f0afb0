package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/jules-maulard/clash-royale-analytics/internal/adapters/repository"
	"github.com/jules-maulard/clash-royale-analytics/internal/domain/model"
	"github.com/jules-maulard/clash-royale-analytics/pkg/logger"
)

// Run executes clean, graph and stats in order under baseDir and writes
// baseDir/manifest.yaml. Each stage starts only after the previous one has
// fully finished.
func (s *Service) Run(ctx context.Context, input, baseDir string) (*Manifest, error) {
	m := &Manifest{
		RunID:     uuid.NewString(),
		Input:     input,
		StartedAt: time.Now().UTC(),
		Settings:  s.Settings(),
	}
	s.mu.Lock()
	s.last = m
	s.mu.Unlock()

	log := s.logger.With(logger.String("run_id", m.RunID))
	log.Info(ctx, "run started", logger.String("input", input), logger.String("output", baseDir))

	if _, err := s.Clean(ctx, input, filepath.Join(baseDir, DirClean)); err != nil {
		return nil, err
	}
	if _, err := s.BuildGraph(ctx, filepath.Join(baseDir, DirClean), filepath.Join(baseDir, DirGraph)); err != nil {
		return nil, err
	}
	_, recs, err := s.scoreStage(ctx, filepath.Join(baseDir, DirGraph), filepath.Join(baseDir, DirFinal))
	if err != nil {
		return nil, err
	}

	if s.reportDB != "" {
		if err := s.export(ctx, m, recs); err != nil {
			return nil, stageError(StageStats, err)
		}
		log.Info(ctx, "report exported", logger.String("db", s.reportDB), logger.Int("pairs", len(recs)))
	}

	s.record(func(m *Manifest) {
		m.Duration = time.Since(m.StartedAt)
		if s.reportDB != "" {
			m.ReportDB = s.reportDB
		}
	})
	out, _ := s.LastManifest()
	if err := WriteManifest(filepath.Join(baseDir, ManifestName), &out); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	log.Info(ctx, "run finished", logger.Duration("took", out.Duration))
	return &out, nil
}

func (s *Service) export(ctx context.Context, m *Manifest, recs []model.PredictionRecord) error {
	db, err := repository.OpenReport(s.reportDB)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return db.SavePredictions(ctx, m.RunID, m.StartedAt.Format(time.RFC3339Nano), recs)
}
