// Package app wires the pipeline stages: clean, graph and stats.
package app

import (
	"runtime"
	"sync"

	"github.com/jules-maulard/clash-royale-analytics/internal/adapters/repository"
	"github.com/jules-maulard/clash-royale-analytics/internal/adapters/textio"
	"github.com/jules-maulard/clash-royale-analytics/internal/config"
	"github.com/jules-maulard/clash-royale-analytics/internal/domain/dedupe"
	"github.com/jules-maulard/clash-royale-analytics/pkg/logger"
)

// Service runs pipeline stages with a fixed configuration.
type Service struct {
	mu sync.RWMutex

	// Stage runtime
	workerCount int
	queueSize   int
	maxLineSize int

	// Graph
	minArchetypeSize  int
	combiner          bool
	combinerFlushSize int
	storeBackend      string
	storeOpts         []repository.Option

	dedup          *dedupe.Deduplicator
	minNodeSupport int64
	reportDB       string

	// State
	running string
	last    *Manifest

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of workers per stage.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize bounds the queue feeding each stage.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithMinArchetypeSize sets the smallest archetype size enumerated.
func WithMinArchetypeSize(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.minArchetypeSize = k
		}
	}
}

// WithCombiner toggles per-worker pre-aggregation.
func WithCombiner(enabled bool) Option {
	return func(s *Service) {
		s.combiner = enabled
	}
}

// WithMaxLineSize sets the longest input line kept; longer lines are dropped.
func WithMaxLineSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLineSize = n
		}
	}
}

// WithCombinerFlushSize sets how many keys a combiner holds before draining.
func WithCombinerFlushSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.combinerFlushSize = n
		}
	}
}

// WithDedup replaces the deduplicator used by the clean stage.
func WithDedup(d *dedupe.Deduplicator) Option {
	return func(s *Service) {
		if d != nil {
			s.dedup = d
		}
	}
}

// WithMinNodeSupport sets the node count below which edges are not scored.
func WithMinNodeSupport(n int64) Option {
	return func(s *Service) {
		if n >= 0 {
			s.minNodeSupport = n
		}
	}
}

// WithStore selects the aggregate store backend.
func WithStore(backend string, opts ...repository.Option) Option {
	return func(s *Service) {
		if backend != "" {
			s.storeBackend = backend
			s.storeOpts = opts
		}
	}
}

// WithReportDB exports scored pairs of each run to a SQLite file.
func WithReportDB(path string) Option {
	return func(s *Service) {
		s.reportDB = path
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:       runtime.NumCPU(),
		queueSize:         4096,
		maxLineSize:       textio.DefaultMaxLineSize,
		minArchetypeSize:  8,
		combiner:          true,
		combinerFlushSize: 200_000,
		storeBackend:      repository.BackendMemory,
		dedup:             dedupe.New(),
		minNodeSupport:    10,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("app")
	}
	return s
}

// NewFromConfig maps cfg onto service options. Extra opts are applied last.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Service, error) {
	strategy, err := dedupe.ParseStrategy(cfg.DedupStrategy)
	if err != nil {
		return nil, err
	}
	base := []Option{
		WithWorkerCount(cfg.WorkerCount),
		WithQueueSize(cfg.QueueSize),
		WithMinArchetypeSize(cfg.MinArchetypeSize),
		WithCombiner(cfg.Combiner),
		WithCombinerFlushSize(cfg.CombinerFlushSize),
		WithDedup(dedupe.New(
			dedupe.WithStrategy(strategy),
			dedupe.WithWindow(cfg.DedupWindow()),
			dedupe.WithThreshold(cfg.DedupThreshold()),
		)),
		WithMinNodeSupport(cfg.MinNodeSupport),
		WithStore(cfg.Store, repository.WithDir(cfg.BadgerDir)),
		WithReportDB(cfg.ReportDB),
	}
	return New(append(base, opts...)...), nil
}

// Settings returns the effective configuration as recorded in manifests.
func (s *Service) Settings() RunSettings {
	return RunSettings{
		Workers:           s.workerCount,
		QueueSize:         s.queueSize,
		MinArchetypeSize:  s.minArchetypeSize,
		DedupStrategy:     string(s.dedup.Strategy()),
		DedupWindow:       s.dedup.Window(),
		DedupThreshold:    s.dedup.Threshold(),
		MinNodeSupport:    s.minNodeSupport,
		Combiner:          s.combiner,
		CombinerFlushSize: s.combinerFlushSize,
		Store:             s.storeBackend,
	}
}

func (s *Service) setRunning(stage string) {
	s.mu.Lock()
	s.running = stage
	s.mu.Unlock()
}

func (s *Service) record(update func(m *Manifest)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		s.last = &Manifest{Settings: s.Settings()}
	}
	update(s.last)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"running":          s.running,
		"workerCount":      s.workerCount,
		"queueSize":        s.queueSize,
		"minArchetypeSize": s.minArchetypeSize,
		"dedupStrategy":    string(s.dedup.Strategy()),
		"combiner":         s.combiner,
		"store":            s.storeBackend,
	}
	if m := s.last; m != nil {
		if m.RunID != "" {
			stats["runId"] = m.RunID
		}
		if m.Clean != nil {
			stats["clean"] = *m.Clean
		}
		if m.Graph != nil {
			stats["graph"] = *m.Graph
		}
		if m.Stats != nil {
			stats["stats"] = *m.Stats
		}
	}
	return stats
}

// LastManifest returns a copy of the counters of the most recent stages.
func (s *Service) LastManifest() (Manifest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Manifest{}, false
	}
	return *s.last, true
}
