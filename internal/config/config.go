// Package config defines the pipeline configuration and its loading layers.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Dedup strategies.
const (
	DedupSweep    = "sweep"
	DedupWindowed = "windowed"
)

// Aggregate store backends.
const (
	StoreMemory = "memory"
	StoreBadger = "badger"
)

// Archetype sizes are bounded by the deck size.
const (
	minArchetypeSize = 1
	maxArchetypeSize = 8
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// MetricsAddr exposes /metrics, /healthz and /stats while a command runs.
	// Empty disables the listener.
	MetricsAddr string `koanf:"metrics_addr"`

	// MetricsLabels are constant labels attached to every exported metric.
	MetricsLabels map[string]string `koanf:"metrics_labels"`

	// MetricsRefreshMS is how often runtime gauges are sampled.
	MetricsRefreshMS int `koanf:"metrics_refresh_ms"`

	// WorkerCount is the number of workers per stage.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the queue feeding each stage.
	QueueSize int `koanf:"queue_size"`

	// MinArchetypeSize is the smallest archetype enumerated by the graph stage.
	MinArchetypeSize int `koanf:"min_archetype_size"`

	DedupStrategy    string `koanf:"dedup_strategy"`
	DedupWindowMS    int    `koanf:"dedup_window_ms"`
	DedupThresholdMS int    `koanf:"dedup_threshold_ms"`

	// MinNodeSupport is the count below which a node is left out of scoring.
	MinNodeSupport int64 `koanf:"min_node_support"`

	// Combiner enables per-worker pre-aggregation of observations.
	Combiner bool `koanf:"combiner"`

	// CombinerFlushSize drains a worker's combiner once it holds this many keys.
	CombinerFlushSize int `koanf:"combiner_flush_size"`

	// Store selects the aggregate backend: memory or badger.
	Store string `koanf:"store"`

	// BadgerDir is the on-disk location for the badger store. Empty keeps it in memory.
	BadgerDir string `koanf:"badger_dir"`

	// ReportDB is a SQLite file receiving the scored pairs. Empty disables the export.
	ReportDB string `koanf:"report_db"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		MetricsRefreshMS:  5000,
		WorkerCount:       runtime.NumCPU(),
		QueueSize:         4096,
		MinArchetypeSize:  maxArchetypeSize,
		DedupStrategy:     DedupSweep,
		DedupWindowMS:     5000,
		DedupThresholdMS:  3000,
		MinNodeSupport:    10,
		Combiner:          true,
		CombinerFlushSize: 200_000,
		Store:             StoreMemory,
	}
}

// MetricsRefresh returns the runtime gauge sampling interval.
func (c *Config) MetricsRefresh() time.Duration {
	return time.Duration(c.MetricsRefreshMS) * time.Millisecond
}

// DedupWindow returns the dedup bucket width.
func (c *Config) DedupWindow() time.Duration {
	return time.Duration(c.DedupWindowMS) * time.Millisecond
}

// DedupThreshold returns the minimum gap between two kept records of the same match.
func (c *Config) DedupThreshold() time.Duration {
	return time.Duration(c.DedupThresholdMS) * time.Millisecond
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	switch {
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive, got %d", ErrInvalidConfig, c.WorkerCount)
	case c.MetricsRefreshMS <= 0:
		return fmt.Errorf("%w: metrics_refresh_ms must be positive, got %d", ErrInvalidConfig, c.MetricsRefreshMS)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive, got %d", ErrInvalidConfig, c.QueueSize)
	case c.MinArchetypeSize < minArchetypeSize || c.MinArchetypeSize > maxArchetypeSize:
		return fmt.Errorf("%w: min_archetype_size must be within [%d, %d], got %d",
			ErrInvalidConfig, minArchetypeSize, maxArchetypeSize, c.MinArchetypeSize)
	case c.DedupWindowMS <= 0:
		return fmt.Errorf("%w: dedup_window_ms must be positive, got %d", ErrInvalidConfig, c.DedupWindowMS)
	case c.DedupThresholdMS < 0:
		return fmt.Errorf("%w: dedup_threshold_ms must not be negative, got %d", ErrInvalidConfig, c.DedupThresholdMS)
	case c.MinNodeSupport < 0:
		return fmt.Errorf("%w: min_node_support must not be negative, got %d", ErrInvalidConfig, c.MinNodeSupport)
	case c.CombinerFlushSize <= 0:
		return fmt.Errorf("%w: combiner_flush_size must be positive, got %d", ErrInvalidConfig, c.CombinerFlushSize)
	}

	switch strings.ToLower(c.DedupStrategy) {
	case DedupSweep, DedupWindowed:
	default:
		return fmt.Errorf("%w: unknown dedup_strategy %q", ErrInvalidConfig, c.DedupStrategy)
	}
	switch strings.ToLower(c.Store) {
	case StoreMemory, StoreBadger:
	default:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	}
	return nil
}
