package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// RunSettings is the effective configuration recorded with a run.
type RunSettings struct {
	Workers           int           `yaml:"workers" json:"workers"`
	QueueSize         int           `yaml:"queue_size" json:"queueSize"`
	MinArchetypeSize  int           `yaml:"min_archetype_size" json:"minArchetypeSize"`
	DedupStrategy     string        `yaml:"dedup_strategy" json:"dedupStrategy"`
	DedupWindow       time.Duration `yaml:"dedup_window" json:"dedupWindow"`
	DedupThreshold    time.Duration `yaml:"dedup_threshold" json:"dedupThreshold"`
	MinNodeSupport    int64         `yaml:"min_node_support" json:"minNodeSupport"`
	Combiner          bool          `yaml:"combiner" json:"combiner"`
	CombinerFlushSize int           `yaml:"combiner_flush_size" json:"combinerFlushSize"`
	Store             string        `yaml:"store" json:"store"`
}

// Manifest records the configuration and counters of a run.
type Manifest struct {
	RunID     string        `yaml:"run_id"`
	Input     string        `yaml:"input"`
	StartedAt time.Time     `yaml:"started_at"`
	Duration  time.Duration `yaml:"duration"`
	Settings  RunSettings   `yaml:"settings"`
	Clean     *CleanStats   `yaml:"clean,omitempty"`
	Graph     *GraphStats   `yaml:"graph,omitempty"`
	Stats     *ScoreStats   `yaml:"stats,omitempty"`
	ReportDB  string        `yaml:"report_db,omitempty"`
}

// WriteManifest writes m as YAML to path.
func WriteManifest(path string, m *Manifest) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return &m, nil
}
