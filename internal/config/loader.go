package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment knobs.
const (
	EnvPrefix     = "CLASH_"
	EnvConfigPath = "CLASH_CONFIG"
)

// Load builds a Config by layering defaults, an optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New)
//  2. file named by CLASH_CONFIG (.toml is read as TOML, anything else as YAML)
//  3. env (prefix CLASH_)
func Load(_ context.Context) (*Config, error) {
	return LoadFile(os.Getenv(EnvConfigPath))
}

// LoadFile is Load with an explicit file path. An empty path skips the file layer.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), parserFor(path)); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// CLASH_WORKER_COUNT -> worker_count. Keys are flat, so underscores stay.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	cfg.DedupStrategy = strings.ToLower(cfg.DedupStrategy)
	cfg.Store = strings.ToLower(cfg.Store)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parserFor(path string) koanf.Parser {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return TOMLParser()
	}
	return yaml.Parser()
}
