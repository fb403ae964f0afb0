package worker

import (
	"github.com/jules-maulard/clash-royale-analytics/pkg/logger"
)

type settings struct {
	name   string
	logger logger.Logger
}

// Option applies a configuration option to a worker or pool.
type Option func(*settings)

// WithName sets the pool name used for worker names, logs and metrics.
func WithName(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.name = name
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

func newSettings(opts []Option) settings {
	s := settings{name: "worker"}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("worker")
	}
	return s
}
