package dedupe

import "time"

// Option applies a configuration option to the Deduplicator.
type Option func(*Deduplicator)

// WithStrategy selects the grouping strategy.
func WithStrategy(s Strategy) Option {
	return func(d *Deduplicator) {
		if s != "" {
			d.strategy = s
		}
	}
}

// WithWindow sets the bucket width used by the windowed strategy.
func WithWindow(window time.Duration) Option {
	return func(d *Deduplicator) {
		if window > 0 {
			d.window = window
		}
	}
}

// WithThreshold sets the gap a submission must exceed, relative to the last
// kept one, to count as a separate match.
func WithThreshold(threshold time.Duration) Option {
	return func(d *Deduplicator) {
		if threshold >= 0 {
			d.threshold = threshold
		}
	}
}

// SeenOption configures a SeenSet.
type SeenOption func(*inMemorySeenSet)

// WithExpectedSize pre-sizes the set.
func WithExpectedSize(n int) SeenOption {
	return func(s *inMemorySeenSet) {
		if n > 0 {
			s.expected = n
		}
	}
}
