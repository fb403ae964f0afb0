// Package dedupe collapses redundant submissions of the same match into one
// authoritative record.
package dedupe

import (
	"context"
	"sort"
	"time"

	"github.com/jules-maulard/clash-royale-analytics/internal/domain/model"
)

// Strategy selects how records are grouped before chronological suppression.
type Strategy string

const (
	// StrategySweep groups by canonical key only and merges submissions that
	// fall within the threshold of the last kept one. Idempotent.
	StrategySweep Strategy = "sweep"
	// StrategyWindowed groups by two half-offset time buckets, discards groups
	// with a single distinct payload, and needs a global uniq pass afterwards.
	StrategyWindowed Strategy = "windowed"
)

// Copies a windowed group needs before it is trusted.
const windowedMinCopies = 2

// Deduplicator reduces groups of records that may describe the same match.
// It is stateless between calls and safe for concurrent use.
type Deduplicator struct {
	strategy  Strategy
	window    time.Duration
	threshold time.Duration
}

// New creates a Deduplicator. Defaults: sweep, 5s window, 3s threshold.
func New(opts ...Option) *Deduplicator {
	d := &Deduplicator{
		strategy:  StrategySweep,
		window:    5 * time.Second,
		threshold: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Strategy returns the configured strategy.
func (d *Deduplicator) Strategy() Strategy { return d.strategy }

// Window returns the bucket width of the windowed strategy.
func (d *Deduplicator) Window() time.Duration { return d.window }

// Threshold returns the minimum gap between two kept records of one match.
func (d *Deduplicator) Threshold() time.Duration { return d.threshold }

// NeedsGlobalUniq reports whether reduced groups can overlap, so that the
// union of their outputs must be filtered for byte-identical lines.
func (d *Deduplicator) NeedsGlobalUniq() bool {
	return d.strategy == StrategyWindowed
}

// GroupKeys returns the shuffle keys a record is emitted under.
func (d *Deduplicator) GroupKeys(rec model.MatchRecord) []string {
	if d.strategy == StrategyWindowed {
		keys := WindowKeys(rec, d.window)
		return []string{keys[0].String(), keys[1].String()}
	}
	return []string{CanonicalKey(rec)}
}

// ReduceGroup returns the records of one group that survive deduplication,
// in chronological order.
func (d *Deduplicator) ReduceGroup(ctx context.Context, group []model.MatchRecord) []model.MatchRecord {
	seen := NewSeenSet(WithExpectedSize(len(group)))
	distinct := make([]model.MatchRecord, 0, len(group))
	for _, rec := range group {
		if !seen.SeenAndRecord(ctx, rec.Raw) {
			distinct = append(distinct, rec)
		}
	}
	if d.strategy == StrategyWindowed && len(distinct) < windowedMinCopies {
		return nil
	}

	SortChronological(distinct)

	kept := make([]model.MatchRecord, 0, len(distinct))
	var last time.Time
	for i, rec := range distinct {
		if i == 0 || rec.Date.Sub(last) > d.threshold {
			kept = append(kept, rec)
			last = rec.Date
		}
	}
	return kept
}

// Dedupe runs grouping, reduction and, when needed, the global uniq pass
// over a whole batch. The result is in chronological order.
func (d *Deduplicator) Dedupe(ctx context.Context, records []model.MatchRecord) []model.MatchRecord {
	groups := make(map[string][]model.MatchRecord)
	for _, rec := range records {
		for _, k := range d.GroupKeys(rec) {
			groups[k] = append(groups[k], rec)
		}
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []model.MatchRecord
	uniq := NewSeenSet()
	for _, k := range keys {
		for _, rec := range d.ReduceGroup(ctx, groups[k]) {
			if d.NeedsGlobalUniq() && uniq.SeenAndRecord(ctx, rec.Raw) {
				continue
			}
			out = append(out, rec)
		}
	}
	SortChronological(out)
	return out
}

// SortChronological orders records by timestamp, then by payload.
func SortChronological(recs []model.MatchRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].Date.Equal(recs[j].Date) {
			return recs[i].Date.Before(recs[j].Date)
		}
		return recs[i].Raw < recs[j].Raw
	})
}
