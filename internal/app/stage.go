package app

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jules-maulard/clash-royale-analytics/internal/adapters/mq/queue"
	"github.com/jules-maulard/clash-royale-analytics/internal/adapters/mq/worker"
	"github.com/jules-maulard/clash-royale-analytics/internal/adapters/textio"
	"github.com/jules-maulard/clash-royale-analytics/pkg/logger"
	"github.com/jules-maulard/clash-royale-analytics/pkg/metrics"
)

// Stage names used in errors, logs and metrics.
const (
	StageClean = metrics.StageClean
	StageGraph = metrics.StageGraph
	StageStats = metrics.StageStats
)

// Output layout under a run directory.
const (
	DirClean     = "clean"
	DirGraph     = "nodesEdges"
	DirNodes     = "nodes"
	DirEdges     = "edges"
	DirFinal     = "final"
	ManifestName = "manifest.yaml"

	cleanPartName = "part-00000.ndjson"
)

// producer feeds a stage queue. emit blocks while the queue is full.
type producer[T any] func(ctx context.Context, emit func(T) error) error

// runStage runs produce and a pool of workers over a bounded queue and
// returns once the queue is drained by every worker or on the first error.
func runStage[T any](ctx context.Context, s *Service, name string, workers int, produce producer[T], handle worker.Handler[T]) error {
	q := queue.NewInMemoryQueue[T](queue.WithCapacity(s.queueSize), queue.WithName(name))
	pool := worker.NewPool[T](workers, q, handle, worker.WithName(name), worker.WithLogger(s.logger))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer func() { _ = q.Close() }()
		return produce(gctx, func(item T) error { return q.Enqueue(gctx, item) })
	})
	g.Go(func() error { return pool.Run(gctx) })
	return g.Wait()
}

// lineCounts are filled by a lineProducer. Read includes oversized lines.
type lineCounts struct {
	read      int64
	oversized int64
}

// lineProducer emits every line under path and counts them. Lines over the
// reader's size limit are counted as oversized and never emitted. Blank
// lines are skipped when skipBlank is set.
func (s *Service) lineProducer(stage, path string, skipBlank bool, c *lineCounts) producer[string] {
	return func(ctx context.Context, emit func(string) error) error {
		return textio.ReadLines(ctx, path, func(line string) error {
			if skipBlank && strings.TrimSpace(line) == "" {
				return nil
			}
			c.read++
			return emit(line)
		}, textio.WithMaxLineSize(s.maxLineSize), textio.OnLongLine(func(size int) error {
			c.read++
			c.oversized++
			s.logger.Warn(ctx, "dropping oversized line",
				logger.String("stage", stage),
				logger.String("input", path),
				logger.Int("bytes", size),
			)
			return nil
		}))
	}
}

// sliceProducer emits items in order.
func sliceProducer[T any](items []T) producer[T] {
	return func(_ context.Context, emit func(T) error) error {
		for _, it := range items {
			if err := emit(it); err != nil {
				return err
			}
		}
		return nil
	}
}
