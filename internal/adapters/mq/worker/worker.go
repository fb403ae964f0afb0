// Package worker runs a fixed set of workers over a queue until it drains.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/jules-maulard/clash-royale-analytics/pkg/logger"
	"github.com/jules-maulard/clash-royale-analytics/pkg/metrics"
)

// Handler processes one item. workerID lets handlers keep per-worker state
// without locks. A returned error stops the whole pool.
type Handler[T any] func(ctx context.Context, workerID int, item T) error

// Source is where workers receive items from.
type Source[T any] interface {
	Dequeue() <-chan T
}

// Worker processes items until its source is drained.
type Worker interface {
	Run(ctx context.Context) error
}

// InMemoryWorker drains a Source through a Handler.
type InMemoryWorker[T any] struct {
	id        int
	name      string
	pool      string
	source    Source[T]
	handle    Handler[T]
	processed atomic.Int64
	logger    logger.Logger
}

// NewInMemoryWorker creates worker id of a pool.
func NewInMemoryWorker[T any](id int, source Source[T], handle Handler[T], opts ...Option) *InMemoryWorker[T] {
	s := newSettings(opts)
	name := s.name + "-" + strconv.Itoa(id)
	return &InMemoryWorker[T]{
		id:     id,
		name:   name,
		pool:   s.name,
		source: source,
		handle: handle,
		logger: s.logger.Named(name),
	}
}

// Run returns nil once the source is closed and drained, ctx.Err() on
// cancellation, or the first handler error.
func (w *InMemoryWorker[T]) Run(ctx context.Context) error {
	items := w.source.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item, ok := <-items:
			if !ok {
				w.logger.Debug(ctx, "source drained", logger.Int64("processed", w.processed.Load()))
				return nil
			}
			if err := w.handle(ctx, w.id, item); err != nil {
				metrics.RecordWorkerError(w.pool)
				return fmt.Errorf("%s: %w", w.name, err)
			}
			w.processed.Add(1)
		}
	}
}

// Processed returns the number of items handled successfully.
func (w *InMemoryWorker[T]) Processed() int64 {
	return w.processed.Load()
}

// Pool manages multiple workers sharing one source.
type Pool[T any] struct {
	name    string
	workers []*InMemoryWorker[T]
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers. A count below 1 uses one
// worker per CPU.
func NewPool[T any](workerCount int, source Source[T], handle Handler[T], opts ...Option) *Pool[T] {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	s := newSettings(opts)
	p := &Pool[T]{
		name:    s.name,
		workers: make([]*InMemoryWorker[T], workerCount),
		logger:  s.logger.Named(s.name),
	}
	for i := range p.workers {
		p.workers[i] = NewInMemoryWorker(i, source, handle, opts...)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool[T]) Size() int { return len(p.workers) }

// Run starts every worker and waits for all of them. The first error
// cancels the others and is returned.
func (p *Pool[T]) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range p.workers {
		w := w
		g.Go(func() error {
			metrics.AddWorkersActive(p.name, 1)
			defer metrics.AddWorkersActive(p.name, -1)
			return w.Run(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		p.logger.Error(ctx, "pool stopped", logger.Error(err))
		return err
	}
	p.logger.Debug(ctx, "pool finished", logger.Int64("processed", p.Processed()))
	return nil
}

// Processed returns the number of items handled across all workers.
func (p *Pool[T]) Processed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Processed()
	}
	return n
}
