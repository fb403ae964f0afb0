package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	queue "github.com/jules-maulard/clash-royale-analytics/internal/adapters/mq/queue"
	worker "github.com/jules-maulard/clash-royale-analytics/internal/adapters/mq/worker"
	logging "github.com/jules-maulard/clash-royale-analytics/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func fill(q *queue.InMemoryQueue[int], n int) {
	for i := 0; i < n; i++ {
		if err := q.Enqueue(context.Background(), i); err != nil {
			panic(err)
		}
	}
	_ = q.Close()
}

func TestPoolDrainsQueue(t *testing.T) {
	convey.Convey("Given a closed queue of 100 items", t, func() {
		q := queue.NewInMemoryQueue[int](queue.WithCapacity(100))
		fill(q, 100)

		var sum atomic.Int64
		seenWorkers := sync.Map{}
		pool := worker.NewPool[int](4, q, func(_ context.Context, id int, item int) error {
			sum.Add(int64(item))
			seenWorkers.Store(id, true)
			return nil
		}, worker.WithName("test"), worker.WithLogger(logging.Nop()))

		convey.Convey("When the pool runs", func() {
			err := pool.Run(context.Background())

			convey.Convey("Then every item is handled exactly once", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(pool.Size(), convey.ShouldEqual, 4)
				convey.So(pool.Processed(), convey.ShouldEqual, 100)
				convey.So(sum.Load(), convey.ShouldEqual, 99*100/2)
				ids := 0
				seenWorkers.Range(func(k, _ any) bool {
					convey.So(k.(int), convey.ShouldBeBetweenOrEqual, 0, 3)
					ids++
					return true
				})
				convey.So(ids, convey.ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestPoolStopsOnError(t *testing.T) {
	convey.Convey("Given a handler that fails on one item", t, func() {
		q := queue.NewInMemoryQueue[int](queue.WithCapacity(50))
		fill(q, 50)
		boom := errors.New("boom")

		pool := worker.NewPool[int](3, q, func(_ context.Context, _ int, item int) error {
			if item == 10 {
				return boom
			}
			return nil
		}, worker.WithLogger(logging.Nop()))

		convey.Convey("When the pool runs", func() {
			err := pool.Run(context.Background())

			convey.Convey("Then the handler error is returned", func() {
				convey.So(errors.Is(err, boom), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "worker-")
			})
		})
	})
}

func TestPoolHonoursCancellation(t *testing.T) {
	convey.Convey("Given a queue that is never closed", t, func() {
		q := queue.NewInMemoryQueue[int](queue.WithCapacity(1))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		pool := worker.NewPool[int](2, q, func(context.Context, int, int) error { return nil },
			worker.WithLogger(logging.Nop()))

		convey.Convey("When the context is already cancelled", func() {
			err := pool.Run(ctx)

			convey.Convey("Then the pool returns the context error", func() {
				convey.So(errors.Is(err, context.Canceled), convey.ShouldBeTrue)
			})
		})
	})
}
