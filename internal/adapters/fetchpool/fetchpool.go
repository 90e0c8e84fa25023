// Package fetchpool runs per-identity enrichment tasks over a bounded set
// of workers. Each task owns exactly one identity slot; a failed or
// timed-out task yields the caller's neutral value instead of failing the
// batch.
package fetchpool

import (
	"context"
	"sync"
	"time"

	"github.com/teamlens/teamlens/pkg/logger"
	"github.com/teamlens/teamlens/pkg/metrics"
)

// Default pool configuration constants.
const (
	defaultWorkers     = 4
	defaultTaskTimeout = 2 * time.Minute
)

// Task produces one identity's result.
type Task[T any] func(ctx context.Context, key string) (T, error)

// Pool fans tasks out and collects results behind a barrier.
type Pool[T any] struct {
	workers int
	timeout time.Duration
	name    string
	logger  logger.Logger
}

// Option applies a configuration option to the pool.
type Option[T any] func(*Pool[T])

// WithWorkers bounds concurrent tasks.
func WithWorkers[T any](n int) Option[T] {
	return func(p *Pool[T]) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithTaskTimeout bounds each task's runtime.
func WithTaskTimeout[T any](d time.Duration) Option[T] {
	return func(p *Pool[T]) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithName sets the pool name for logging and metrics.
func WithName[T any](name string) Option[T] {
	return func(p *Pool[T]) {
		if name != "" {
			p.name = name
			p.logger = logger.Named(name)
		}
	}
}

// New constructs a pool.
func New[T any](opts ...Option[T]) *Pool[T] {
	p := &Pool[T]{
		workers: defaultWorkers,
		timeout: defaultTaskTimeout,
		name:    "fetchpool",
		logger:  logger.Named("fetchpool"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one task per key and returns a complete result map: every
// key is present, holding either its task's result or fallback. Run blocks
// until all tasks finish; there is no cross-task ordering.
func (p *Pool[T]) Run(ctx context.Context, keys []string, task Task[T], fallback T) map[string]T {
	if len(keys) == 0 {
		return map[string]T{}
	}

	// One slot per key, written only by the task owning that index.
	results := make([]T, len(keys))

	type job struct {
		idx int
		key string
	}
	jobs := make(chan job)

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results[j.idx] = p.runOne(ctx, j.key, task, fallback)
			}
		}()
	}

	for i, key := range keys {
		jobs <- job{idx: i, key: key}
	}
	close(jobs)
	wg.Wait()

	out := make(map[string]T, len(keys))
	for i, key := range keys {
		out[key] = results[i]
	}
	return out
}

func (p *Pool[T]) runOne(ctx context.Context, key string, task Task[T], fallback T) T {
	tctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	res, err := task(tctx, key)
	metrics.ObservePoolTaskLatency(time.Since(start).Seconds())

	if err != nil {
		metrics.RecordPoolTask("error")
		p.logger.Warn(ctx, "task failed, using fallback",
			logger.String("pool", p.name),
			logger.String("key", key),
			logger.Error(err))
		return fallback
	}
	metrics.RecordPoolTask("ok")
	return res
}
