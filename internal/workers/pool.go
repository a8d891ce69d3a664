// Package workers provides the bounded fan-out primitive used by host
// discovery and port scanning: a fixed number of workers pull items from a
// bounded job queue, apply a function and push results onto a bounded
// results channel that is closed once every worker has exited.
package workers

import (
	"context"
	"sync"

	"github.com/anstrom/ipscannr/internal/logging"
)

// Config holds configuration for a worker pool.
type Config struct {
	// Size is the number of worker goroutines. Values below 1 are treated as 1.
	Size int
	// QueueSize is the capacity of the job queue. Zero means 2*Size.
	QueueSize int
	// ResultBuffer is the capacity of the results channel. Zero means Size.
	ResultBuffer int
}

// DefaultConfig returns a default worker pool configuration.
func DefaultConfig() Config {
	return Config{Size: 10}
}

func (c Config) normalized() Config {
	if c.Size < 1 {
		c.Size = 1
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 2 * c.Size
	}
	if c.ResultBuffer <= 0 {
		c.ResultBuffer = c.Size
	}
	return c
}

// Func processes one item.
type Func[T, R any] func(ctx context.Context, item T) R

// Pool fans items of type T out to workers producing results of type R.
// A Pool holds no goroutines between runs and may be reused.
type Pool[T, R any] struct {
	config Config
	fn     Func[T, R]
	logger *logging.Logger
}

// New creates a new worker pool applying fn to every item.
func New[T, R any](config Config, fn Func[T, R]) *Pool[T, R] {
	return &Pool[T, R]{
		config: config.normalized(),
		fn:     fn,
		logger: logging.Default().WithComponent("workers"),
	}
}

// WithLogger replaces the pool's logger.
func (p *Pool[T, R]) WithLogger(l *logging.Logger) *Pool[T, R] {
	if l != nil {
		p.logger = l.WithComponent("workers")
	}
	return p
}

// Size returns the number of workers a run uses.
func (p *Pool[T, R]) Size() int {
	return p.config.Size
}

// Stream runs the pool over items and returns results in completion order.
// The channel is closed after the last worker exits. Canceling ctx stops the
// producer and makes workers exit at their next send; a consumer that stops
// reading must cancel ctx so the workers can finish.
func (p *Pool[T, R]) Stream(ctx context.Context, items []T) <-chan R {
	jobs := make(chan T, p.config.QueueSize)
	results := make(chan R, p.config.ResultBuffer)

	workers := min(p.config.Size, max(len(items), 1))
	p.logger.Debug("Starting worker pool run",
		"workers", workers,
		"items", len(items),
		"queue_size", p.config.QueueSize)

	go func() {
		defer close(jobs)
		for _, item := range items {
			select {
			case jobs <- item:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.work(ctx, id, jobs, results)
		}(i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

func (p *Pool[T, R]) work(ctx context.Context, id int, jobs <-chan T, results chan<- R) {
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-jobs:
			if !ok {
				return
			}
			r := p.fn(ctx, item)
			select {
			case results <- r:
			case <-ctx.Done():
				p.logger.Debug("Result receiver gone, worker exiting", "worker_id", id)
				return
			}
		}
	}
}

// Collect runs the pool over items and gathers every result.
// Results are in completion order. If ctx is canceled early the returned
// slice holds whatever finished before cancellation.
func (p *Pool[T, R]) Collect(ctx context.Context, items []T) []R {
	out := make([]R, 0, len(items))
	for r := range p.Stream(ctx, items) {
		out = append(out, r)
	}
	return out
}
