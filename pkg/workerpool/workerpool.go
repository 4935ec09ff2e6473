// Package workerpool runs a batch of independent jobs on a fixed number of
// workers and returns one outcome per job, whatever happens to the others.
package workerpool

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/andrej220/nexcheck/internal/lg"
	"golang.org/x/sync/errgroup"
)

const TotalMaxWorkers = 10

type JobFunc[T, R any] func(ctx context.Context, payload T) (R, error)

// Outcome is the result of one job. Err is set when the job failed,
// panicked or was never started because ctx was cancelled.
type Outcome[T, R any] struct {
	Payload  T
	Value    R
	Err      error
	Duration time.Duration
}

// PanicError is a recovered panic from a job.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("job panicked: %v", e.Value)
}

type Pool[T, R any] struct {
	fn            JobFunc[T, R]
	maxWorkers    int
	activeWorkers int32
}

func NewPool[T, R any](maxWorkers int, fn func(ctx context.Context, payload T) (R, error)) *Pool[T, R] {
	if maxWorkers <= 0 {
		maxWorkers = TotalMaxWorkers
	}
	return &Pool[T, R]{fn: fn, maxWorkers: maxWorkers}
}

// Run queues every payload before any worker starts, then drains the queue
// with up to maxWorkers workers. Outcomes are returned in payload order.
// Run is safe to call repeatedly; each call owns its queue and results.
func (p *Pool[T, R]) Run(ctx context.Context, payloads []T) []Outcome[T, R] {
	outcomes := make([]Outcome[T, R], len(payloads))
	if len(payloads) == 0 {
		return outcomes
	}

	queue := make(chan int, len(payloads))
	for i := range payloads {
		queue <- i
	}
	close(queue)

	workers := min(p.maxWorkers, len(payloads))
	logger := lg.FromContext(ctx)
	logger.Debug("starting workers", lg.Int("workers", workers), lg.Int("jobs", len(payloads)))

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			atomic.AddInt32(&p.activeWorkers, 1)
			defer atomic.AddInt32(&p.activeWorkers, -1)
			for i := range queue {
				// each slot is written by exactly one worker
				outcomes[i] = p.run(ctx, payloads[i])
			}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// run executes one job. Any failure, panics included, stays inside the
// returned outcome.
func (p *Pool[T, R]) run(ctx context.Context, payload T) (out Outcome[T, R]) {
	out.Payload = payload
	if err := ctx.Err(); err != nil {
		out.Err = err
		return out
	}

	start := time.Now()
	defer func() {
		out.Duration = time.Since(start)
		if r := recover(); r != nil {
			out.Err = &PanicError{Value: r, Stack: debug.Stack()}
			lg.FromContext(ctx).Error("job panicked", lg.Any("job", payload), lg.Any("panic", r))
		}
	}()

	out.Value, out.Err = p.fn(ctx, payload)
	return out
}

func (p *Pool[T, R]) ActiveWorkers() int32 {
	return atomic.LoadInt32(&p.activeWorkers)
}
