package diskqual

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/andrej220/nexcheck/internal/lg"
	"github.com/andrej220/nexcheck/pkg/executor"
	"github.com/andrej220/nexcheck/pkg/workerpool"
)

const DefaultWorkers = 8

// Task is one device to benchmark.
type Task struct {
	DeviceID    string
	BlockSizeKB int
	Duration    time.Duration
}

// Result is the outcome for one device. Throughput is set only on success.
type Result struct {
	DeviceID   string   `json:"disk" bson:"disk"`
	Success    bool     `json:"success" bson:"success"`
	Throughput *float64 `json:"tput,omitempty" bson:"tput,omitempty"` // MB/s
	Error      string   `json:"error,omitempty" bson:"error,omitempty"`
}

func (r Result) Succeeded() bool { return r.Success }

type Probe interface {
	Measure(ctx context.Context, task Task) (float64, error)
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context, task Task) (float64, error)

func (f ProbeFunc) Measure(ctx context.Context, task Task) (float64, error) {
	return f(ctx, task)
}

// Harness spreads tasks over a fixed number of workers. It does not know
// what the probe measures.
type Harness struct {
	Workers int
	Probe   Probe
}

// Run benchmarks every task and returns exactly one result per distinct
// device id. A failing or panicking probe only affects its own result.
func (h *Harness) Run(ctx context.Context, tasks []Task) map[string]Result {
	logger := lg.FromContext(ctx)
	unique := dedupe(ctx, tasks)

	workers := h.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	pool := workerpool.NewPool(workers, func(ctx context.Context, t Task) (float64, error) {
		logger.Info("verifying performance", lg.String("disk", t.DeviceID))
		return h.Probe.Measure(ctx, t)
	})

	results := make(map[string]Result, len(unique))
	for _, out := range pool.Run(ctx, unique) {
		r := Result{DeviceID: out.Payload.DeviceID, Success: out.Err == nil}
		if out.Err != nil {
			r.Error = describe(out.Err)
			logger.Error("disk benchmark failed", lg.String("disk", r.DeviceID), lg.Err(out.Err))
		} else {
			tput := out.Value
			r.Throughput = &tput
			logger.Debug("disk performance", lg.String("disk", r.DeviceID), lg.Float64("mb_per_sec", tput))
		}
		results[r.DeviceID] = r
	}
	return results
}

// dedupe keeps the first task per device id.
func dedupe(ctx context.Context, tasks []Task) []Task {
	seen := make(map[string]bool, len(tasks))
	unique := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if seen[t.DeviceID] {
			lg.FromContext(ctx).Warn("duplicate device ignored", lg.String("disk", t.DeviceID))
			continue
		}
		seen[t.DeviceID] = true
		unique = append(unique, t)
	}
	return unique
}

// describe prefers the command output of a failed dd over the generic
// exit status message.
func describe(err error) string {
	var exitErr *executor.ExitError
	if errors.As(err, &exitErr) {
		if out := strings.TrimSpace(exitErr.Output); out != "" {
			return out
		}
	}
	return err.Error()
}
