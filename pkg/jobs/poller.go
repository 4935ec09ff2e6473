// Package jobs drives asynchronous server-side jobs to completion by polling.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andrej220/nexcheck/internal/lg"
	"github.com/cenkalti/backoff/v4"
)

// DefaultInterval is the fixed delay between two status queries.
const DefaultInterval = 10 * time.Second

var (
	// ErrJobNotFound is returned by a Transport when the job id no longer
	// resolves. It is terminal.
	ErrJobNotFound = errors.New("the job ID no longer exists")
	// ErrJobTimeout is returned when MaxWait or MaxPolls is exceeded.
	ErrJobTimeout = errors.New("job did not complete in time")
)

// Request is a call that may start a server-side job.
type Request struct {
	Method  string // POST, PUT or DELETE
	Path    string
	Payload any
}

func (r Request) String() string {
	return r.Method + " " + r.Path
}

// Status is a snapshot of a job.
type Status struct {
	Progress float64
	Done     bool
}

// Transport submits requests and reports job status.
type Transport interface {
	// Submit returns the id of the job started by req, or "" when the
	// request completed synchronously.
	Submit(ctx context.Context, req Request) (jobID string, err error)
	JobStatus(ctx context.Context, jobID string) (Status, error)
}

// Outcome describes a completed request.
type Outcome struct {
	JobID    string
	Async    bool
	Polls    int
	Progress float64
}

// SubmitError means the request itself failed; no job was started.
type SubmitError struct {
	Request Request
	Err     error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submit %s: %v", e.Request, e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// JobError means the job was started but its completion could not be
// confirmed. The job's real end state is unknown.
type JobError struct {
	JobID string
	Polls int
	Err   error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s failed after %d poll(s): %v", e.JobID, e.Polls, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }

// Poller waits for jobs with a fixed interval between polls.
// MaxWait and MaxPolls are optional bounds; zero means unbounded.
type Poller struct {
	Interval time.Duration
	MaxWait  time.Duration
	MaxPolls int
}

// SubmitAndWait submits req and blocks until the job reports done, a poll
// fails, a bound is exceeded or ctx is cancelled.
func (p *Poller) SubmitAndWait(ctx context.Context, t Transport, req Request) (*Outcome, error) {
	logger := lg.FromContext(ctx).With(lg.String("request", req.String()))

	jobID, err := t.Submit(ctx, req)
	if err != nil {
		return nil, &SubmitError{Request: req, Err: err}
	}
	if jobID == "" {
		logger.Debug("request completed synchronously")
		return &Outcome{Progress: 100}, nil
	}

	logger = logger.With(lg.String("job", jobID))
	logger.Info("waiting for job to complete")

	if p.MaxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.MaxWait)
		defer cancel()
	}

	var b backoff.BackOff = backoff.NewConstantBackOff(p.interval())
	if p.MaxPolls > 0 {
		b = backoff.WithMaxRetries(b, uint64(p.MaxPolls))
	}

	outcome := &Outcome{JobID: jobID, Async: true}
	for {
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return nil, &JobError{JobID: jobID, Polls: outcome.Polls, Err: ErrJobTimeout}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &JobError{JobID: jobID, Polls: outcome.Polls, Err: p.cause(ctx, ctx.Err())}
		case <-timer.C:
		}

		status, err := t.JobStatus(ctx, jobID)
		outcome.Polls++
		if err != nil {
			logger.Error("job failed to complete", lg.Err(err))
			return nil, &JobError{JobID: jobID, Polls: outcome.Polls, Err: p.cause(ctx, err)}
		}
		outcome.Progress = status.Progress
		logger.Debug("job status", lg.Float64("progress", status.Progress), lg.Bool("done", status.Done))
		if status.Done {
			logger.Info("job completed", lg.Int("polls", outcome.Polls))
			return outcome, nil
		}
	}
}

// cause reports ErrJobTimeout when err stems from MaxWait expiring.
func (p *Poller) cause(ctx context.Context, err error) error {
	if p.MaxWait > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrJobTimeout
	}
	return err
}

func (p *Poller) interval() time.Duration {
	if p.Interval <= 0 {
		return DefaultInterval
	}
	return p.Interval
}
