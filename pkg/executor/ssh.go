package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andrej220/nexcheck/internal/lg"
	"golang.org/x/crypto/ssh"
)

// SSH runs commands on a remote appliance, one session per command.
type SSH struct {
	client    sessionOpener
	KillGrace time.Duration
}

func NewSSH(client *ResilientSSHClient) *SSH {
	return &SSH{client: client, KillGrace: DefaultKillGrace}
}

func (e *SSH) Execute(ctx context.Context, command string, timeout time.Duration) (*Result, error) {
	logger := lg.FromContext(ctx)
	logger.Debug("executing remote command", lg.String("cmd", command), lg.Duration("timeout", timeout))

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("command '%s' cancelled: %w", command, err)
	}

	out := &lockedBuffer{}
	sess, err := e.client.openSession(ctx, out)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("command '%s' cancelled: %w", command, ctx.Err())
		}
		return nil, &SpawnError{Command: command, Err: err}
	}
	defer sess.Close()

	start := time.Now()
	if err := sess.Start(command); err != nil {
		return nil, &SpawnError{Command: command, Err: fmt.Errorf("start script: %w", err)}
	}

	done := make(chan error, 1)
	go func() { done <- sess.Wait() }()

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case err := <-done:
		return e.outcome(command, out.String(), err, time.Since(start))
	case <-deadline:
		e.stop(ctx, sess, done)
		timeoutErr := &TimeoutError{Command: command, Timeout: timeout, Output: out.String()}
		logger.Warn(timeoutErr.Error())
		return nil, timeoutErr
	case <-ctx.Done():
		e.stop(ctx, sess, done)
		return nil, fmt.Errorf("command '%s' cancelled: %w", command, ctx.Err())
	}
}

// stop interrupts the remote command and closes the session if it does not
// exit within the grace period. It returns once Wait has returned.
func (e *SSH) stop(ctx context.Context, sess remoteSession, done <-chan error) {
	if err := sess.Signal(ssh.SIGINT); err != nil {
		lg.FromContext(ctx).Debug("failed to signal remote command", lg.Err(err))
	}
	grace := e.KillGrace
	if grace <= 0 {
		grace = DefaultKillGrace
	}
	select {
	case <-done:
		return
	case <-time.After(grace):
	}
	_ = sess.Close()
	<-done
}

func (e *SSH) outcome(command, output string, err error, elapsed time.Duration) (*Result, error) {
	if err == nil {
		return &Result{Command: command, Output: output, Duration: elapsed}, nil
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return nil, &ExitError{Command: command, ExitCode: exitErr.ExitStatus(), Output: output}
	}
	var missing *ssh.ExitMissingError
	if errors.As(err, &missing) {
		return nil, &ExitError{Command: command, ExitCode: -1, Output: output}
	}
	return nil, fmt.Errorf("command '%s': %w", command, err)
}
