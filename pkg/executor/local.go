package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/andrej220/nexcheck/internal/lg"
)

const defaultShell = "/bin/sh"

// Local runs commands on this host through a shell.
type Local struct {
	Shell     string        // defaults to /bin/sh
	KillGrace time.Duration // interrupt-to-kill delay, defaults to DefaultKillGrace
}

func NewLocal() *Local {
	return &Local{Shell: defaultShell, KillGrace: DefaultKillGrace}
}

// Execute starts command in its own process group. When the deadline expires
// the group is interrupted, then killed after KillGrace. Once the shell has
// exited, anything it left running in the group is killed, so Execute never
// waits on background children holding the output pipe.
func (e *Local) Execute(ctx context.Context, command string, timeout time.Duration) (*Result, error) {
	logger := lg.FromContext(ctx)
	logger.Debug("executing command", lg.String("cmd", command), lg.Duration("timeout", timeout))

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("command '%s' cancelled: %w", command, err)
	}

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	// One pipe for both streams keeps the interleaving, and reading it
	// ourselves lets Wait return as soon as the shell exits.
	r, w, err := os.Pipe()
	if err != nil {
		return nil, &SpawnError{Command: command, Err: err}
	}
	defer r.Close()

	cmd := exec.CommandContext(runCtx, e.shell(), "-c", command)
	cmd.Stdout = w
	cmd.Stderr = w
	setProcessGroup(cmd)

	var interrupted atomic.Bool
	cmd.Cancel = func() error {
		interrupted.Store(true)
		return interruptGroup(cmd.Process)
	}
	cmd.WaitDelay = e.grace()

	start := time.Now()
	err = cmd.Start()
	w.Close()
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return nil, fmt.Errorf("command '%s' cancelled: %w", command, ctx.Err())
		case runCtx.Err() != nil:
			return nil, &TimeoutError{Command: command, Timeout: timeout}
		}
		logger.Error("failed to start command", lg.String("cmd", command), lg.Err(err))
		return nil, &SpawnError{Command: command, Err: err}
	}

	out := &lockedBuffer{}
	drained := make(chan struct{})
	go func() {
		_, _ = io.Copy(out, r)
		close(drained)
	}()

	err = cmd.Wait()
	elapsed := time.Since(start)
	killGroup(cmd.Process)
	select {
	case <-drained:
	case <-time.After(e.grace()):
		// a process that left the group still holds the pipe
		logger.Warn("output pipe still open after command exited", lg.String("cmd", command))
	}

	if interrupted.Load() {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("command '%s' cancelled: %w", command, ctx.Err())
		}
		timeoutErr := &TimeoutError{Command: command, Timeout: timeout, Output: out.String()}
		logger.Warn(timeoutErr.Error(), lg.Duration("elapsed", elapsed))
		return nil, timeoutErr
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			logger.Debug("command failed", lg.String("cmd", command), lg.Int("exit_code", exitErr.ExitCode()))
			return nil, &ExitError{Command: command, ExitCode: exitErr.ExitCode(), Output: out.String()}
		}
		return nil, fmt.Errorf("command '%s': %w", command, err)
	}

	logger.Debug("command finished", lg.String("cmd", command), lg.Duration("elapsed", elapsed))
	return &Result{Command: command, Output: out.String(), Duration: elapsed}, nil
}

func (e *Local) shell() string {
	if e.Shell == "" {
		return defaultShell
	}
	return e.Shell
}

func (e *Local) grace() time.Duration {
	if e.KillGrace <= 0 {
		return DefaultKillGrace
	}
	return e.KillGrace
}
