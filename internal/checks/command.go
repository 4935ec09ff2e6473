package checks

import (
	"context"
	"errors"
	"time"

	"github.com/andrej220/nexcheck/internal/lg"
	"github.com/andrej220/nexcheck/pkg/executor"
)

type CommandResult struct {
	Status  `bson:",inline"`
	Command string `json:"command" bson:"command"`
}

// Command succeeds when cmd exits 0 within timeout. A zero timeout waits
// indefinitely.
func (c *Checker) Command(ctx context.Context, cmd string, timeout time.Duration) CommandResult {
	logger := lg.FromContext(ctx)
	logger.Debug("running command check", lg.String("cmd", cmd))

	res := CommandResult{Command: cmd, Status: ok()}
	if _, err := c.Exec.Execute(ctx, cmd, timeout); err != nil {
		res.Status = commandFailure(ctx, err)
	}
	return res
}

// commandFailure maps an executor failure to a check status. A non-zero
// exit reports the command output.
func commandFailure(ctx context.Context, err error) Status {
	logger := lg.FromContext(ctx)
	var exitErr *executor.ExitError
	if errors.As(err, &exitErr) {
		logger.Error("command failed", lg.Int("exit_code", exitErr.ExitCode))
		logger.Debug(exitErr.Output)
		return failed(exitErr.Output)
	}
	logger.Error("command failed", lg.Err(err))
	return failed(err.Error())
}
