//go:build unix

package executor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_Success(t *testing.T) {
	res, err := NewLocal().Execute(context.Background(), "echo hello", 0)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", res.Output)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "echo hello", res.Command)
}

func TestLocal_MergedOutputOrder(t *testing.T) {
	res, err := NewLocal().Execute(context.Background(), "echo out1; echo err1 1>&2; echo out2", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "out1\nerr1\nout2\n", res.Output)
}

func TestLocal_NonZeroExit(t *testing.T) {
	_, err := NewLocal().Execute(context.Background(), "echo broken; exit 3", 5*time.Second)
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "expected *ExitError, got %T", err)
	assert.Equal(t, 3, exitErr.ExitCode)
	assert.Equal(t, "broken\n", exitErr.Output)
	assert.False(t, IsTimeout(err))
	assert.Equal(t, "broken\n", Output(err))
}

func TestLocal_Timeout(t *testing.T) {
	start := time.Now()
	_, err := NewLocal().Execute(context.Background(), "sleep 2", 1*time.Second)
	elapsed := time.Since(start)

	require.Error(t, err)
	var timeoutErr *TimeoutError
	require.True(t, errors.As(err, &timeoutErr), "expected *TimeoutError, got %T", err)
	assert.Equal(t, time.Second, timeoutErr.Timeout)
	assert.GreaterOrEqual(t, elapsed, time.Second)
	assert.Less(t, elapsed, 1500*time.Millisecond)
}

func TestLocal_TimeoutKeepsPartialOutput(t *testing.T) {
	_, err := NewLocal().Execute(context.Background(), "echo started; sleep 5", 300*time.Millisecond)
	require.True(t, IsTimeout(err))
	assert.Equal(t, "started\n", Output(err))
}

func TestLocal_TimeoutOutputOnInterrupt(t *testing.T) {
	// the command reports on SIGINT the way dd prints its summary
	cmd := `trap 'echo "interrupted"; exit 130' INT; while :; do sleep 0.05; done`
	_, err := NewLocal().Execute(context.Background(), cmd, 300*time.Millisecond)
	require.True(t, IsTimeout(err))
	assert.Contains(t, Output(err), "interrupted")
}

func TestLocal_EscalatesToKill(t *testing.T) {
	exec := &Local{KillGrace: 200 * time.Millisecond}
	start := time.Now()
	_, err := exec.Execute(context.Background(), `trap '' INT; sleep 3`, 200*time.Millisecond)
	require.True(t, IsTimeout(err))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestLocal_FinishesBeforeDeadline(t *testing.T) {
	res, err := NewLocal().Execute(context.Background(), "true", 2*time.Second)
	require.NoError(t, err)
	assert.Empty(t, res.Output)
}

func TestLocal_SpawnError(t *testing.T) {
	exec := &Local{Shell: "/nonexistent/shell"}
	_, err := exec.Execute(context.Background(), "true", 0)
	require.Error(t, err)

	var spawnErr *SpawnError
	require.True(t, errors.As(err, &spawnErr), "expected *SpawnError, got %T", err)
	assert.Contains(t, err.Error(), "could not be started")
}

func TestLocal_CallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	_, err := NewLocal().Execute(ctx, "sleep 5", 10*time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsTimeout(err))
}

func TestLocal_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLocal().Execute(ctx, "true", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	var spawnErr *SpawnError
	assert.False(t, errors.As(err, &spawnErr), "cancellation reported as %T", err)
	assert.False(t, IsTimeout(err))
}

func TestLocal_DeadlineExpiredBeforeStart(t *testing.T) {
	_, err := NewLocal().Execute(context.Background(), "sleep 1", time.Nanosecond)
	require.Error(t, err)
	assert.True(t, IsTimeout(err), "expected *TimeoutError, got %T: %v", err, err)

	var spawnErr *SpawnError
	assert.False(t, errors.As(err, &spawnErr))
}

func TestLocal_TimeoutDoesNotWaitForBackgroundChildren(t *testing.T) {
	// sh runs background jobs with SIGINT ignored
	start := time.Now()
	_, err := NewLocal().Execute(context.Background(), "sleep 30 & wait", 300*time.Millisecond)
	require.True(t, IsTimeout(err), "expected *TimeoutError, got %T: %v", err, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestLocal_SuccessDoesNotWaitForBackgroundChildren(t *testing.T) {
	start := time.Now()
	res, err := NewLocal().Execute(context.Background(), "echo spawned; sleep 30 &", 0)
	require.NoError(t, err)
	assert.Equal(t, "spawned\n", res.Output)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "command 'exit 3' returned non-zero exit status 3",
		(&ExitError{Command: "exit 3", ExitCode: 3}).Error())
	assert.True(t, strings.HasPrefix((&TimeoutError{Command: "sleep 2", Timeout: time.Second}).Error(),
		"command 'sleep 2' timed out after 1s"))
	assert.Empty(t, Output(errors.New("other")))
}
