package executor

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

type fakeSession struct {
	out      io.Writer
	output   string
	waitErr  error
	hang     bool
	startErr error

	mu       sync.Mutex
	signals  []ssh.Signal
	closed   bool
	released chan struct{}
}

func (s *fakeSession) Start(cmd string) error {
	if s.startErr != nil {
		return s.startErr
	}
	_, _ = io.WriteString(s.out, s.output)
	return nil
}

func (s *fakeSession) Wait() error {
	if s.hang {
		<-s.released
	}
	return s.waitErr
}

func (s *fakeSession) Signal(sig ssh.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals = append(s.signals, sig)
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed && s.released != nil {
		close(s.released)
	}
	s.closed = true
	return nil
}

type fakeOpener struct {
	sess *fakeSession
	err  error
}

func (o *fakeOpener) openSession(_ context.Context, out io.Writer) (remoteSession, error) {
	if o.err != nil {
		return nil, o.err
	}
	o.sess.out = out
	return o.sess, nil
}

func TestSSH_Success(t *testing.T) {
	e := &SSH{client: &fakeOpener{sess: &fakeSession{output: "ok\n"}}}
	res, err := e.Execute(context.Background(), "zpool list", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ok\n", res.Output)
}

func TestSSH_NonZeroExitFromMissingStatus(t *testing.T) {
	e := &SSH{client: &fakeOpener{sess: &fakeSession{output: "boom\n", waitErr: &ssh.ExitMissingError{}}}}
	_, err := e.Execute(context.Background(), "false", time.Second)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, -1, exitErr.ExitCode)
	assert.Equal(t, "boom\n", exitErr.Output)
}

func TestSSH_SessionFailureIsSpawnError(t *testing.T) {
	e := &SSH{client: &fakeOpener{err: errors.New("circuit breaker is open")}}
	_, err := e.Execute(context.Background(), "true", time.Second)

	var spawnErr *SpawnError
	require.True(t, errors.As(err, &spawnErr))
}

func TestSSH_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := &SSH{client: &fakeOpener{sess: &fakeSession{output: "ok\n"}}}
	_, err := e.Execute(ctx, "true", 0)
	assert.ErrorIs(t, err, context.Canceled)

	var spawnErr *SpawnError
	assert.False(t, errors.As(err, &spawnErr))
}

func TestSSH_Timeout(t *testing.T) {
	sess := &fakeSession{output: "partial", hang: true, released: make(chan struct{})}
	e := &SSH{client: &fakeOpener{sess: sess}, KillGrace: 50 * time.Millisecond}

	_, err := e.Execute(context.Background(), "sleep 60", 100*time.Millisecond)

	var timeoutErr *TimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, "partial", timeoutErr.Output)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	assert.Equal(t, []ssh.Signal{ssh.SIGINT}, sess.signals)
	assert.True(t, sess.closed)
}
