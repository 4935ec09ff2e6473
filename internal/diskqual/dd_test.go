package diskqual

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/andrej220/nexcheck/pkg/executor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const solarisOutput = `1024+0 records in
1024+0 records out
33554432 bytes transferred in 2.000000 secs (16777216 bytes/sec)
`

const gnuOutput = `3201+0 records in
3200+0 records out
104857600 bytes (105 MB, 100 MiB) copied, 4 s, 26.2 MB/s
`

// scriptedExec answers commands by prefix.
type scriptedExec struct {
	mu       sync.Mutex
	commands []string
	answer   func(cmd string, timeout time.Duration) (*executor.Result, error)
}

func (s *scriptedExec) Execute(_ context.Context, cmd string, timeout time.Duration) (*executor.Result, error) {
	s.mu.Lock()
	s.commands = append(s.commands, cmd)
	s.mu.Unlock()
	return s.answer(cmd, timeout)
}

func TestParseThroughput(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    float64
		wantErr bool
	}{
		{name: "solaris summary", output: solarisOutput, want: 16},
		{name: "gnu summary", output: gnuOutput, want: 25},
		{name: "gnu exponent duration", output: "1048576 bytes (1.0 MB, 1.0 MiB) copied, 2.5e-05 s, 42 GB/s\n", want: 40000},
		{name: "no summary", output: "dd: /dev/rdsk/c9s0: No such file or directory\n", wantErr: true},
		{name: "zero seconds", output: "512 bytes transferred in 0 secs (0 bytes/sec)", wantErr: true},
		{name: "empty", output: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseThroughput(tt.output)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0.0001)
		})
	}
}

func TestReadProbe_DevicePath(t *testing.T) {
	p := &ReadProbe{}
	assert.Equal(t, "/dev/rdsk/c0t5000C500A1B2C3D4d0s0", p.DevicePath("c0t5000C500A1B2C3D4d0"))

	p.DevicePathFormat = "/dev/%s"
	assert.Equal(t, "/dev/sdb", p.DevicePath("sdb"))
}

func TestReadProbe_InterruptedRun(t *testing.T) {
	exec := &scriptedExec{answer: func(cmd string, timeout time.Duration) (*executor.Result, error) {
		if strings.HasPrefix(cmd, "test -x") {
			return &executor.Result{Command: cmd}, nil
		}
		return nil, &executor.TimeoutError{Command: cmd, Timeout: timeout, Output: solarisOutput}
	}}
	p := &ReadProbe{Exec: exec}

	tput, err := p.Measure(context.Background(), Task{DeviceID: "c0t1d0", BlockSizeKB: 64, Duration: 3 * time.Second})
	require.NoError(t, err)
	assert.InDelta(t, 16.0, tput, 0.0001)

	require.Len(t, exec.commands, 2)
	assert.Equal(t, "/usr/gnu/bin/dd if=/dev/rdsk/c0t1d0s0 of=/dev/null bs=64K", exec.commands[1])
}

func TestReadProbe_CompletedRun(t *testing.T) {
	exec := &scriptedExec{answer: func(cmd string, _ time.Duration) (*executor.Result, error) {
		return &executor.Result{Command: cmd, Output: gnuOutput}, nil
	}}
	p := &ReadProbe{Exec: exec, DDPath: "/bin/dd"}

	tput, err := p.Measure(context.Background(), Task{DeviceID: "sdb"})
	require.NoError(t, err)
	assert.InDelta(t, 25.0, tput, 0.0001)
	assert.Contains(t, exec.commands[1], "bs=32K")
}

func TestReadProbe_MissingDD(t *testing.T) {
	exec := &scriptedExec{answer: func(cmd string, _ time.Duration) (*executor.Result, error) {
		return nil, &executor.ExitError{Command: cmd, ExitCode: 1}
	}}
	p := &ReadProbe{Exec: exec}

	_, err := p.Measure(context.Background(), Task{DeviceID: "c0t1d0"})
	assert.EqualError(t, err, "'/usr/gnu/bin/dd' does not exist")
	assert.Len(t, exec.commands, 1)
}

func TestReadProbe_DDFails(t *testing.T) {
	exec := &scriptedExec{answer: func(cmd string, _ time.Duration) (*executor.Result, error) {
		if strings.HasPrefix(cmd, "test -x") {
			return &executor.Result{}, nil
		}
		return nil, &executor.ExitError{Command: cmd, ExitCode: 1, Output: "dd: I/O error\n"}
	}}
	p := &ReadProbe{Exec: exec}

	_, err := p.Measure(context.Background(), Task{DeviceID: "c0t1d0"})
	var exitErr *executor.ExitError
	assert.True(t, errors.As(err, &exitErr))
}
