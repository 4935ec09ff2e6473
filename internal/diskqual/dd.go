// Package diskqual qualifies disk read throughput with dd.
package diskqual

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/andrej220/nexcheck/internal/lg"
	"github.com/andrej220/nexcheck/pkg/executor"
	"github.com/kballard/go-shellquote"
)

const (
	DefaultDDPath           = "/usr/gnu/bin/dd"
	DefaultDevicePathFormat = "/dev/rdsk/%ss0"
	DefaultBlockSizeKB      = 32
	DefaultDuration         = 5 * time.Second

	bytesPerMB = 1024 * 1024
)

var (
	// 10485760 bytes transferred in 0.5 secs (20971520 bytes/sec)
	solarisSummary = regexp.MustCompile(`^(\d+) bytes transferred in ([0-9.]+) secs`)
	// 10485760 bytes (10 MB, 10 MiB) copied, 0.5 s, 21.0 MB/s
	// 1048576 bytes (1.0 MB, 1.0 MiB) copied, 2.5e-05 s, 42 GB/s
	gnuSummary = regexp.MustCompile(`^(\d+) bytes .*copied, ([0-9.eE+-]+) s`)

	ErrNoSummary = errors.New("no dd summary line in output")
)

// ReadProbe measures sequential read throughput of a raw device by running
// dd for a fixed duration and interrupting it.
type ReadProbe struct {
	Exec             executor.Executor
	DDPath           string
	DevicePathFormat string // fmt pattern taking the device id
}

// DevicePath maps a device id to the raw path dd reads from.
func (p *ReadProbe) DevicePath(deviceID string) string {
	format := p.DevicePathFormat
	if format == "" {
		format = DefaultDevicePathFormat
	}
	return fmt.Sprintf(format, deviceID)
}

// Measure returns the throughput of task's device in MB/s.
func (p *ReadProbe) Measure(ctx context.Context, task Task) (float64, error) {
	dd := p.DDPath
	if dd == "" {
		dd = DefaultDDPath
	}
	if _, err := p.Exec.Execute(ctx, shellquote.Join("test", "-x", dd), 10*time.Second); err != nil {
		var exitErr *executor.ExitError
		if errors.As(err, &exitErr) {
			return 0, fmt.Errorf("'%s' does not exist", dd)
		}
		return 0, err
	}

	bs := task.BlockSizeKB
	if bs <= 0 {
		bs = DefaultBlockSizeKB
	}
	duration := task.Duration
	if duration <= 0 {
		duration = DefaultDuration
	}
	cmd := shellquote.Join(dd, "if="+p.DevicePath(task.DeviceID), "of=/dev/null", fmt.Sprintf("bs=%dK", bs))
	lg.FromContext(ctx).Debug("r_seq test", lg.String("disk", task.DeviceID), lg.String("cmd", cmd))

	// dd normally outlives the duration; the interrupt makes it print its
	// summary, so a timeout is the expected way for the run to end.
	var output string
	res, err := p.Exec.Execute(ctx, cmd, duration)
	switch {
	case err == nil:
		output = res.Output
	case executor.IsTimeout(err):
		output = executor.Output(err)
	default:
		return 0, err
	}
	return ParseThroughput(output)
}

// ParseThroughput extracts bytes and seconds from a dd summary and returns
// MB/s, where 1 MB is 1024*1024 bytes.
func ParseThroughput(output string) (float64, error) {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		m := solarisSummary.FindStringSubmatch(line)
		if m == nil {
			m = gnuSummary.FindStringSubmatch(line)
		}
		if m == nil {
			continue
		}
		size, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid byte count %q: %w", m[1], err)
		}
		secs, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", m[2], err)
		}
		if secs <= 0 {
			return 0, fmt.Errorf("dd reported a zero duration: %q", line)
		}
		return float64(size) / secs / bytesPerMB, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrNoSummary, strings.TrimSpace(output))
}
