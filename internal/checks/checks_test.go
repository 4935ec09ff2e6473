package checks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/andrej220/nexcheck/internal/discovery"
	"github.com/andrej220/nexcheck/pkg/executor"
	"github.com/andrej220/nexcheck/pkg/jobs"
	"github.com/andrej220/nexcheck/pkg/nef"
	"github.com/stretchr/testify/require"
)

type reply struct {
	output string
	err    error
}

// fakeExec answers by the first matching command prefix. Unknown commands
// fail to spawn.
type fakeExec struct {
	mu       sync.Mutex
	replies  map[string]reply
	commands []string
}

func (f *fakeExec) Execute(_ context.Context, cmd string, _ time.Duration) (*executor.Result, error) {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	f.mu.Unlock()
	for prefix, r := range f.replies {
		if strings.HasPrefix(cmd, prefix) {
			if r.err != nil {
				return nil, r.err
			}
			return &executor.Result{Command: cmd, Output: r.output}, nil
		}
	}
	return nil, &executor.SpawnError{Command: cmd, Err: errors.New("unexpected command")}
}

// fakeTransport completes a job after a fixed number of polls.
type fakeTransport struct {
	mu        sync.Mutex
	requests  []jobs.Request
	submitErr map[string]error
	pollsLeft int
}

func (f *fakeTransport) Submit(_ context.Context, req jobs.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if err := f.submitErr[req.Path]; err != nil {
		return "", err
	}
	return "job-" + req.Path, nil
}

func (f *fakeTransport) JobStatus(_ context.Context, _ string) (jobs.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pollsLeft > 0 {
		f.pollsLeft--
		return jobs.Status{Progress: 50}, nil
	}
	return jobs.Status{Progress: 100, Done: true}, nil
}

// newDiscovery serves canned appliance responses keyed by path.
func newDiscovery(t *testing.T, bodies map[string]string) *discovery.Discovery {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := bodies[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	client, err := nef.New(context.Background(), nef.Config{URL: srv.URL})
	require.NoError(t, err)
	d := discovery.New(client)
	d.Host = "nexenta1"
	return d
}

func fastPoller() *jobs.Poller {
	return &jobs.Poller{Interval: time.Millisecond}
}
