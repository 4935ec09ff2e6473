//go:build unix

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/andrej220/nexcheck/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakePing = `echo 'rtt min/avg/max/mdev = 0.1/0.2/0.3/0.04 ms' %s`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), CONFIGFILENAME)
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

// execute runs the CLI and decodes the report it prints.
func execute(t *testing.T, args ...string) (*report.Report, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetArgs(append(args, "--log-format", "console"))
	root.SetErr(&bytes.Buffer{})
	err := root.Execute()

	if out.Len() == 0 {
		return nil, err
	}
	var rep report.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &rep))
	return &rep, err
}

func TestCommand_Success(t *testing.T) {
	cfg := writeConfig(t, "hostname: nexenta1\n")
	reportPath := filepath.Join(t.TempDir(), "report.json")

	rep, err := execute(t, "cmd", "echo hello", "--config", cfg, "--report", reportPath)
	require.NoError(t, err)
	require.NotNil(t, rep)
	assert.True(t, rep.Success)
	assert.Equal(t, "nexenta1", rep.Host)
	require.Len(t, rep.Entries, 1)
	assert.Equal(t, "cmd", rep.Entries[0].Check)

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var saved report.Report
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, rep.ID, saved.ID)
}

func TestCommand_FailureExitsNonZero(t *testing.T) {
	cfg := writeConfig(t, "hostname: nexenta1\n")

	rep, err := execute(t, "cmd", "echo broken; exit 3", "--config", cfg)
	assert.True(t, errors.Is(err, ErrChecksFailed))
	require.NotNil(t, rep)
	assert.False(t, rep.Success)
	assert.Equal(t, []string{"cmd"}, rep.Failed())
}

func TestCommand_Timeout(t *testing.T) {
	cfg := writeConfig(t, "executor:\n  killGrace: 1s\n")

	rep, err := execute(t, "cmd", "sleep 5", "--timeout", "200ms", "--config", cfg)
	assert.ErrorIs(t, err, ErrChecksFailed)
	require.NotNil(t, rep)
	assert.False(t, rep.Entries[0].Success)
}

func TestPing_ConfiguredCommand(t *testing.T) {
	cfg := writeConfig(t, "checks:\n  pingCommand: \""+fakePing+"\"\n")

	rep, err := execute(t, "ping", "10.0.0.1", "--config", cfg)
	require.NoError(t, err)
	require.Len(t, rep.Entries, 1)

	results, ok := rep.Entries[0].Results.([]any)
	require.True(t, ok)
	first := results[0].(map[string]any)
	assert.Equal(t, "10.0.0.1", first["host"])
	assert.Equal(t, "0.2", first["p_avg"])
}

func TestZpool_ThroughAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/storage/pools" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"poolName":"rpool","health":"ONLINE"},{"poolName":"tank","health":"FAULTED"}]}`))
	}))
	defer srv.Close()

	cfg := writeConfig(t, "api:\n  url: "+srv.URL+"\n")
	rep, err := execute(t, "zpool", "--config", cfg)
	assert.ErrorIs(t, err, ErrChecksFailed)
	require.NotNil(t, rep)
	assert.Equal(t, []string{"zpool"}, rep.Failed())
}

func TestAPIRequired(t *testing.T) {
	cfg := writeConfig(t, "hostname: nexenta1\n")
	rep, err := execute(t, "zpool", "--config", cfg)
	assert.ErrorIs(t, err, errNoAPI)
	assert.Nil(t, rep)
}

func TestConfigValidation(t *testing.T) {
	cfg := writeConfig(t, "executor:\n  mode: telnet\n")
	_, err := execute(t, "cmd", "true", "--config", cfg)
	assert.ErrorContains(t, err, "invalid configuration")

	cfg = writeConfig(t, "executor:\n  mode: ssh\n")
	_, err = execute(t, "cmd", "true", "--config", cfg)
	assert.ErrorContains(t, err, "invalid configuration", "ssh mode requires ssh settings")

	_, err = execute(t, "cmd", "true", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "an explicit config path must exist")
}

func TestDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, "local", cfg.Executor.Mode)
	assert.Equal(t, 8, cfg.DiskPerf.Workers)
	assert.Equal(t, 32, cfg.DiskPerf.BlockSizeKB)
	assert.Equal(t, "/dev/rdsk/%ss0", cfg.DiskPerf.DevicePathFormat)
	assert.Equal(t, defaultMaxWait, cfg.Jobs.MaxWait)
}
