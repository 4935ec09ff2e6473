package checks

import (
	"context"
	"errors"
	"testing"

	"github.com/andrej220/nexcheck/pkg/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRSFMove(t *testing.T) {
	disc := newDiscovery(t, map[string]string{
		"/rsf/clusters": `{"data":[{"clusterName":"ha1",
			"nodes":[{"machineName":"nexenta1"},{"machineName":"nexenta2"}],
			"services":[{"serviceName":"tank"},{"serviceName":"pool2"}]}]}`,
	})
	transport := &fakeTransport{
		pollsLeft: 2,
		submitErr: map[string]error{"rsf/clusters/ha1/services/pool2/move": errors.New("service is busy")},
	}
	c := New(nil, transport, disc, fastPoller(), Options{})

	results, err := c.RSFMove(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, ServiceMoveResult{Name: "tank", Status: Status{Success: true}, From: "nexenta1", To: "nexenta2"}, results[0])
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Error, "service is busy")

	require.Len(t, transport.requests, 2)
	assert.Equal(t, "POST", transport.requests[0].Method)
	assert.Equal(t, map[string]string{"fromNode": "nexenta1", "toNode": "nexenta2"}, transport.requests[0].Payload)
}

func TestRSFMove_Local(t *testing.T) {
	disc := newDiscovery(t, map[string]string{
		"/rsf/clusters": `{"data":[{"clusterName":"ha1",
			"nodes":[{"machineName":"nexenta2"},{"machineName":"nexenta1"}],
			"services":[{"serviceName":"tank"}]}]}`,
	})
	c := New(nil, &fakeTransport{}, disc, fastPoller(), Options{})

	results, err := c.RSFMove(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "nexenta2", results[0].From)
	assert.Equal(t, "nexenta1", results[0].To)
}

func TestRSFMove_NotClustered(t *testing.T) {
	disc := newDiscovery(t, map[string]string{"/rsf/clusters": `{"data":[]}`})
	c := New(nil, &fakeTransport{}, disc, fastPoller(), Options{})
	_, err := c.RSFMove(context.Background(), true)
	assert.Error(t, err)
}

func TestZpoolStatus(t *testing.T) {
	disc := newDiscovery(t, map[string]string{
		"/storage/pools": `{"data":[{"poolName":"rpool","health":"ONLINE"},{"poolName":"tank","health":"DEGRADED"}]}`,
	})
	c := New(nil, nil, disc, nil, Options{})

	results, err := c.ZpoolStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []PoolResult{
		{Pool: "rpool", Status: Status{Success: true}, Health: "ONLINE"},
		{Pool: "tank", Status: Status{Error: "pool health is DEGRADED"}, Health: "DEGRADED"},
	}, results)
}

func TestPost(t *testing.T) {
	transport := &fakeTransport{pollsLeft: 1}
	c := New(nil, transport, nil, fastPoller(), Options{})

	res := c.Post(context.Background(), "storage/pools/tank/scrub", nil)
	assert.True(t, res.Success)
	assert.Equal(t, "job-storage/pools/tank/scrub", res.JobID)

	transport.submitErr = map[string]error{"storage/pools/x/scrub": errors.New("404 Not Found")}
	res = c.Post(context.Background(), "storage/pools/x/scrub", map[string]any{"force": true})
	assert.False(t, res.Success)
	assert.Equal(t, "submit POST storage/pools/x/scrub: 404 Not Found", res.Error)
}

var _ jobs.Transport = (*fakeTransport)(nil)
