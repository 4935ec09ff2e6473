package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/andrej220/nexcheck/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sliceSource struct {
	reports []report.Report
	err     error
}

func (s *sliceSource) Read(context.Context) (report.Report, error) {
	if len(s.reports) == 0 {
		return report.Report{}, s.err
	}
	r := s.reports[0]
	s.reports = s.reports[1:]
	return r, nil
}

func TestTailReports(t *testing.T) {
	finished := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	src := &sliceSource{reports: []report.Report{
		{ID: "r1", Host: "nexenta1", Finished: finished, Success: true},
		{ID: "r2", Host: "nexenta2", Finished: finished, Entries: []report.Entry{
			{Check: "zpool"}, {Check: "metadata", Success: true}, {Check: "dns"},
		}},
	}}

	var out bytes.Buffer
	require.NoError(t, tailReports(context.Background(), src, &out, 2))
	assert.Equal(t,
		"2026-10-01T12:00:00Z\tnexenta1\tr1\tok\n"+
			"2026-10-01T12:00:00Z\tnexenta2\tr2\tFAILED zpool,dns\n",
		out.String())
}

func TestTailReports_StopsOnCancel(t *testing.T) {
	src := &sliceSource{err: context.Canceled}
	assert.NoError(t, tailReports(context.Background(), src, &bytes.Buffer{}, 0))

	src = &sliceSource{err: errors.New("broker down")}
	assert.ErrorContains(t, tailReports(context.Background(), src, &bytes.Buffer{}, 1), "broker down")
}
