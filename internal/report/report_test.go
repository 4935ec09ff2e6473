package report

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outcome bool

func (o outcome) Succeeded() bool { return bool(o) }

func TestRecord(t *testing.T) {
	r := New("nexenta1")
	_, err := uuid.Parse(r.ID)
	require.NoError(t, err)

	start := time.Now()
	e := Record(r, "ping", start, nil, outcome(true))
	assert.True(t, e.Success)
	assert.Equal(t, []outcome{true}, e.Results)

	e = Record(r, "dns-ping", start, nil, outcome(true), outcome(false))
	assert.False(t, e.Success)

	e = Record[outcome](r, "domain", start, errors.New("appliance is not in domain mode"))
	assert.False(t, e.Success)
	assert.Equal(t, "appliance is not in domain mode", e.Error)
	assert.Nil(t, e.Results)

	r.Finish()
	assert.False(t, r.Success)
	assert.Equal(t, []string{"dns-ping", "domain"}, r.Failed())
	assert.False(t, r.Finished.Before(r.Started))
}

func TestFinish_AllPassed(t *testing.T) {
	r := New("nexenta1")
	Record(r, "zpool", time.Now(), nil, outcome(true), outcome(true))
	r.Finish()
	assert.True(t, r.Success)
	assert.Empty(t, r.Failed())
}
