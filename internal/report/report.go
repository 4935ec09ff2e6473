// Package report collects check results of one run and publishes them.
package report

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is implemented by every check result.
type Outcome interface {
	Succeeded() bool
}

// Entry is one check of a run. Error is set when the check could not run at
// all, for example because the appliance configuration was incomplete.
type Entry struct {
	Check   string  `json:"check" bson:"check"`
	Success bool    `json:"success" bson:"success"`
	Error   string  `json:"error,omitempty" bson:"error,omitempty"`
	Seconds float64 `json:"seconds" bson:"seconds"`
	Results any     `json:"results,omitempty" bson:"results,omitempty"`
}

type Report struct {
	ID       string    `json:"id" bson:"_id"`
	Host     string    `json:"host" bson:"host"`
	Started  time.Time `json:"started" bson:"started"`
	Finished time.Time `json:"finished" bson:"finished"`
	Success  bool      `json:"success" bson:"success"`
	Entries  []Entry   `json:"entries" bson:"entries"`
}

func New(host string) *Report {
	return &Report{
		ID:      uuid.NewString(),
		Host:    host,
		Started: time.Now().UTC(),
		Entries: []Entry{},
	}
}

// Record adds a check that started at start. The entry succeeds when err is
// nil and every result succeeded.
func Record[T Outcome](r *Report, check string, start time.Time, err error, results ...T) Entry {
	e := Entry{
		Check:   check,
		Success: err == nil,
		Seconds: time.Since(start).Seconds(),
	}
	if err != nil {
		e.Error = err.Error()
	}
	for _, res := range results {
		if !res.Succeeded() {
			e.Success = false
		}
	}
	if len(results) > 0 {
		e.Results = results
	}
	r.Entries = append(r.Entries, e)
	return e
}

// Finish stamps the end time and the overall verdict.
func (r *Report) Finish() {
	r.Finished = time.Now().UTC()
	r.Success = true
	for _, e := range r.Entries {
		if !e.Success {
			r.Success = false
			return
		}
	}
}

// Failed returns the names of the checks that did not succeed.
func (r *Report) Failed() []string {
	var failed []string
	for _, e := range r.Entries {
		if !e.Success {
			failed = append(failed, e.Check)
		}
	}
	return failed
}
