package checks

import (
	"context"
	"net/http"

	"github.com/andrej220/nexcheck/internal/lg"
	"github.com/andrej220/nexcheck/pkg/jobs"
)

const poolOnline = "ONLINE"

type PoolResult struct {
	Status `bson:",inline"`
	Pool   string `json:"pool" bson:"pool"`
	Health string `json:"health" bson:"health"`
}

// ZpoolStatus reports every pool and fails those that are not ONLINE.
func (c *Checker) ZpoolStatus(ctx context.Context) ([]PoolResult, error) {
	pools, err := c.Discovery.Pools(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]PoolResult, 0, len(pools))
	for _, p := range pools {
		r := PoolResult{Pool: p.Name, Health: p.Health, Status: ok()}
		if p.Health != poolOnline {
			lg.FromContext(ctx).Error("pool is not healthy", lg.String("pool", p.Name), lg.String("health", p.Health))
			r.Status = failed("pool health is " + p.Health)
		}
		results = append(results, r)
	}
	return results, nil
}

type PostResult struct {
	Status `bson:",inline"`
	Method string `json:"method" bson:"method"`
	JobID  string `json:"jobId,omitempty" bson:"jobId,omitempty"`
}

// Post sends a POST request and waits for the job it starts, if any.
func (c *Checker) Post(ctx context.Context, method string, payload any) PostResult {
	res := PostResult{Method: method}
	out, err := c.Poller.SubmitAndWait(ctx, c.Transport, jobs.Request{Method: http.MethodPost, Path: method, Payload: payload})
	if err != nil {
		lg.FromContext(ctx).Error("request failed", lg.String("method", method), lg.Err(err))
		res.Status = failed(err.Error())
		return res
	}
	res.Status = ok()
	res.JobID = out.JobID
	return res
}
