package checks

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/andrej220/nexcheck/internal/lg"
	"github.com/andrej220/nexcheck/pkg/jobs"
)

type ServiceMoveResult struct {
	Status `bson:",inline"`
	Name   string `json:"name" bson:"name"`
	From   string `json:"fromNode" bson:"fromNode"`
	To     string `json:"toNode" bson:"toNode"`
}

// RSFMove moves every cluster service onto this node when local is true,
// or onto the partner node otherwise. Services are moved one at a time.
func (c *Checker) RSFMove(ctx context.Context, local bool) ([]ServiceMoveResult, error) {
	hostname, err := c.Discovery.Hostname(ctx)
	if err != nil {
		return nil, err
	}
	cluster, err := c.Discovery.Cluster(ctx)
	if err != nil {
		return nil, err
	}

	from, to := hostname, cluster.Partner
	if local {
		from, to = cluster.Partner, hostname
	}
	results := make([]ServiceMoveResult, 0, len(cluster.Services))
	for _, svc := range cluster.Services {
		results = append(results, c.moveService(ctx, cluster.Name, svc, from, to))
	}
	return results, nil
}

func (c *Checker) moveService(ctx context.Context, cluster, service, from, to string) ServiceMoveResult {
	logger := lg.FromContext(ctx).With(lg.String("service", service))
	logger.Info("moving cluster service", lg.String("to", to))

	req := jobs.Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("rsf/clusters/%s/services/%s/move", url.PathEscape(cluster), url.PathEscape(service)),
		Payload: map[string]string{
			"fromNode": from,
			"toNode":   to,
		},
	}
	res := ServiceMoveResult{Name: service, From: from, To: to}
	if _, err := c.Poller.SubmitAndWait(ctx, c.Transport, req); err != nil {
		logger.Error("failed to move cluster service", lg.Err(err))
		res.Status = failed(err.Error())
		return res
	}
	res.Status = ok()
	return res
}
