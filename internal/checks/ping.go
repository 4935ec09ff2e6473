package checks

import (
	"context"
	"fmt"
	"strings"

	"github.com/andrej220/nexcheck/internal/lg"
	"github.com/andrej220/nexcheck/internal/processor"
	"github.com/kballard/go-shellquote"
)

type PingResult struct {
	Status `bson:",inline"`
	Host   string `json:"host" bson:"host"`
	Min    string `json:"p_min,omitempty" bson:"p_min,omitempty"`
	Avg    string `json:"p_avg,omitempty" bson:"p_avg,omitempty"`
	Max    string `json:"p_max,omitempty" bson:"p_max,omitempty"`
	StdDev string `json:"p_stddev,omitempty" bson:"p_stddev,omitempty"`
}

// Ping checks that host answers and records round trip statistics.
func (c *Checker) Ping(ctx context.Context, host string) PingResult {
	logger := lg.FromContext(ctx).With(lg.String("host", host))
	pattern := c.Options.PingCommand
	if pattern == "" {
		pattern = DefaultPingCommand
	}
	cmd := fmt.Sprintf(pattern, shellquote.Join(host))

	res := PingResult{Host: host}
	out, err := c.Exec.Execute(ctx, cmd, orDefault(c.Options.PingTimeout, DefaultPingTimeout))
	if err != nil {
		logger.Error("host is not alive", lg.Err(err))
		res.Status = commandFailure(ctx, err)
		return res
	}
	logger.Debug("host is alive")

	stats, err := c.parsePingStats(out.Output)
	if err != nil {
		logger.Error("unexpected ping output", lg.Err(err))
		res.Status = failed(err.Error())
		return res
	}
	res.Status = ok()
	res.Min, res.Avg, res.Max, res.StdDev = stats[0], stats[1], stats[2], stats[3]
	return res
}

// parsePingStats reads min/avg/max/stddev from the summary line, in either
// "round-trip (ms)  min/avg/max/stddev = a/b/c/d" or
// "rtt min/avg/max/mdev = a/b/c/d ms" form.
func (c *Checker) parsePingStats(output string) ([]string, error) {
	lines, err := c.processors().ProcessOutput(output,
		processor.ProcessorTypeTrim, processor.ProcessorTypeDropEmpty, processor.ProcessorTypeLastLine)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("empty ping output")
	}
	_, values, found := strings.Cut(lines[0], "=")
	fields := strings.Fields(values)
	if !found || len(fields) == 0 {
		return nil, fmt.Errorf("no round trip summary in %q", lines[0])
	}
	stats := strings.Split(fields[0], "/")
	if len(stats) != 4 {
		return nil, fmt.Errorf("no round trip summary in %q", lines[0])
	}
	return stats, nil
}

func (c *Checker) GatewayPing(ctx context.Context) (PingResult, error) {
	gw, err := c.Discovery.Gateway(ctx)
	if err != nil {
		return PingResult{}, err
	}
	return c.Ping(ctx, gw), nil
}

// DNSPing pings every configured nameserver.
func (c *Checker) DNSPing(ctx context.Context) ([]PingResult, error) {
	servers, err := c.Discovery.Nameservers(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]PingResult, 0, len(servers))
	for _, ns := range servers {
		results = append(results, c.Ping(ctx, ns))
	}
	return results, nil
}

// DomainPing pings the domain controller the appliance is joined to.
func (c *Checker) DomainPing(ctx context.Context) (PingResult, error) {
	dc, err := c.Discovery.Domain(ctx)
	if err != nil {
		return PingResult{}, err
	}
	return c.Ping(ctx, dc), nil
}
