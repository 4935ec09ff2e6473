package checks

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/andrej220/nexcheck/internal/lg"
	"github.com/miekg/dns"
)

const resolvConf = "/etc/resolv.conf"

type LookupResult struct {
	Status    `bson:",inline"`
	Name      string   `json:"name" bson:"name"`
	Server    string   `json:"server,omitempty" bson:"server,omitempty"`
	Addresses []string `json:"addresses,omitempty" bson:"addresses,omitempty"`
}

// DNSLookup resolves name to IPv4 addresses. The nameservers are asked in
// order and the first one that answers wins.
func (c *Checker) DNSLookup(ctx context.Context, name string) LookupResult {
	logger := lg.FromContext(ctx).With(lg.String("name", name))
	logger.Debug("attempting DNS resolution")

	res := LookupResult{Name: name}
	servers, err := c.lookupServers(ctx)
	if err != nil {
		res.Status = failed(err.Error())
		return res
	}

	client := &dns.Client{Timeout: orDefault(c.Options.LookupTimeout, DefaultLookupTimeout)}
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), dns.TypeA)

	var errs []error
	for _, server := range servers {
		addrs, err := query(ctx, client, msg, server)
		if err != nil {
			logger.Debug("lookup failed", lg.String("server", server), lg.Err(err))
			errs = append(errs, fmt.Errorf("%s: %w", server, err))
			continue
		}
		res.Status = ok()
		res.Server = server
		res.Addresses = addrs
		return res
	}
	err = errors.Join(errs...)
	logger.Error("failed to resolve", lg.Err(err))
	res.Status = failed(err.Error())
	return res
}

func query(ctx context.Context, client *dns.Client, msg *dns.Msg, server string) ([]string, error) {
	resp, _, err := client.ExchangeContext(ctx, msg, server)
	if err != nil {
		return nil, err
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("%s", dns.RcodeToString[resp.Rcode])
	}
	var addrs []string
	for _, rr := range resp.Answer {
		if a, ok := rr.(*dns.A); ok {
			addrs = append(addrs, a.A.String())
		}
	}
	if len(addrs) == 0 {
		return nil, errors.New("no A records in answer")
	}
	return addrs, nil
}

// lookupServers returns host:port pairs from the options, the appliance, or
// the local resolver configuration, in that order of preference.
func (c *Checker) lookupServers(ctx context.Context) ([]string, error) {
	servers := c.Options.Nameservers
	port := "53"
	if len(servers) == 0 && c.Discovery != nil {
		if discovered, err := c.Discovery.Nameservers(ctx); err == nil {
			servers = discovered
		} else {
			lg.FromContext(ctx).Warn("falling back to local resolver configuration", lg.Err(err))
		}
	}
	if len(servers) == 0 {
		conf, err := dns.ClientConfigFromFile(resolvConf)
		if err != nil {
			return nil, fmt.Errorf("no nameservers available: %w", err)
		}
		servers, port = conf.Servers, conf.Port
	}
	out := make([]string, 0, len(servers))
	for _, s := range servers {
		if _, _, err := net.SplitHostPort(s); err == nil {
			out = append(out, s)
			continue
		}
		out = append(out, net.JoinHostPort(s, port))
	}
	return out, nil
}
