// Package discovery reads the appliance configuration the checks run
// against: network gateway, nameservers, domain, cluster, disks and pools.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/andrej220/nexcheck/internal/lg"
)

var (
	ErrNoGateway          = errors.New("no network gateway defined")
	ErrNoNameservers      = errors.New("no network nameservers defined")
	ErrNotInDomain        = errors.New("appliance is not in domain mode")
	ErrNoDomainController = errors.New("appliance is in domain mode but isn't connected to a DC")
	ErrNotClustered       = errors.New("the node is not part of a cluster")
	ErrNoPartner          = errors.New("no cluster partner node found")
	ErrNoClusterServices  = errors.New("there are no cluster services configured")
	ErrNoDisks            = errors.New("no disks discovered")
	ErrNoPools            = errors.New("no pools discovered")
)

// API is the part of the REST client discovery needs.
type API interface {
	Get(ctx context.Context, method string, params url.Values, out any) error
}

type Cluster struct {
	Name     string
	Partner  string
	Services []string
}

type Disk struct {
	LogicalDevice string `json:"logicalDevice"`
}

type Pool struct {
	Name   string `json:"poolName"`
	Health string `json:"health"`
}

type Discovery struct {
	API API
	// Host overrides the local hostname when set.
	Host string
}

func New(api API) *Discovery {
	return &Discovery{API: api}
}

type listBody[T any] struct {
	Data []T `json:"data"`
}

func (d *Discovery) Hostname(ctx context.Context) (string, error) {
	if d.Host != "" {
		return d.Host, nil
	}
	h, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("failed to determine appliance hostname: %w", err)
	}
	lg.FromContext(ctx).Debug("appliance hostname", lg.String("hostname", h))
	return h, nil
}

// Gateway returns the default route's gateway.
func (d *Discovery) Gateway(ctx context.Context) (string, error) {
	var body listBody[struct {
		Gateway string `json:"gateway"`
	}]
	if err := d.API.Get(ctx, "network/routes", url.Values{"destination": {"default"}}, &body); err != nil {
		return "", fmt.Errorf("failed to determine network gateway: %w", err)
	}
	if len(body.Data) == 0 || body.Data[0].Gateway == "" {
		return "", ErrNoGateway
	}
	gw := body.Data[0].Gateway
	lg.FromContext(ctx).Debug("network gateway", lg.String("gateway", gw))
	return gw, nil
}

func (d *Discovery) Nameservers(ctx context.Context) ([]string, error) {
	var body listBody[struct {
		Nameserver string `json:"nameserver"`
	}]
	if err := d.API.Get(ctx, "network/nameservers", nil, &body); err != nil {
		return nil, fmt.Errorf("failed to determine appliance nameservers: %w", err)
	}
	out := make([]string, 0, len(body.Data))
	for _, ns := range body.Data {
		out = append(out, ns.Nameserver)
	}
	if len(out) == 0 {
		return nil, ErrNoNameservers
	}
	lg.FromContext(ctx).Debug("network nameservers", lg.Strings("nameservers", out))
	return out, nil
}

// Domain returns the domain controller the SMB service is joined to.
func (d *Discovery) Domain(ctx context.Context) (string, error) {
	var body struct {
		SharingMode      string `json:"sharingMode"`
		RealmName        string `json:"realmName"`
		DomainController string `json:"domainController"`
	}
	if err := d.API.Get(ctx, "services/smb", nil, &body); err != nil {
		return "", fmt.Errorf("failed to determine domain configuration: %w", err)
	}
	if body.SharingMode != "domain" {
		return "", fmt.Errorf("%w: sharing mode is %q", ErrNotInDomain, body.SharingMode)
	}
	lg.FromContext(ctx).Debug("appliance domain", lg.String("realm", body.RealmName))
	if body.DomainController == "" {
		return "", ErrNoDomainController
	}
	return body.DomainController, nil
}

// Cluster returns the RSF cluster this node belongs to. The partner is the
// first node whose machine name differs from the local hostname.
func (d *Discovery) Cluster(ctx context.Context) (*Cluster, error) {
	var body listBody[struct {
		ClusterName string `json:"clusterName"`
		Nodes       []struct {
			MachineName string `json:"machineName"`
		} `json:"nodes"`
		Services []struct {
			ServiceName string `json:"serviceName"`
		} `json:"services"`
	}]
	if err := d.API.Get(ctx, "rsf/clusters", url.Values{"fields": {"nodes,services"}}, &body); err != nil {
		return nil, fmt.Errorf("failed to determine cluster configuration: %w", err)
	}
	if len(body.Data) == 0 {
		return nil, ErrNotClustered
	}
	raw := body.Data[len(body.Data)-1]
	lg.FromContext(ctx).Info("cluster membership", lg.String("cluster", raw.ClusterName))

	hostname, err := d.Hostname(ctx)
	if err != nil {
		return nil, err
	}
	c := &Cluster{Name: raw.ClusterName}
	for _, n := range raw.Nodes {
		if n.MachineName != hostname {
			c.Partner = n.MachineName
			break
		}
	}
	if c.Partner == "" {
		return nil, ErrNoPartner
	}
	for _, s := range raw.Services {
		c.Services = append(c.Services, s.ServiceName)
	}
	if len(c.Services) == 0 {
		return nil, ErrNoClusterServices
	}
	return c, nil
}

func (d *Discovery) Disks(ctx context.Context) ([]Disk, error) {
	var body listBody[Disk]
	if err := d.API.Get(ctx, "inventory/disks", nil, &body); err != nil {
		return nil, fmt.Errorf("failed to determine disk configuration: %w", err)
	}
	if len(body.Data) == 0 {
		return nil, ErrNoDisks
	}
	return body.Data, nil
}

func (d *Discovery) Pools(ctx context.Context) ([]Pool, error) {
	var body listBody[Pool]
	if err := d.API.Get(ctx, "storage/pools", nil, &body); err != nil {
		return nil, fmt.Errorf("failed to determine pool configuration: %w", err)
	}
	if len(body.Data) == 0 {
		return nil, ErrNoPools
	}
	return body.Data, nil
}
