package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/andrej220/nexcheck/internal/checks"
	"github.com/andrej220/nexcheck/internal/diskqual"
	"github.com/andrej220/nexcheck/internal/report"
	"github.com/andrej220/nexcheck/pkg/config"
	"github.com/spf13/cobra"
)

func newPingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ping <host>",
		Short: "Check that a host answers ping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, needExec, func(ctx context.Context, c *checks.Checker, rep *report.Report) {
				start := time.Now()
				report.Record(rep, "ping", start, nil, c.Ping(ctx, args[0]))
			})
		},
	}
}

func newGatewayCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Ping the default gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, needExec|needAPI, gatewayCheck)
		},
	}
}

func newDNSCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dns",
		Short: "Ping every configured nameserver",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, needExec|needAPI, dnsCheck)
		},
	}
}

func newDomainCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "domain",
		Short: "Ping the domain controller",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, needExec|needAPI, domainCheck)
		},
	}
}

// newLookupCmd resolves through the configured nameservers, else the
// appliance's, else the local resolver configuration.
func newLookupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <name>...",
		Short: "Resolve names through the appliance nameservers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n := needs(0)
			if len(a.cfg.Checks.Nameservers) == 0 && a.cfg.API != nil {
				n = needAPI
			}
			return a.run(cmd, n, func(ctx context.Context, c *checks.Checker, rep *report.Report) {
				lookupCheck(ctx, c, rep, args)
			})
		},
	}
}

func newCommandCmd(a *app) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "cmd <command>",
		Short: "Check that a shell command exits 0",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, needExec, func(ctx context.Context, c *checks.Checker, rep *report.Report) {
				start := time.Now()
				report.Record(rep, "cmd", start, nil, c.Command(ctx, args[0], timeout))
			})
		},
	}
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "Command timeout (0 waits indefinitely)")
	return cmd
}

func newRSFMoveCmd(a *app) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "rsf-move",
		Short: "Move every cluster service to this node, or to the partner with --remote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, needAPI, func(ctx context.Context, c *checks.Checker, rep *report.Report) {
				start := time.Now()
				results, err := c.RSFMove(ctx, !remote)
				report.Record(rep, "rsf-move", start, err, results...)
			})
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "Move services to the partner node")
	return cmd
}

func newZpoolCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "zpool",
		Short: "Check that every pool is ONLINE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, needAPI, zpoolCheck)
		},
	}
}

func newPostCmd(a *app) *cobra.Command {
	var payload string
	cmd := &cobra.Command{
		Use:   "post <method>",
		Short: "POST to an API method and wait for the job it starts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var body any
			if payload != "" {
				if err := json.Unmarshal([]byte(payload), &body); err != nil {
					return fmt.Errorf("invalid --payload: %w", err)
				}
			}
			return a.run(cmd, needAPI, func(ctx context.Context, c *checks.Checker, rep *report.Report) {
				start := time.Now()
				report.Record(rep, "post", start, nil, c.Post(ctx, args[0], body))
			})
		},
	}
	cmd.Flags().StringVarP(&payload, "payload", "p", "", "JSON request body")
	return cmd
}

func newDiskPerfCmd(a *app) *cobra.Command {
	var (
		bs       int
		duration time.Duration
		workers  int
	)
	cmd := &cobra.Command{
		Use:   "diskperf",
		Short: "Measure sequential read throughput of every disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("bs") {
				a.cfg.DiskPerf.BlockSizeKB = bs
			}
			if cmd.Flags().Changed("duration") {
				a.cfg.DiskPerf.Duration = duration
			}
			if cmd.Flags().Changed("workers") {
				a.cfg.DiskPerf.Workers = workers
			}
			if err := config.Validate(a.cfg); err != nil {
				return err
			}
			return a.run(cmd, needExec|needAPI, diskPerfCheck)
		},
	}
	cmd.Flags().IntVar(&bs, "bs", diskqual.DefaultBlockSizeKB, "Block size in KB")
	cmd.Flags().DurationVar(&duration, "duration", diskqual.DefaultDuration, "Read duration per disk")
	cmd.Flags().IntVar(&workers, "workers", diskqual.DefaultWorkers, "Disks measured concurrently")
	return cmd
}

func newMetadataCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "metadata",
		Short: "Check the kernel metadata block size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, needExec, metadataCheck)
		},
	}
}

// newAllCmd runs every check that leaves the appliance unchanged. Cluster
// moves and POSTs are never part of it.
func newAllCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run every non-disruptive check",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			all := a.cfg.All
			return a.run(cmd, needExec|needAPI, func(ctx context.Context, c *checks.Checker, rep *report.Report) {
				gatewayCheck(ctx, c, rep)
				dnsCheck(ctx, c, rep)
				domainCheck(ctx, c, rep)
				if len(all.Lookups) > 0 {
					lookupCheck(ctx, c, rep, all.Lookups)
				}
				zpoolCheck(ctx, c, rep)
				metadataCheck(ctx, c, rep)
				for _, cc := range all.Commands {
					start := time.Now()
					report.Record(rep, "cmd", start, nil, c.Command(ctx, cc.Command, cc.Timeout))
				}
				if all.DiskPerf {
					diskPerfCheck(ctx, c, rep)
				}
			})
		},
	}
}

func gatewayCheck(ctx context.Context, c *checks.Checker, rep *report.Report) {
	start := time.Now()
	res, err := c.GatewayPing(ctx)
	if err != nil {
		report.Record[checks.PingResult](rep, "gateway", start, err)
		return
	}
	report.Record(rep, "gateway", start, nil, res)
}

func dnsCheck(ctx context.Context, c *checks.Checker, rep *report.Report) {
	start := time.Now()
	results, err := c.DNSPing(ctx)
	report.Record(rep, "dns", start, err, results...)
}

func domainCheck(ctx context.Context, c *checks.Checker, rep *report.Report) {
	start := time.Now()
	res, err := c.DomainPing(ctx)
	if err != nil {
		report.Record[checks.PingResult](rep, "domain", start, err)
		return
	}
	report.Record(rep, "domain", start, nil, res)
}

func lookupCheck(ctx context.Context, c *checks.Checker, rep *report.Report, names []string) {
	start := time.Now()
	results := make([]checks.LookupResult, 0, len(names))
	for _, name := range names {
		results = append(results, c.DNSLookup(ctx, name))
	}
	report.Record(rep, "lookup", start, nil, results...)
}

func zpoolCheck(ctx context.Context, c *checks.Checker, rep *report.Report) {
	start := time.Now()
	results, err := c.ZpoolStatus(ctx)
	report.Record(rep, "zpool", start, err, results...)
}

func diskPerfCheck(ctx context.Context, c *checks.Checker, rep *report.Report) {
	start := time.Now()
	results, err := c.DiskPerf(ctx)
	report.Record(rep, "diskperf", start, err, results...)
}

func metadataCheck(ctx context.Context, c *checks.Checker, rep *report.Report) {
	start := time.Now()
	report.Record(rep, "metadata", start, nil, c.MetadataBlocks(ctx))
}
