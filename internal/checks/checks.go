// Package checks implements the appliance health checks. Every check
// returns a typed result; a failing check is reported through the result,
// not through the error return, which is kept for failed preconditions such
// as a configuration that cannot be discovered.
package checks

import (
	"time"

	"github.com/andrej220/nexcheck/internal/discovery"
	"github.com/andrej220/nexcheck/internal/diskqual"
	"github.com/andrej220/nexcheck/internal/processor"
	"github.com/andrej220/nexcheck/pkg/executor"
	"github.com/andrej220/nexcheck/pkg/jobs"
)

const (
	DefaultPingCommand   = "ping -n -s %s 56 5"
	DefaultPingTimeout   = 10 * time.Second
	DefaultMDBTimeout    = 10 * time.Second
	DefaultLookupTimeout = 5 * time.Second
)

// Status is the part every check result shares.
type Status struct {
	Success bool   `json:"success" bson:"success"`
	Error   string `json:"error,omitempty" bson:"error,omitempty"`
}

func (s Status) Succeeded() bool { return s.Success }

func ok() Status { return Status{Success: true} }

func failed(msg string) Status { return Status{Error: msg} }

// Options tunes the checks. Zero values fall back to the defaults.
type Options struct {
	PingCommand   string        // fmt pattern taking the quoted host
	PingTimeout   time.Duration
	MDBTimeout    time.Duration
	LookupTimeout time.Duration
	// Nameservers used for lookups instead of the appliance's own.
	Nameservers []string
	DiskPerf    DiskPerfOptions
}

type DiskPerfOptions struct {
	BlockSizeKB      int
	Duration         time.Duration
	Workers          int
	DDPath           string
	DevicePathFormat string
}

// Checker holds the collaborators the checks need. Checks that do not touch
// a collaborator work with it unset.
type Checker struct {
	Exec      executor.Executor
	Transport jobs.Transport
	Discovery *discovery.Discovery
	Poller    *jobs.Poller
	Options   Options

	chain *processor.ProcessorChain
}

func New(exec executor.Executor, transport jobs.Transport, disc *discovery.Discovery, poller *jobs.Poller, opts Options) *Checker {
	if poller == nil {
		poller = &jobs.Poller{}
	}
	return &Checker{
		Exec:      exec,
		Transport: transport,
		Discovery: disc,
		Poller:    poller,
		Options:   opts,
		chain:     processor.NewProcessorChain(),
	}
}

func (c *Checker) processors() *processor.ProcessorChain {
	if c.chain == nil {
		c.chain = processor.NewProcessorChain()
	}
	return c.chain
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func (c *Checker) diskPerfDefaults() DiskPerfOptions {
	o := c.Options.DiskPerf
	if o.BlockSizeKB <= 0 {
		o.BlockSizeKB = diskqual.DefaultBlockSizeKB
	}
	o.Duration = orDefault(o.Duration, diskqual.DefaultDuration)
	if o.Workers <= 0 {
		o.Workers = diskqual.DefaultWorkers
	}
	return o
}
