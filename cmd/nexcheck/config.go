package main

import (
	"time"

	"github.com/andrej220/nexcheck/internal/checks"
	"github.com/andrej220/nexcheck/internal/diskqual"
	"github.com/andrej220/nexcheck/internal/report"
	"github.com/andrej220/nexcheck/pkg/executor"
	"github.com/andrej220/nexcheck/pkg/jobs"
	"github.com/andrej220/nexcheck/pkg/nef"
)

const (
	SERVICENAME    = "nexcheck"
	CONFIGFILENAME = "nexcheck.yaml"

	defaultMaxWait = 30 * time.Minute
)

type Config struct {
	// Hostname overrides the local hostname for cluster moves and reports.
	Hostname string         `yaml:"hostname" json:"hostname"`
	API      *nef.Config    `yaml:"api" json:"api"`
	Executor ExecutorConfig `yaml:"executor" json:"executor"`
	Checks   ChecksConfig   `yaml:"checks" json:"checks"`
	DiskPerf DiskPerfConfig `yaml:"diskperf" json:"diskperf"`
	Jobs     JobsConfig     `yaml:"jobs" json:"jobs"`
	Report   report.Config  `yaml:"report" json:"report"`
	All      AllConfig      `yaml:"all" json:"all"`
}

type ExecutorConfig struct {
	Mode      string              `yaml:"mode" json:"mode" validate:"oneof=local ssh"`
	Shell     string              `yaml:"shell" json:"shell"`
	KillGrace time.Duration       `yaml:"killGrace" json:"killGrace" validate:"gte=0"`
	SSH       *executor.SSHConfig `yaml:"ssh" json:"ssh" validate:"required_if=Mode ssh"`
}

type ChecksConfig struct {
	PingCommand   string        `yaml:"pingCommand" json:"pingCommand" validate:"contains=%s"`
	PingTimeout   time.Duration `yaml:"pingTimeout" json:"pingTimeout" validate:"gt=0"`
	MDBTimeout    time.Duration `yaml:"mdbTimeout" json:"mdbTimeout" validate:"gt=0"`
	LookupTimeout time.Duration `yaml:"lookupTimeout" json:"lookupTimeout" validate:"gt=0"`
	Nameservers   []string      `yaml:"nameservers" json:"nameservers"`
}

type DiskPerfConfig struct {
	BlockSizeKB      int           `yaml:"blockSizeKB" json:"blockSizeKB" validate:"gte=1"`
	Duration         time.Duration `yaml:"duration" json:"duration" validate:"gt=0"`
	Workers          int           `yaml:"workers" json:"workers" validate:"gte=1,lte=64"`
	DDPath           string        `yaml:"ddPath" json:"ddPath"`
	DevicePathFormat string        `yaml:"devicePathFormat" json:"devicePathFormat" validate:"contains=%s"`
}

type JobsConfig struct {
	Interval time.Duration `yaml:"interval" json:"interval" validate:"gt=0"`
	MaxWait  time.Duration `yaml:"maxWait" json:"maxWait" validate:"gte=0"`
	MaxPolls int           `yaml:"maxPolls" json:"maxPolls" validate:"gte=0"`
}

// AllConfig lists the extra work the all command does besides the
// read-only checks.
type AllConfig struct {
	Lookups  []string        `yaml:"lookups" json:"lookups"`
	Commands []CommandConfig `yaml:"commands" json:"commands" validate:"dive"`
	DiskPerf bool            `yaml:"diskperf" json:"diskperf"`
}

type CommandConfig struct {
	Command string        `yaml:"command" json:"command" validate:"required"`
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"gte=0"`
}

func NewConfig() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

func (c *Config) SetDefaults() {
	if c.Executor.Mode == "" {
		c.Executor.Mode = "local"
	}
	if c.Executor.KillGrace == 0 {
		c.Executor.KillGrace = executor.DefaultKillGrace
	}
	if c.Checks.PingCommand == "" {
		c.Checks.PingCommand = checks.DefaultPingCommand
	}
	if c.Checks.PingTimeout == 0 {
		c.Checks.PingTimeout = checks.DefaultPingTimeout
	}
	if c.Checks.MDBTimeout == 0 {
		c.Checks.MDBTimeout = checks.DefaultMDBTimeout
	}
	if c.Checks.LookupTimeout == 0 {
		c.Checks.LookupTimeout = checks.DefaultLookupTimeout
	}
	if c.DiskPerf.BlockSizeKB == 0 {
		c.DiskPerf.BlockSizeKB = diskqual.DefaultBlockSizeKB
	}
	if c.DiskPerf.Duration == 0 {
		c.DiskPerf.Duration = diskqual.DefaultDuration
	}
	if c.DiskPerf.Workers == 0 {
		c.DiskPerf.Workers = diskqual.DefaultWorkers
	}
	if c.DiskPerf.DDPath == "" {
		c.DiskPerf.DDPath = diskqual.DefaultDDPath
	}
	if c.DiskPerf.DevicePathFormat == "" {
		c.DiskPerf.DevicePathFormat = diskqual.DefaultDevicePathFormat
	}
	if c.Jobs.Interval == 0 {
		c.Jobs.Interval = jobs.DefaultInterval
	}
	if c.Jobs.MaxWait == 0 {
		c.Jobs.MaxWait = defaultMaxWait
	}
}

func (c *Config) checkOptions() checks.Options {
	return checks.Options{
		PingCommand:   c.Checks.PingCommand,
		PingTimeout:   c.Checks.PingTimeout,
		MDBTimeout:    c.Checks.MDBTimeout,
		LookupTimeout: c.Checks.LookupTimeout,
		Nameservers:   c.Checks.Nameservers,
		DiskPerf: checks.DiskPerfOptions{
			BlockSizeKB:      c.DiskPerf.BlockSizeKB,
			Duration:         c.DiskPerf.Duration,
			Workers:          c.DiskPerf.Workers,
			DDPath:           c.DiskPerf.DDPath,
			DevicePathFormat: c.DiskPerf.DevicePathFormat,
		},
	}
}
