package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/andrej220/nexcheck/internal/checks"
	"github.com/andrej220/nexcheck/internal/discovery"
	"github.com/andrej220/nexcheck/internal/lg"
	"github.com/andrej220/nexcheck/internal/report"
	"github.com/andrej220/nexcheck/pkg/config"
	"github.com/andrej220/nexcheck/pkg/executor"
	"github.com/andrej220/nexcheck/pkg/jobs"
	"github.com/andrej220/nexcheck/pkg/nef"
	"github.com/andrej220/nexcheck/pkg/persistence"
	"github.com/spf13/cobra"
)

var (
	ErrChecksFailed = errors.New("checks failed")
	errNoAPI        = errors.New("the appliance API is not configured (api.url)")
)

type needs int

const (
	needExec needs = 1 << iota
	needAPI
)

// app carries flag values and the state of one invocation.
type app struct {
	configPath      string
	configStore     string
	mongoURI        string
	mongoDB         string
	mongoCollection string
	debug           bool
	logFormat       string
	reportPath      string

	out    io.Writer
	cfg    *Config
	logger lg.Logger
}

// setup builds the logger and loads the configuration.
func (a *app) setup(cmd *cobra.Command) error {
	a.logger = lg.New(&lg.Config{
		ServiceName: SERVICENAME,
		Debug:       a.debug,
		Format:      a.logFormat,
	})
	ctx := lg.Attach(cmd.Context(), a.logger)

	cfg, err := a.loadConfig(ctx, cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}
	a.cfg = cfg
	if a.reportPath != "" {
		a.cfg.Report.File = a.reportPath
	}
	return nil
}

// loadConfig reads the configuration store. A missing default config file
// is not an error; the built-in defaults are used instead.
func (a *app) loadConfig(ctx context.Context, explicit bool) (*Config, error) {
	storeType, err := config.ParseStoreType(a.configStore)
	if err != nil {
		return nil, err
	}

	var storeCfg any
	switch storeType {
	case config.FileStore:
		if _, err := os.Stat(a.configPath); errors.Is(err, os.ErrNotExist) && !explicit {
			a.logger.Debug("no config file, using defaults", lg.String("path", a.configPath))
			cfg := NewConfig()
			return cfg, config.Validate(cfg)
		}
		storeCfg = &config.FileConfig{Path: a.configPath}
	case config.MongoStore:
		storeCfg = &config.MongoConfig{URI: a.mongoURI, DBName: a.mongoDB, CollName: a.mongoCollection, ID: SERVICENAME}
	}

	store, err := config.NewStore(ctx, storeType, storeCfg)
	if err != nil {
		return nil, err
	}
	if c, ok := store.(interface{ Close(context.Context) error }); ok {
		defer c.Close(context.Background())
	}

	cfg := &Config{}
	if err := config.Load(ctx, store, cfg); err != nil {
		return nil, err
	}
	a.logger.Debug("configuration loaded", lg.String("store", storeType.String()))
	return cfg, nil
}

// session holds the collaborators opened for one command.
type session struct {
	checker *checks.Checker
	closers []func() error
}

func (s *session) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

func (a *app) openSession(ctx context.Context, n needs) (*session, error) {
	s := &session{}
	var (
		exec      executor.Executor
		transport jobs.Transport
		disc      *discovery.Discovery
	)

	if n&needExec != 0 {
		e, closer, err := a.newExecutor(ctx)
		if err != nil {
			return nil, err
		}
		exec = e
		if closer != nil {
			s.closers = append(s.closers, closer)
		}
	}

	if n&needAPI != 0 {
		if a.cfg.API == nil {
			s.close()
			return nil, errNoAPI
		}
		client, err := nef.New(ctx, *a.cfg.API)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("failed to connect to the appliance API: %w", err)
		}
		s.closers = append(s.closers, func() error { return client.Logout(context.Background()) })
		transport = client
		disc = discovery.New(client)
		disc.Host = a.cfg.Hostname
	}

	poller := &jobs.Poller{Interval: a.cfg.Jobs.Interval, MaxWait: a.cfg.Jobs.MaxWait, MaxPolls: a.cfg.Jobs.MaxPolls}
	s.checker = checks.New(exec, transport, disc, poller, a.cfg.checkOptions())
	return s, nil
}

func (a *app) newExecutor(ctx context.Context) (executor.Executor, func() error, error) {
	ec := a.cfg.Executor
	switch ec.Mode {
	case "ssh":
		client, err := executor.NewResilientClient(ctx, *ec.SSH, executor.DefaultResilienceConfig())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to %s: %w", ec.SSH.Address, err)
		}
		e := executor.NewSSH(client)
		e.KillGrace = ec.KillGrace
		return e, client.Close, nil
	default:
		e := executor.NewLocal()
		if ec.Shell != "" {
			e.Shell = ec.Shell
		}
		e.KillGrace = ec.KillGrace
		return e, nil, nil
	}
}

// run opens what the command needs, lets it fill a report, then prints and
// publishes the report. It fails when any recorded check failed.
func (a *app) run(cmd *cobra.Command, n needs, fill func(ctx context.Context, c *checks.Checker, rep *report.Report)) error {
	ctx := lg.Attach(cmd.Context(), a.logger)
	defer a.logger.Sync()

	s, err := a.openSession(ctx, n)
	if err != nil {
		a.logger.Error("setup failed", lg.Err(err))
		return err
	}
	defer s.close()

	rep := report.New(a.hostname())
	fill(ctx, s.checker, rep)
	rep.Finish()

	if err := a.print(rep); err != nil {
		return err
	}
	if err := a.publish(ctx, rep); err != nil {
		return err
	}
	if !rep.Success {
		return fmt.Errorf("%w: %s", ErrChecksFailed, strings.Join(rep.Failed(), ", "))
	}
	return nil
}

func (a *app) print(rep *report.Report) error {
	data, err := persistence.JSONSerializer{Indent: "    "}.Marshal(rep)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, string(data))
	return err
}

func (a *app) publish(ctx context.Context, rep *report.Report) error {
	sinks, err := report.NewSinks(ctx, a.cfg.Report)
	if err != nil {
		return fmt.Errorf("failed to open report sinks: %w", err)
	}
	defer sinks.Close()
	return sinks.Publish(ctx, rep)
}

func (a *app) hostname() string {
	if a.cfg.Hostname != "" {
		return a.cfg.Hostname
	}
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
