package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/jules-maulard/clash-royale-analytics/internal/adapters/http/api"
	"github.com/jules-maulard/clash-royale-analytics/internal/app"
	"github.com/jules-maulard/clash-royale-analytics/internal/config"
	"github.com/jules-maulard/clash-royale-analytics/pkg/logger"
	"github.com/jules-maulard/clash-royale-analytics/pkg/metrics"
)

// cli holds flag values and the state built before a command runs.
type cli struct {
	configPath  string
	logLevel    string
	logFormat   string
	workers     int
	metricsAddr string
	strategy    string
	minSize     int
	noCombiner  bool
	store       string
	minSupport  int64
	reportDB    string

	cfg *config.Config
	log logger.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "clashgraph",
		Short:         "Archetype co-occurrence pipeline for match records",
		Long:          "Deduplicate match records, build the archetype graph and score archetype pairs against an independence baseline.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "config file (YAML or TOML); defaults to $CLASH_CONFIG")
	pf.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&c.logFormat, "log-format", "text", "log format: text or json")
	pf.IntVar(&c.workers, "workers", 0, "workers per stage")
	pf.StringVar(&c.metricsAddr, "metrics-addr", "", "serve /metrics, /healthz and /stats on this address while running")

	root.AddCommand(
		newRunCmd(c),
		newCleanCmd(c),
		newGraphCmd(c),
		newStatsCmd(c),
		newReportCmd(c),
	)
	return root
}

// setup initializes logging and loads the configuration. Flags override the
// file and environment only when set explicitly.
func (c *cli) setup(cmd *cobra.Command) error {
	if err := logger.InitWithWriter(cmd.ErrOrStderr(), c.logFormat); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}

	var err error
	if c.configPath != "" {
		c.cfg, err = config.LoadFile(c.configPath)
	} else {
		c.cfg, err = config.Load(cmd.Context())
	}
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		c.cfg.LogLevel = c.logLevel
	}
	if flags.Changed("workers") {
		c.cfg.WorkerCount = c.workers
	}
	if flags.Changed("metrics-addr") {
		c.cfg.MetricsAddr = c.metricsAddr
	}
	if flags.Changed("dedup") {
		c.cfg.DedupStrategy = strings.ToLower(c.strategy)
	}
	if flags.Changed("min-size") {
		c.cfg.MinArchetypeSize = c.minSize
	}
	if flags.Changed("no-combiner") {
		c.cfg.Combiner = !c.noCombiner
	}
	if flags.Changed("store") {
		c.cfg.Store = strings.ToLower(c.store)
	}
	if flags.Changed("min-support") {
		c.cfg.MinNodeSupport = c.minSupport
	}
	if flags.Changed("report-db") {
		c.cfg.ReportDB = c.reportDB
	}
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	metrics.Configure(
		metrics.WithConstLabels(c.cfg.MetricsLabels),
		metrics.WithRefreshInterval(c.cfg.MetricsRefresh()),
	)

	c.log = logger.Get()
	if err := logger.SetLevelString(c.cfg.LogLevel); err != nil {
		c.log.Warn(cmd.Context(), "invalid log_level; falling back to info",
			logger.String("log_level", c.cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return nil
}

func (c *cli) service() (*app.Service, error) {
	return app.NewFromConfig(c.cfg, app.WithLogger(c.log.Named("app")))
}

// withMetrics runs fn while serving the monitoring endpoints when an
// address is configured.
func (c *cli) withMetrics(ctx context.Context, svc *app.Service, fn func(ctx context.Context) error) error {
	if c.cfg.MetricsAddr == "" {
		return fn(ctx)
	}

	sctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		metrics.SampleRuntime(sctx)
	}()
	go func() {
		defer wg.Done()
		srv := api.NewServer(api.WithStats(svc))
		if err := srv.ListenAndServe(sctx, c.cfg.MetricsAddr, c.log.Named("http")); err != nil {
			c.log.Error(sctx, "metrics listener stopped", logger.Error(err))
		}
	}()

	err := fn(ctx)
	cancel()
	wg.Wait()
	return err
}
