package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cam3ron2/issue-stats/internal/config"
	"github.com/cam3ron2/issue-stats/internal/dataset"
	"github.com/cam3ron2/issue-stats/internal/exporter"
	"github.com/cam3ron2/issue-stats/internal/githubapi"
	"github.com/cam3ron2/issue-stats/internal/harvest"
	"github.com/cam3ron2/issue-stats/internal/report"
	"github.com/cam3ron2/issue-stats/internal/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "issue-stats: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return newCLI(os.Stdout).rootCommand().ExecuteContext(ctx)
}

type cli struct {
	stdout    io.Writer
	lookupEnv func(string) (string, bool)
	now       func() time.Time
	newLogger func(level string) (*zap.Logger, error)

	configPath string
	envFile    string
	logLevel   string
}

func newCLI(stdout io.Writer) *cli {
	return &cli{
		stdout:    stdout,
		lookupEnv: os.LookupEnv,
		now:       time.Now,
		newLogger: buildLogger,
	}
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "issue-stats",
		Short:         "Harvest a repository's issues and report contributor metrics",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to YAML config file (defaults apply when empty)")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before the config")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override log_level: debug|info|warn|error")

	root.AddCommand(c.harvestCommand(), c.reportCommand())
	return root
}

type harvestFlags struct {
	output          string
	states          []string
	metricsTextfile string
}

func (c *cli) harvestCommand() *cobra.Command {
	var flags harvestFlags
	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Download every issue and pull request into a CSV dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withRuntime(cmd, func(cfg *config.Config) error {
				if cmd.Flags().Changed("output") {
					cfg.Harvest.Output = flags.output
				}
				if cmd.Flags().Changed("state") {
					cfg.Harvest.States = flags.states
				}
				if cmd.Flags().Changed("metrics-textfile") {
					cfg.Harvest.MetricsTextfile = flags.metricsTextfile
				}
				return nil
			}, c.runHarvest)
		},
	}
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "CSV dataset path")
	cmd.Flags().StringSliceVar(&flags.states, "state", nil, "issue states to list: all|open|closed")
	cmd.Flags().StringVar(&flags.metricsTextfile, "metrics-textfile", "", "write harvest metrics in Prometheus text format to this path")
	return cmd
}

type reportFlags struct {
	input           string
	output          string
	format          string
	since           string
	metricsTextfile string
}

func (c *cli) reportCommand() *cobra.Command {
	var flags reportFlags
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Compute contributor metrics from a CSV dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withRuntime(cmd, func(cfg *config.Config) error {
				if cmd.Flags().Changed("input") {
					cfg.Analysis.Input = flags.input
				}
				if cmd.Flags().Changed("output") {
					cfg.Analysis.Output = flags.output
				}
				if cmd.Flags().Changed("format") {
					cfg.Analysis.Format = strings.ToLower(strings.TrimSpace(flags.format))
				}
				if cmd.Flags().Changed("metrics-textfile") {
					cfg.Analysis.MetricsTextfile = flags.metricsTextfile
				}
				if cmd.Flags().Changed("since") {
					since, err := time.Parse("2006-01-02", strings.TrimSpace(flags.since))
					if err != nil {
						return fmt.Errorf("parse --since: %w", err)
					}
					cfg.Analysis.RecentSince = since
				}
				return nil
			}, c.runReport)
		},
	}
	cmd.Flags().StringVarP(&flags.input, "input", "i", "", "CSV dataset path")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "report path (stdout when empty)")
	cmd.Flags().StringVar(&flags.format, "format", "", "report format: text|yaml")
	cmd.Flags().StringVar(&flags.since, "since", "", "start of the recent-activity window as YYYY-MM-DD")
	cmd.Flags().StringVar(&flags.metricsTextfile, "metrics-textfile", "", "write report gauges in Prometheus text format to this path")
	return cmd
}

// withRuntime loads configuration, applies flag overrides, and runs fn with a
// logger and tracer provider that are flushed afterwards.
func (c *cli) withRuntime(
	cmd *cobra.Command,
	override func(cfg *config.Config) error,
	fn func(ctx context.Context, cfg *config.Config, logger *zap.Logger) error,
) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if err := override(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := c.newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil && !shouldIgnoreLoggerSyncError(syncErr) {
			_, _ = fmt.Fprintf(os.Stderr, "issue-stats: sync logger: %v\n", syncErr)
		}
	}()

	tracing, err := telemetry.Setup(telemetry.Config{
		Enabled:          cfg.Telemetry.OTELEnabled,
		ServiceName:      "issue-stats",
		TraceMode:        cfg.Telemetry.OTELTraceMode,
		TraceSampleRatio: cfg.Telemetry.OTELTraceSampleRatio,
		Logger:           logger,
	})
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tracing.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(shutdownErr))
		}
	}()

	logger.Debug("tracing configured", zap.String("trace_mode", string(tracing.Mode())))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, cfg, logger)
}

func (c *cli) loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(c.envFile); err != nil {
		return nil, err
	}

	var cfg *config.Config
	if strings.TrimSpace(c.configPath) == "" {
		cfg = config.Default()
	} else {
		loaded, err := config.LoadFile(c.configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if c.logLevel != "" {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(c.logLevel))
	}
	return cfg, nil
}

func (c *cli) runHarvest(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	gh, err := githubapi.NewClient(githubapi.Credentials{
		Token: cfg.GitHub.Token(c.lookupEnv),
		App: githubapi.AppInstallation{
			AppID:          cfg.GitHub.App.AppID,
			InstallationID: cfg.GitHub.App.InstallationID,
			PrivateKeyPath: cfg.GitHub.App.PrivateKeyPath,
		},
	}, githubapi.ClientOptions{
		BaseURL: cfg.GitHub.APIBaseURL,
		Timeout: cfg.GitHub.RequestTimeout,
	})
	if errors.Is(err, githubapi.ErrMissingCredential) {
		return fmt.Errorf("%w: set %s or configure github.app", err, cfg.GitHub.TokenEnv)
	}
	if err != nil {
		return err
	}
	issues, err := githubapi.NewIssueClient(gh, cfg.GitHub.Owner, cfg.GitHub.Repo)
	if err != nil {
		return err
	}

	status, err := issues.CheckAuth(ctx)
	if err != nil {
		return fmt.Errorf("check github credential: %w", err)
	}
	logger.Info("github credential accepted",
		zap.String("repository", issues.Repository()),
		zap.Int("rate_limit_remaining", status.Remaining),
		zap.Time("rate_limit_reset", status.Reset),
	)

	retry, err := harvest.NewRetryPolicy(harvest.RetryConfig{
		Strategy:    cfg.Retry.Strategy,
		Delay:       cfg.Retry.Delay,
		MaxDelay:    cfg.Retry.MaxDelay,
		MaxAttempts: cfg.Retry.MaxAttempts,
	})
	if err != nil {
		return err
	}
	policy, err := dataset.ParseDuplicatePolicy(cfg.Harvest.DuplicatePolicy)
	if err != nil {
		return err
	}

	metrics := harvest.NewRunMetrics()
	harvester, err := harvest.New(issues, harvest.Config{
		States:          cfg.Harvest.States,
		PerPage:         cfg.Harvest.PerPage,
		Throttle:        cfg.Harvest.Throttle,
		Retry:           retry,
		DuplicatePolicy: policy,
	}, logger, metrics)
	if err != nil {
		return err
	}

	ds, runErr := harvester.Run(ctx)
	if cfg.Harvest.MetricsTextfile != "" {
		if err := exporter.WriteTextfile(cfg.Harvest.MetricsTextfile, nil, metrics.Collectors()...); err != nil {
			logger.Warn("write harvest metrics failed", zap.String("path", cfg.Harvest.MetricsTextfile), zap.Error(err))
		}
	}
	if runErr != nil {
		return fmt.Errorf("harvest %s: %w", issues.Repository(), runErr)
	}

	if err := dataset.WriteFile(cfg.Harvest.Output, ds); err != nil {
		return err
	}
	logger.Info("dataset written",
		zap.String("path", cfg.Harvest.Output),
		zap.Int("records", ds.Len()),
	)
	return nil
}

func (c *cli) runReport(_ context.Context, cfg *config.Config, logger *zap.Logger) (err error) {
	policy, err := dataset.ParseDuplicatePolicy(cfg.Harvest.DuplicatePolicy)
	if err != nil {
		return err
	}
	ds, err := dataset.ReadFile(cfg.Analysis.Input, policy)
	if err != nil {
		return err
	}

	now := c.now()
	built, err := report.Build(ds, report.Params{
		FirstYear:          cfg.Analysis.FirstYear,
		LastYear:           cfg.Analysis.LastYear,
		Cutoff:             cfg.Analysis.Cutoff(now),
		ExcludeZeroAuthors: cfg.Analysis.ExcludeZeroAuthors,
		TopN:               cfg.Analysis.TopN,
		TopPercents:        cfg.Analysis.TopPercents,
		ActivityBins:       cfg.Analysis.ActivityBins,
		Labels:             cfg.Analysis.Labels,
		BugLabel:           cfg.Analysis.BugLabel,
		GeneratedAt:        now,
	})
	if err != nil {
		return err
	}

	out := c.stdout
	if cfg.Analysis.Output != "" {
		file, createErr := os.Create(cfg.Analysis.Output)
		if createErr != nil {
			return fmt.Errorf("create report file: %w", createErr)
		}
		defer func() {
			if closeErr := file.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("close report file: %w", closeErr)
			}
		}()
		out = file
	}

	switch cfg.Analysis.Format {
	case "yaml":
		err = report.WriteYAML(out, built)
	default:
		err = report.WriteText(out, built)
	}
	if err != nil {
		return err
	}

	if cfg.Analysis.MetricsTextfile != "" {
		if err := exporter.WriteTextfile(cfg.Analysis.MetricsTextfile, report.Points(built)); err != nil {
			return err
		}
	}
	logger.Info("report written",
		zap.String("input", cfg.Analysis.Input),
		zap.Int("records", ds.Len()),
		zap.Time("cutoff", built.Cutoff),
		zap.String("format", cfg.Analysis.Format),
	)
	return nil
}

func buildLogger(level string) (*zap.Logger, error) {
	loggerConfig := zap.NewProductionConfig()
	loggerConfig.Level = zap.NewAtomicLevelAt(logLevel(level))
	return loggerConfig.Build()
}

func logLevel(raw string) zapcore.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// shouldIgnoreLoggerSyncError reports whether err is the EINVAL/ENOTTY that
// syncing a terminal-backed stderr returns.
func shouldIgnoreLoggerSyncError(err error) bool {
	return errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY)
}
