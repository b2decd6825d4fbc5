package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	validLogLevels        = []string{"debug", "info", "warn", "error"}
	validStates           = []string{"all", "open", "closed"}
	validDuplicatePolicy  = []string{"last_write_wins", "first_write_wins"}
	validRetryStrategies  = []string{"fixed", "exponential"}
	validReportFormats    = []string{"text", "yaml"}
	defaultTopPercents    = []float64{1, 5, 10, 20}
	defaultActivityBins   = []float64{0, 5, 10, 20, 30, 40, 50, 100, 150, 200, 250, 300, 350, 400, 450, 500, 1000}
	defaultAnalysisLabels = []string{
		"config", "constants", "convolution", "coordinates", "cosmology",
		"io.ascii", "io.fits", "io.misc", "io.misc.asdf", "io.registry",
		"io.votable", "logging", "modeling", "nddata", "samp", "stats",
		"table", "testing", "time", "timeseries", "uncertainty",
		"unified-io", "units", "utils", "utils.iers", "visualization",
		"visualization.wcsaxes", "wcs", "wcs.wcsapi",
	}
)

const dateLayout = "2006-01-02"

// Config is the root application configuration.
type Config struct {
	LogLevel  string
	GitHub    GitHubConfig
	Harvest   HarvestConfig
	Retry     RetryConfig
	Analysis  AnalysisConfig
	Telemetry TelemetryConfig
}

// GitHubConfig configures the issue tracker API.
type GitHubConfig struct {
	APIBaseURL     string
	Owner          string
	Repo           string
	TokenEnv       string
	RequestTimeout time.Duration
	App            GitHubAppConfig
}

// GitHubAppConfig selects GitHub App installation authentication instead of a token.
type GitHubAppConfig struct {
	AppID          int64  `yaml:"app_id"`
	InstallationID int64  `yaml:"installation_id"`
	PrivateKeyPath string `yaml:"private_key_path"`
}

// Enabled reports whether any App field is set.
func (a GitHubAppConfig) Enabled() bool {
	return a.AppID != 0 || a.InstallationID != 0 || a.PrivateKeyPath != ""
}

// HarvestConfig configures the issue harvester.
type HarvestConfig struct {
	Output          string
	States          []string
	PerPage         int
	Throttle        time.Duration
	DuplicatePolicy string
	MetricsTextfile string
}

// RetryConfig configures retries of rate-limited pages.
type RetryConfig struct {
	Strategy    string
	Delay       time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

// AnalysisConfig configures the metrics report.
type AnalysisConfig struct {
	Input              string
	FirstYear          int
	LastYear           int
	RecentSince        time.Time
	TrailingWindow     time.Duration
	ExcludeZeroAuthors bool
	TopN               int
	TopPercents        []float64
	ActivityBins       []float64
	Labels             []string
	BugLabel           string
	Format             string
	Output             string
	MetricsTextfile    string
}

// Cutoff returns the start of the recent-activity window.
func (a AnalysisConfig) Cutoff(now time.Time) time.Time {
	if !a.RecentSince.IsZero() {
		return a.RecentSince
	}
	return now.Add(-a.TrailingWindow)
}

// TelemetryConfig configures OpenTelemetry behavior.
type TelemetryConfig struct {
	OTELEnabled          bool
	OTELTraceMode        string
	OTELTraceSampleRatio float64
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := rawConfig{}.toConfig()
	applyDefaults(cfg)
	return cfg
}

// Load reads configuration from YAML and validates the result.
func Load(reader io.Reader) (*Config, error) {
	if reader == nil {
		return nil, fmt.Errorf("config reader is nil")
	}

	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)

	var raw rawConfig
	if err := decoder.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	cfg := raw.toConfig()
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads the YAML file at path, or the defaults when path is empty.
func LoadFile(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()
	return Load(file)
}

// LoadDotEnv loads variables from the .env files that exist. Variables already
// present in the environment are not overridden.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
	}
	return nil
}

// Token returns the API token from the environment variable named by TokenEnv.
func (g GitHubConfig) Token(lookup func(string) (string, bool)) string {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	value, ok := lookup(g.TokenEnv)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

// Validate validates configuration values.
func (c *Config) Validate() error {
	var errs []string

	if !slices.Contains(validLogLevels, c.LogLevel) {
		errs = append(errs, "log_level must be one of debug|info|warn|error")
	}

	if strings.TrimSpace(c.GitHub.Owner) == "" {
		errs = append(errs, "github.owner is required")
	}
	if strings.TrimSpace(c.GitHub.Repo) == "" {
		errs = append(errs, "github.repo is required")
	}
	if c.GitHub.RequestTimeout < 0 {
		errs = append(errs, "github.request_timeout must be >= 0")
	}
	if c.GitHub.App.Enabled() {
		if c.GitHub.App.AppID <= 0 {
			errs = append(errs, "github.app.app_id must be > 0")
		}
		if c.GitHub.App.InstallationID <= 0 {
			errs = append(errs, "github.app.installation_id must be > 0")
		}
		if c.GitHub.App.PrivateKeyPath == "" {
			errs = append(errs, "github.app.private_key_path is required")
		}
	}

	if strings.TrimSpace(c.Harvest.Output) == "" {
		errs = append(errs, "harvest.output is required")
	}
	for _, state := range c.Harvest.States {
		if !slices.Contains(validStates, state) {
			errs = append(errs, "harvest.states entries must be one of all|open|closed")
			break
		}
	}
	if c.Harvest.PerPage <= 0 || c.Harvest.PerPage > 100 {
		errs = append(errs, "harvest.per_page must be in 1..100")
	}
	if c.Harvest.Throttle < 0 {
		errs = append(errs, "harvest.throttle must be >= 0")
	}
	if !slices.Contains(validDuplicatePolicy, c.Harvest.DuplicatePolicy) {
		errs = append(errs, "harvest.duplicate_policy must be last_write_wins or first_write_wins")
	}

	if !slices.Contains(validRetryStrategies, c.Retry.Strategy) {
		errs = append(errs, "retry.strategy must be fixed or exponential")
	}
	if c.Retry.Delay < 0 {
		errs = append(errs, "retry.delay must be >= 0")
	}
	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, "retry.max_attempts must be >= 0")
	}
	if c.Retry.MaxDelay < 0 {
		errs = append(errs, "retry.max_delay must be >= 0")
	}
	if c.Retry.Strategy == "exponential" && c.Retry.MaxDelay > 0 && c.Retry.MaxDelay < c.Retry.Delay {
		errs = append(errs, "retry.max_delay must be >= retry.delay")
	}

	if c.Analysis.FirstYear != 0 && c.Analysis.LastYear != 0 && c.Analysis.FirstYear > c.Analysis.LastYear {
		errs = append(errs, "analysis.first_year must be <= analysis.last_year")
	}
	if c.Analysis.RecentSince.IsZero() && c.Analysis.TrailingWindow <= 0 {
		errs = append(errs, "analysis.trailing_window must be > 0 when analysis.recent_since is unset")
	}
	if c.Analysis.TopN < 0 {
		errs = append(errs, "analysis.top_n must be >= 0")
	}
	for _, p := range c.Analysis.TopPercents {
		if p <= 0 || p > 100 {
			errs = append(errs, "analysis.top_percents entries must be in (0, 100]")
			break
		}
	}
	if hasDuplicates(c.Analysis.TopPercents) {
		errs = append(errs, "analysis.top_percents must not repeat")
	}
	if hasDuplicates(c.Analysis.Labels) {
		errs = append(errs, "analysis.labels must not repeat")
	}
	if len(c.Analysis.ActivityBins) < 2 {
		errs = append(errs, "analysis.activity_bins must contain at least two edges")
	}
	for i := 1; i < len(c.Analysis.ActivityBins); i++ {
		if c.Analysis.ActivityBins[i] <= c.Analysis.ActivityBins[i-1] {
			errs = append(errs, "analysis.activity_bins must be strictly increasing")
			break
		}
	}
	if !slices.Contains(validReportFormats, c.Analysis.Format) {
		errs = append(errs, "analysis.format must be text or yaml")
	}

	if c.Telemetry.OTELTraceSampleRatio < 0 || c.Telemetry.OTELTraceSampleRatio > 1 {
		errs = append(errs, "telemetry.otel_trace_sample_ratio must be in [0, 1]")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.GitHub.Owner == "" {
		cfg.GitHub.Owner = "astropy"
	}
	if cfg.GitHub.Repo == "" {
		cfg.GitHub.Repo = "astropy"
	}
	if cfg.GitHub.TokenEnv == "" {
		cfg.GitHub.TokenEnv = "GITHUB_TOKEN"
	}
	if cfg.GitHub.RequestTimeout == 0 {
		cfg.GitHub.RequestTimeout = 30 * time.Second
	}
	if cfg.Harvest.Output == "" {
		cfg.Harvest.Output = "issues.csv"
	}
	if len(cfg.Harvest.States) == 0 {
		cfg.Harvest.States = []string{"all"}
	}
	if cfg.Harvest.PerPage == 0 {
		cfg.Harvest.PerPage = 100
	}
	if cfg.Harvest.Throttle == 0 {
		cfg.Harvest.Throttle = time.Second
	}
	if cfg.Harvest.DuplicatePolicy == "" {
		cfg.Harvest.DuplicatePolicy = "last_write_wins"
	}
	if cfg.Retry.Strategy == "" {
		cfg.Retry.Strategy = "fixed"
	}
	if cfg.Retry.Delay == 0 {
		cfg.Retry.Delay = time.Second
	}
	if cfg.Retry.Strategy == "exponential" && cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = max(defaultMaxRetryDelay, cfg.Retry.Delay)
	}
	if cfg.Analysis.Input == "" {
		cfg.Analysis.Input = cfg.Harvest.Output
	}
	if cfg.Analysis.TrailingWindow == 0 {
		cfg.Analysis.TrailingWindow = 3 * 365 * 24 * time.Hour
	}
	if cfg.Analysis.TopN == 0 {
		cfg.Analysis.TopN = 25
	}
	if len(cfg.Analysis.TopPercents) == 0 {
		cfg.Analysis.TopPercents = slices.Clone(defaultTopPercents)
	}
	if len(cfg.Analysis.ActivityBins) == 0 {
		cfg.Analysis.ActivityBins = slices.Clone(defaultActivityBins)
	}
	if len(cfg.Analysis.Labels) == 0 {
		cfg.Analysis.Labels = slices.Clone(defaultAnalysisLabels)
	}
	if cfg.Analysis.BugLabel == "" {
		cfg.Analysis.BugLabel = "Bug"
	}
	if cfg.Analysis.Format == "" {
		cfg.Analysis.Format = "text"
	}
	if cfg.Telemetry.OTELTraceMode == "" {
		cfg.Telemetry.OTELTraceMode = "off"
	}
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil || value.Kind == 0 || strings.TrimSpace(value.Value) == "" {
		d.Duration = 0
		return nil
	}

	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode duration: %w", err)
	}

	parsed, err := parseFlexibleDuration(raw)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func parseFlexibleDuration(raw string) (time.Duration, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}

	if standard, err := time.ParseDuration(trimmed); err == nil {
		return standard, nil
	}

	switch {
	case strings.HasSuffix(trimmed, "d"):
		return parseDurationWithMultiplier(strings.TrimSuffix(trimmed, "d"), 24)
	case strings.HasSuffix(trimmed, "w"):
		return parseDurationWithMultiplier(strings.TrimSuffix(trimmed, "w"), 24*7)
	case strings.HasSuffix(trimmed, "y"):
		return parseDurationWithMultiplier(strings.TrimSuffix(trimmed, "y"), 24*365)
	}

	return 0, fmt.Errorf("parse duration %q: invalid unit", raw)
}

func parseDurationWithMultiplier(numeric string, multiplierHours float64) (time.Duration, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(numeric), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration value %q: %w", numeric, err)
	}

	nanos := value * multiplierHours * float64(time.Hour)
	if nanos > math.MaxInt64 || nanos < math.MinInt64 {
		return 0, fmt.Errorf("parse duration value %q: out of range", numeric)
	}
	return time.Duration(nanos), nil
}

// date accepts YYYY-MM-DD or RFC 3339 timestamps.
type date struct {
	time.Time
}

func (d *date) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode date: %w", err)
	}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		d.Time = time.Time{}
		return nil
	}
	if parsed, err := time.Parse(dateLayout, trimmed); err == nil {
		d.Time = parsed
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return fmt.Errorf("parse date %q: want YYYY-MM-DD or RFC 3339", raw)
	}
	d.Time = parsed.UTC()
	return nil
}

type rawConfig struct {
	LogLevel  string       `yaml:"log_level"`
	GitHub    rawGitHub    `yaml:"github"`
	Harvest   rawHarvest   `yaml:"harvest"`
	Retry     rawRetry     `yaml:"retry"`
	Analysis  rawAnalysis  `yaml:"analysis"`
	Telemetry rawTelemetry `yaml:"telemetry"`
}

type rawGitHub struct {
	APIBaseURL     string          `yaml:"api_base_url"`
	Owner          string          `yaml:"owner"`
	Repo           string          `yaml:"repo"`
	TokenEnv       string          `yaml:"token_env"`
	RequestTimeout duration        `yaml:"request_timeout"`
	App            GitHubAppConfig `yaml:"app"`
}

type rawHarvest struct {
	Output          string   `yaml:"output"`
	States          []string `yaml:"states"`
	PerPage         int      `yaml:"per_page"`
	Throttle        duration `yaml:"throttle"`
	DuplicatePolicy string   `yaml:"duplicate_policy"`
	MetricsTextfile string   `yaml:"metrics_textfile"`
}

type rawRetry struct {
	Strategy    string   `yaml:"strategy"`
	Delay       duration `yaml:"delay"`
	MaxDelay    duration `yaml:"max_delay"`
	MaxAttempts *int     `yaml:"max_attempts"`
}

type rawAnalysis struct {
	Input              string    `yaml:"input"`
	FirstYear          int       `yaml:"first_year"`
	LastYear           int       `yaml:"last_year"`
	RecentSince        date      `yaml:"recent_since"`
	TrailingWindow     duration  `yaml:"trailing_window"`
	ExcludeZeroAuthors bool      `yaml:"exclude_zero_authors"`
	TopN               int       `yaml:"top_n"`
	TopPercents        []float64 `yaml:"top_percents"`
	ActivityBins       []float64 `yaml:"activity_bins"`
	Labels             []string  `yaml:"labels"`
	BugLabel           string    `yaml:"bug_label"`
	Format             string    `yaml:"format"`
	Output             string    `yaml:"output"`
	MetricsTextfile    string    `yaml:"metrics_textfile"`
}

type rawTelemetry struct {
	OTELEnabled          bool    `yaml:"otel_enabled"`
	OTELTraceMode        string  `yaml:"otel_trace_mode"`
	OTELTraceSampleRatio float64 `yaml:"otel_trace_sample_ratio"`
}

// defaultMaxRetryDelay caps exponential backoff when retry.max_delay is omitted.
const defaultMaxRetryDelay = 5 * time.Minute

// defaultMaxAttempts applies when retry.max_attempts is omitted; an explicit 0 retries forever.
const defaultMaxAttempts = 3600

func (r rawConfig) toConfig() *Config {
	cfg := &Config{
		LogLevel: strings.ToLower(strings.TrimSpace(r.LogLevel)),
		GitHub: GitHubConfig{
			APIBaseURL:     strings.TrimSpace(r.GitHub.APIBaseURL),
			Owner:          strings.TrimSpace(r.GitHub.Owner),
			Repo:           strings.TrimSpace(r.GitHub.Repo),
			TokenEnv:       strings.TrimSpace(r.GitHub.TokenEnv),
			RequestTimeout: r.GitHub.RequestTimeout.Duration,
			App:            r.GitHub.App,
		},
		Harvest: HarvestConfig{
			Output:          r.Harvest.Output,
			States:          make([]string, 0, len(r.Harvest.States)),
			PerPage:         r.Harvest.PerPage,
			Throttle:        r.Harvest.Throttle.Duration,
			DuplicatePolicy: strings.ToLower(strings.TrimSpace(r.Harvest.DuplicatePolicy)),
			MetricsTextfile: r.Harvest.MetricsTextfile,
		},
		Retry: RetryConfig{
			Strategy:    strings.ToLower(strings.TrimSpace(r.Retry.Strategy)),
			Delay:       r.Retry.Delay.Duration,
			MaxDelay:    r.Retry.MaxDelay.Duration,
			MaxAttempts: defaultMaxAttempts,
		},
		Analysis: AnalysisConfig{
			Input:              r.Analysis.Input,
			FirstYear:          r.Analysis.FirstYear,
			LastYear:           r.Analysis.LastYear,
			RecentSince:        r.Analysis.RecentSince.Time,
			TrailingWindow:     r.Analysis.TrailingWindow.Duration,
			ExcludeZeroAuthors: r.Analysis.ExcludeZeroAuthors,
			TopN:               r.Analysis.TopN,
			TopPercents:        r.Analysis.TopPercents,
			ActivityBins:       r.Analysis.ActivityBins,
			Labels:             r.Analysis.Labels,
			BugLabel:           r.Analysis.BugLabel,
			Format:             strings.ToLower(strings.TrimSpace(r.Analysis.Format)),
			Output:             r.Analysis.Output,
			MetricsTextfile:    r.Analysis.MetricsTextfile,
		},
		Telemetry: TelemetryConfig{
			OTELEnabled:          r.Telemetry.OTELEnabled,
			OTELTraceMode:        r.Telemetry.OTELTraceMode,
			OTELTraceSampleRatio: r.Telemetry.OTELTraceSampleRatio,
		},
	}

	if r.Retry.MaxAttempts != nil {
		cfg.Retry.MaxAttempts = *r.Retry.MaxAttempts
	}
	for _, state := range r.Harvest.States {
		cfg.Harvest.States = append(cfg.Harvest.States, strings.ToLower(strings.TrimSpace(state)))
	}

	return cfg
}

func hasDuplicates[T comparable](values []T) bool {
	seen := make(map[T]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			return true
		}
		seen[v] = struct{}{}
	}
	return false
}
