// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/transcheck/internal/page"
	"github.com/xkilldash9x/transcheck/internal/textnorm"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Database() DatabaseConfig
	Browser() BrowserConfig
	Target() TargetConfig
	Cases() CasesConfig
	Resolver() ResolverConfig
	Poller() PollerConfig
	Extract() ExtractConfig
	Runner() RunnerConfig
	Report() ReportConfig

	SetCasesPath(string)
	SetBrowserHeadless(bool)
	SetBrowserDriver(string)
	SetRunnerConcurrency(int)
	SetRunnerFilter(string)
	SetReportFormats([]string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	DatabaseCfg DatabaseConfig `mapstructure:"database" yaml:"database"`
	BrowserCfg  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	TargetCfg   TargetConfig   `mapstructure:"target" yaml:"target"`
	CasesCfg    CasesConfig    `mapstructure:"cases" yaml:"cases"`
	ResolverCfg ResolverConfig `mapstructure:"resolver" yaml:"resolver"`
	PollerCfg   PollerConfig   `mapstructure:"poller" yaml:"poller"`
	ExtractCfg  ExtractConfig  `mapstructure:"extract" yaml:"extract"`
	RunnerCfg   RunnerConfig   `mapstructure:"runner" yaml:"runner"`
	ReportCfg   ReportConfig   `mapstructure:"report" yaml:"report"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Database() DatabaseConfig { return c.DatabaseCfg }
func (c *Config) Browser() BrowserConfig   { return c.BrowserCfg }
func (c *Config) Target() TargetConfig     { return c.TargetCfg }
func (c *Config) Cases() CasesConfig       { return c.CasesCfg }
func (c *Config) Resolver() ResolverConfig { return c.ResolverCfg }
func (c *Config) Poller() PollerConfig     { return c.PollerCfg }
func (c *Config) Extract() ExtractConfig   { return c.ExtractCfg }
func (c *Config) Runner() RunnerConfig     { return c.RunnerCfg }
func (c *Config) Report() ReportConfig     { return c.ReportCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetCasesPath(p string)       { c.CasesCfg.Path = p }
func (c *Config) SetBrowserHeadless(b bool)   { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserDriver(d string)   { c.BrowserCfg.Driver = d }
func (c *Config) SetRunnerConcurrency(n int)  { c.RunnerCfg.Concurrency = n }
func (c *Config) SetRunnerFilter(f string)    { c.RunnerCfg.Filter = f }
func (c *Config) SetReportFormats(f []string) { c.ReportCfg.Formats = f }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// DatabaseConfig holds the database connection details. Persistence is off
// while URL is empty.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// Supported browser drivers.
const (
	DriverChromedp   = "chromedp"
	DriverPlaywright = "playwright"
	DriverRod        = "rod"
)

// BrowserConfig holds settings for the browser that drives the target page.
type BrowserConfig struct {
	Driver          string         `mapstructure:"driver" yaml:"driver"`
	Headless        bool           `mapstructure:"headless" yaml:"headless"`
	ExecPath        string         `mapstructure:"exec_path" yaml:"exec_path"`
	ControlURL      string         `mapstructure:"control_url" yaml:"control_url"`
	IgnoreTLSErrors bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args            []string       `mapstructure:"args" yaml:"args"`
	Viewport        map[string]int `mapstructure:"viewport" yaml:"viewport"`
	// Install downloads the Playwright browsers before launching. Playwright driver only.
	Install bool `mapstructure:"install" yaml:"install"`
	// NavigationTimeout bounds one page load.
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// PostLoadWait is the pause after the DOM content loaded.
	PostLoadWait time.Duration  `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	Selectors    page.Selectors `mapstructure:"selectors" yaml:"selectors"`
}

// TargetConfig identifies the page under test.
type TargetConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// CasesConfig locates the case table.
type CasesConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// ResolverConfig tunes output field discovery.
type ResolverConfig struct {
	Probe        string        `mapstructure:"probe" yaml:"probe"`
	KeyDelay     time.Duration `mapstructure:"key_delay" yaml:"key_delay"`
	Settle       time.Duration `mapstructure:"settle" yaml:"settle"`
	InputTimeout time.Duration `mapstructure:"input_timeout" yaml:"input_timeout"`
	// Script names the Unicode script of the target language, e.g. "Sinhala".
	Script string `mapstructure:"script" yaml:"script"`
}

// PollerConfig holds the quiescence intervals.
type PollerConfig struct {
	Interval       time.Duration `mapstructure:"interval" yaml:"interval"`
	ChangedConfirm time.Duration `mapstructure:"changed_confirm" yaml:"changed_confirm"`
	SteadyConfirm  time.Duration `mapstructure:"steady_confirm" yaml:"steady_confirm"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ExtractConfig configures output isolation from container text.
type ExtractConfig struct {
	Label         string   `mapstructure:"label" yaml:"label"`
	Markers       []string `mapstructure:"markers" yaml:"markers"`
	OversizeChars int      `mapstructure:"oversize_chars" yaml:"oversize_chars"`
}

// RunnerConfig controls suite execution.
type RunnerConfig struct {
	Concurrency int           `mapstructure:"concurrency" yaml:"concurrency"`
	CaseTimeout time.Duration `mapstructure:"case_timeout" yaml:"case_timeout"`
	KeyDelay    time.Duration `mapstructure:"key_delay" yaml:"key_delay"`
	// NavigationRate caps page loads per second across workers. Zero disables the cap.
	NavigationRate  float64 `mapstructure:"navigation_rate" yaml:"navigation_rate"`
	NavigationBurst int     `mapstructure:"navigation_burst" yaml:"navigation_burst"`
	// Filter is a regular expression over case ids; empty runs every case.
	Filter   string `mapstructure:"filter" yaml:"filter"`
	FailFast bool   `mapstructure:"fail_fast" yaml:"fail_fast"`
}

// Supported report formats.
var ReportFormats = []string{"text", "json", "junit", "sarif"}

// ReportConfig selects the report sinks.
type ReportConfig struct {
	Formats      []string `mapstructure:"formats" yaml:"formats"`
	OutputDir    string   `mapstructure:"output_dir" yaml:"output_dir"`
	ArtifactsDir string   `mapstructure:"artifacts_dir" yaml:"artifacts_dir"`
	NoColor      bool     `mapstructure:"no_color" yaml:"no_color"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "transcheck")
	v.SetDefault("logger.log_file", "transcheck.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.driver", DriverChromedp)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.install", false)
	v.SetDefault("browser.navigation_timeout", "60s")
	v.SetDefault("browser.post_load_wait", "1200ms")
	sel := page.DefaultSelectors()
	v.SetDefault("browser.selectors.editable", sel.Editable)
	v.SetDefault("browser.selectors.ui_editable", sel.UIEditable)
	v.SetDefault("browser.selectors.candidates", sel.Candidates)
	v.SetDefault("browser.selectors.read_only", sel.ReadOnly)
	v.SetDefault("browser.selectors.clear_label", sel.ClearLabel)

	// -- Target --
	v.SetDefault("target.url", "https://www.swifttranslator.com/")

	// -- Cases --
	v.SetDefault("cases.path", "TestCases.xlsx")

	// -- Resolver --
	v.SetDefault("resolver.probe", "oba suvendha?")
	v.SetDefault("resolver.key_delay", "10ms")
	v.SetDefault("resolver.settle", "1500ms")
	v.SetDefault("resolver.input_timeout", "15s")
	v.SetDefault("resolver.script", "Sinhala")

	// -- Poller --
	v.SetDefault("poller.interval", "300ms")
	v.SetDefault("poller.changed_confirm", "800ms")
	v.SetDefault("poller.steady_confirm", "600ms")
	v.SetDefault("poller.timeout", "20s")

	// -- Extract --
	v.SetDefault("extract.label", "Sinhala")
	v.SetDefault("extract.markers", []string{"🔁", "Translate", "🗑️", "Clear", "English"})
	v.SetDefault("extract.oversize_chars", 0)

	// -- Runner --
	v.SetDefault("runner.concurrency", 1)
	v.SetDefault("runner.case_timeout", "90s")
	v.SetDefault("runner.key_delay", "10ms")
	v.SetDefault("runner.navigation_rate", 0.0)
	v.SetDefault("runner.navigation_burst", 1)
	v.SetDefault("runner.fail_fast", false)

	// -- Report --
	v.SetDefault("report.formats", []string{"text"})
	v.SetDefault("report.output_dir", "reports")
	v.SetDefault("report.artifacts_dir", "")
	v.SetDefault("report.no_color", false)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// EXCEL_PATH is honored for compatibility with existing suites.
	v.BindEnv("cases.path", "TRANSCHECK_CASES_PATH", "EXCEL_PATH")
	v.BindEnv("database.url", "TRANSCHECK_DATABASE_URL", "DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{
		&c.CasesCfg.Path,
		&c.LoggerCfg.LogFile,
		&c.ReportCfg.OutputDir,
		&c.ReportCfg.ArtifactsDir,
		&c.BrowserCfg.ExecPath,
	} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch c.BrowserCfg.Driver {
	case DriverChromedp, DriverPlaywright, DriverRod:
	default:
		return fmt.Errorf("browser.driver must be one of %s, %s, %s", DriverChromedp, DriverPlaywright, DriverRod)
	}
	if c.TargetCfg.URL == "" {
		return fmt.Errorf("target.url is a required configuration field")
	}
	if u, err := url.Parse(c.TargetCfg.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("target.url must be an absolute URL, got %q", c.TargetCfg.URL)
	}
	if c.CasesCfg.Path == "" {
		return fmt.Errorf("cases.path is a required configuration field")
	}
	if c.RunnerCfg.Concurrency <= 0 {
		return fmt.Errorf("runner.concurrency must be a positive integer")
	}
	if c.RunnerCfg.CaseTimeout <= 0 {
		return fmt.Errorf("runner.case_timeout must be a positive duration")
	}
	if c.RunnerCfg.NavigationRate < 0 {
		return fmt.Errorf("runner.navigation_rate must not be negative")
	}
	if c.RunnerCfg.Filter != "" {
		if _, err := regexp.Compile(c.RunnerCfg.Filter); err != nil {
			return fmt.Errorf("runner.filter is not a valid regular expression: %w", err)
		}
	}
	if c.PollerCfg.Timeout <= 0 {
		return fmt.Errorf("poller.timeout must be a positive duration")
	}
	if _, err := textnorm.LookupScript(c.ResolverCfg.Script); err != nil {
		return fmt.Errorf("resolver.script: %w", err)
	}
	if _, err := c.BrowserCfg.Selectors.WithDefaults().ClearPattern(); err != nil {
		return fmt.Errorf("browser.selectors: %w", err)
	}
	for _, f := range c.ReportCfg.Formats {
		if !isReportFormat(f) {
			return fmt.Errorf("report.formats: unsupported format %q (supported: %s)", f, strings.Join(ReportFormats, ", "))
		}
	}
	return nil
}

func isReportFormat(f string) bool {
	for _, known := range ReportFormats {
		if strings.EqualFold(f, known) {
			return true
		}
	}
	return false
}
