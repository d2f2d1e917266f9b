// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/transcheck/internal/browser"
	"github.com/xkilldash9x/transcheck/internal/clock"
	"github.com/xkilldash9x/transcheck/internal/config"
	"github.com/xkilldash9x/transcheck/internal/observability"
)

// ErrSuiteFailed is returned when every step ran but at least one outcome failed.
var ErrSuiteFailed = errors.New("one or more checks failed")

type contextKey string

const configKey contextKey = "config"

// flagKeys binds command flags to configuration keys. A flag only overrides
// the config file and environment when it is set explicitly.
var flagKeys = map[string]string{
	"log-level":     "logger.level",
	"target":        "target.url",
	"cases":         "cases.path",
	"driver":        "browser.driver",
	"headless":      "browser.headless",
	"concurrency":   "runner.concurrency",
	"filter":        "runner.filter",
	"fail-fast":     "runner.fail_fast",
	"format":        "report.formats",
	"output-dir":    "report.output_dir",
	"artifacts-dir": "report.artifacts_dir",
	"no-color":      "report.no_color",
	"database-url":  "database.url",
}

// deps are the collaborators the commands are built on.
type deps struct {
	open   browser.Opener
	clock  clock.Clock
	stores storeProvider
}

func defaultDeps() deps {
	return deps{open: browser.Open, clock: clock.Real{}, stores: NewStoreProvider()}
}

// NewRootCommand creates a fresh command tree.
func NewRootCommand() *cobra.Command {
	return newRootCmd(defaultDeps())
}

func newRootCmd(d deps) *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "transcheck",
		Short: "transcheck runs spreadsheet-driven functional checks against a transliteration web page.",
		Long: `transcheck loads test cases from a spreadsheet, drives the target page in a
real browser, discovers the input and live output fields, waits for the output
to settle and judges every case by containment.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(cmd, v, cfgFile); err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "transcheck"})
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "transcheck"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Starting transcheck", zap.String("version", Version), zap.String("command", cmd.Name()))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./transcheck.yaml)")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		newRunCmd(d),
		newCasesCmd(),
		newProbeCmd(d),
		newUICmd(d),
		newReportCmd(d.stores),
		newLogsCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command tree with a signal-aware context.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	if err != nil && !errors.Is(err, ErrSuiteFailed) {
		observability.GetLogger().Error("Command execution failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	observability.Sync()
	return err
}

// initializeConfig reads the config file, the TRANSCHECK_ environment and the
// explicitly set flags of cmd into v.
func initializeConfig(cmd *cobra.Command, v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("transcheck")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("TRANSCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}

func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not found in context")
	}
	return cfg, nil
}
