// File: cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/transcheck/internal/config"
	"github.com/xkilldash9x/transcheck/internal/observability"
	"github.com/xkilldash9x/transcheck/internal/reporting"
	"github.com/xkilldash9x/transcheck/internal/results"
	"github.com/xkilldash9x/transcheck/internal/runner"
)

const driverCloseTimeout = 15 * time.Second

// newRunCmd creates and configures the `run` command.
func newRunCmd(d deps) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the functional suite from the case table",
		Long: `Loads the case table, runs every functional case against the target page in
a fresh page session and writes the configured reports. The command fails when
any outcome fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			return runSuite(ctx, cmd.OutOrStdout(), d, cfg)
		},
	}

	addBrowserFlags(runCmd)
	addReportFlags(runCmd)
	runCmd.Flags().String("cases", "", "Path to the case table (.xlsx or .csv). (Overrides config/env)")
	runCmd.Flags().IntP("concurrency", "j", 0, "Number of cases run in parallel. (Overrides config/env)")
	runCmd.Flags().String("filter", "", "Regular expression selecting case ids. (Overrides config/env)")
	runCmd.Flags().Bool("fail-fast", false, "Stop scheduling cases after the first failure.")
	runCmd.Flags().String("database-url", "", "PostgreSQL URL to store the run in. (Overrides config/env)")
	return runCmd
}

func addBrowserFlags(cmd *cobra.Command) {
	cmd.Flags().String("target", "", "URL of the page under test. (Overrides config/env)")
	cmd.Flags().String("driver", "", "Browser driver: chromedp, playwright or rod. (Overrides config/env)")
	cmd.Flags().Bool("headless", true, "Run the browser headless. (Overrides config/env)")
}

func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceP("format", "f", nil, "Report formats: text, json, junit, sarif. (Overrides config/env)")
	cmd.Flags().String("output-dir", "", "Directory for file reports; empty writes every report to stdout.")
	cmd.Flags().String("artifacts-dir", "", "Directory for per-case attachments.")
	cmd.Flags().Bool("no-color", false, "Disable colors in the text report.")
}

// runSuite contains the testable core of the `run` command.
func runSuite(ctx context.Context, out io.Writer, d deps, cfg config.Interface) error {
	logger := observability.GetLogger()

	r, closeDriver, err := openRunner(ctx, d, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDriver()

	run, runErr := r.Run(ctx)
	if run != nil {
		if err := publish(ctx, out, d, cfg, run, logger); err != nil {
			return errors.Join(runErr, err)
		}
	}
	if runErr != nil {
		return runErr
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run aborted: %w", err)
	}
	if !run.Passed() {
		return ErrSuiteFailed
	}
	return nil
}

// openRunner starts the configured browser and builds a runner on it.
// The returned func closes the browser.
func openRunner(ctx context.Context, d deps, cfg config.Interface, logger *zap.Logger) (*runner.Runner, func(), error) {
	drv, err := d.open(ctx, cfg.Browser(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start browser: %w", err)
	}
	closeDriver := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), driverCloseTimeout)
		defer cancel()
		if err := drv.Close(closeCtx); err != nil {
			logger.Warn("Error during browser shutdown", zap.Error(err))
		}
	}

	r, err := runner.New(cfg, drv, runner.WithLogger(logger), runner.WithClock(d.clock))
	if err != nil {
		closeDriver()
		return nil, nil, fmt.Errorf("failed to create runner: %w", err)
	}
	return r, closeDriver, nil
}

// publish writes the reports, the attachments and the stored copy of run.
func publish(ctx context.Context, out io.Writer, d deps, cfg config.Interface, run *results.Run, logger *zap.Logger) error {
	rc := cfg.Report()
	if err := writeReports(out, rc, run); err != nil {
		return err
	}

	if rc.ArtifactsDir != "" {
		n, err := reporting.WriteArtifacts(rc.ArtifactsDir, run)
		if err != nil {
			return err
		}
		logger.Info("Wrote attachments.", zap.String("dir", rc.ArtifactsDir), zap.Int("files", n))
	}

	if cfg.Database().URL != "" {
		if err := persistRun(ctx, d.stores, cfg, run); err != nil {
			return err
		}
	}
	return nil
}

// writeReports renders run in every configured format. The text report and,
// without an output directory, every other report go to out.
func writeReports(out io.Writer, rc config.ReportConfig, run *results.Run) error {
	opts := reporting.Options{NoColor: rc.NoColor, ToolVersion: Version}
	formats := rc.Formats
	if len(formats) == 0 {
		formats = []string{"text"}
	}

	var errs []error
	for _, format := range formats {
		format = strings.ToLower(format)
		var rep reporting.Reporter
		if format == "text" || rc.OutputDir == "" {
			rep = reporting.NewWriter(format, reporting.NopCloser(out), opts)
		} else {
			var err error
			rep, err = reporting.New(format, reporting.DefaultPath(rc.OutputDir, format), opts)
			if err != nil {
				errs = append(errs, err)
				continue
			}
		}
		if err := rep.Write(run); err != nil {
			errs = append(errs, fmt.Errorf("failed to write %s report: %w", format, err))
		}
		if err := rep.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s report: %w", format, err))
		}
	}
	return errors.Join(errs...)
}
