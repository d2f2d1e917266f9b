// File: cmd/ui.go
package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/transcheck/internal/config"
	"github.com/xkilldash9x/transcheck/internal/observability"
	"github.com/xkilldash9x/transcheck/internal/results"
	"github.com/xkilldash9x/transcheck/internal/textnorm"
	"github.com/xkilldash9x/transcheck/internal/uicheck"
)

// newUICmd creates the `ui` command for the live-update and clear checks.
func newUICmd(d deps) *cobra.Command {
	uiCmd := &cobra.Command{
		Use:   "ui",
		Short: "Run the UI behaviour checks against the target page",
		Long: `Checks that the output updates while the input is typed in chunks and that
clearing the input clears or changes the output.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			return runUIChecks(ctx, cmd.OutOrStdout(), d, cfg)
		},
	}
	addBrowserFlags(uiCmd)
	addReportFlags(uiCmd)
	return uiCmd
}

func runUIChecks(ctx context.Context, out io.Writer, d deps, cfg config.Interface) error {
	logger := observability.GetLogger()

	script, err := textnorm.LookupScript(cfg.Resolver().Script)
	if err != nil {
		return fmt.Errorf("invalid resolver script: %w", err)
	}

	r, closeDriver, err := openRunner(ctx, d, uiConfig{cfg}, logger)
	if err != nil {
		return err
	}
	defer closeDriver()

	checker := uicheck.New(r.OpenTarget,
		uicheck.WithClock(d.clock),
		uicheck.WithLogger(logger),
		uicheck.WithScript(script),
		uicheck.WithInputTimeout(cfg.Resolver().InputTimeout),
	)

	run := &results.Run{
		ID:        uuid.NewString(),
		Target:    cfg.Target().URL,
		Source:    cfg.Target().URL,
		Driver:    cfg.Browser().Driver,
		StartedAt: d.clock.Now(),
	}
	run.Outcomes = checker.Run(ctx)
	run.FinishedAt = d.clock.Now()

	if err := publish(ctx, out, d, cfg, run, logger); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("ui checks aborted: %w", err)
	}
	if !run.Passed() {
		return ErrSuiteFailed
	}
	return nil
}

// uiConfig opens the browser with the UI input selector in place of the
// translation input selector.
type uiConfig struct {
	config.Interface
}

func (c uiConfig) Browser() config.BrowserConfig {
	b := c.Interface.Browser()
	b.Selectors = b.Selectors.ForUI()
	return b
}
