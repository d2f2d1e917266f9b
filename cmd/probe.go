// File: cmd/probe.go
package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/transcheck/internal/caseload"
	"github.com/xkilldash9x/transcheck/internal/config"
	"github.com/xkilldash9x/transcheck/internal/observability"
	"github.com/xkilldash9x/transcheck/internal/oracle"
	"github.com/xkilldash9x/transcheck/internal/runner"
)

// newProbeCmd creates the `probe` command, which resolves the fields of the
// target page once and optionally transliterates one phrase.
func newProbeCmd(d deps) *cobra.Command {
	var text, expected string

	probeCmd := &cobra.Command{
		Use:   "probe",
		Short: "Discover the input and output fields of the target page",
		Long: `Opens the target page, runs field discovery and prints which element was
chosen as the output and how. With --text the phrase is typed on a fresh page
and the settled output is printed; --expect also judges it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			return runProbe(ctx, cmd.OutOrStdout(), d, cfg, text, expected)
		},
	}

	addBrowserFlags(probeCmd)
	probeCmd.Flags().StringVar(&text, "text", "", "Phrase to type after discovery.")
	probeCmd.Flags().StringVar(&expected, "expect", "", "Expected substring of the output of --text.")
	return probeCmd
}

func runProbe(ctx context.Context, out io.Writer, d deps, cfg config.Interface, text, expected string) error {
	logger := observability.GetLogger()

	r, closeDriver, err := openRunner(ctx, d, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDriver()

	if err := describeResolution(ctx, out, r); err != nil {
		return err
	}
	if text == "" {
		return nil
	}

	c := caseload.Case{ID: "probe", Input: text, Expected: expected, Polarity: oracle.PolarityPositive}
	o := r.RunCase(ctx, 0, c)
	fmt.Fprintf(out, "\ninput:     %s\n", o.Input)
	if o.Error != "" {
		fmt.Fprintf(out, "error:     %s\n", o.Error)
		return ErrSuiteFailed
	}
	fmt.Fprintf(out, "raw:       %s\n", o.Raw)
	fmt.Fprintf(out, "extracted: %s\n", o.Extracted)
	fmt.Fprintf(out, "settled:   %t after %d samples\n", o.Settled, o.Samples)
	if expected != "" {
		fmt.Fprintf(out, "verdict:   %s (%s)\n", o.Status(), o.Rule)
		if !o.Pass {
			return ErrSuiteFailed
		}
	}
	return nil
}

func describeResolution(ctx context.Context, out io.Writer, r *runner.Runner) error {
	p, err := r.OpenTarget(ctx)
	if err != nil {
		return err
	}
	defer p.Close(context.WithoutCancel(ctx))

	res, err := r.Resolver().Resolve(ctx, p)
	if err != nil {
		return fmt.Errorf("failed to resolve fields: %w", err)
	}

	current, err := res.Output.Snapshot(ctx)
	if err != nil {
		current = fmt.Sprintf("<unreadable: %v>", err)
	}
	fmt.Fprintf(out, "resolution: %s\n", res.Path)
	fmt.Fprintf(out, "output:     %s\n", res.Kind)
	fmt.Fprintf(out, "candidates: %d\n", res.Candidates)
	if res.Path.Fallback() {
		fmt.Fprintln(out, "warning:    the probe phrase did not reveal a live output element")
	}
	fmt.Fprintf(out, "current:    %q\n", current)
	return nil
}
