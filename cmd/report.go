// File: cmd/report.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/transcheck/internal/config"
	"github.com/xkilldash9x/transcheck/internal/observability"
	"github.com/xkilldash9x/transcheck/internal/results"
	"github.com/xkilldash9x/transcheck/internal/store"
)

// runStore is the persistence surface the commands use.
type runStore interface {
	Migrate(ctx context.Context) error
	SaveRun(ctx context.Context, run *results.Run) error
	LoadRun(ctx context.Context, id string) (*results.Run, error)
	ListRuns(ctx context.Context, limit int) ([]store.RunInfo, error)
}

// storeProvider defines an interface for components that can create a data store.
// This abstraction allows the injection of a mock store instead of a live database connection.
type storeProvider interface {
	// Create initializes and returns a store, a cleanup function to release
	// resources, and an error if the creation fails.
	Create(ctx context.Context, cfg config.Interface) (runStore, func(), error)
}

// defaultStoreProvider is the concrete implementation of storeProvider used in
// production. It establishes a real connection to the PostgreSQL database.
type defaultStoreProvider struct{}

// NewStoreProvider is a factory function that creates a new defaultStoreProvider.
func NewStoreProvider() storeProvider {
	return &defaultStoreProvider{}
}

// Create connects to the PostgreSQL database using the provided configuration
// and returns the store along with a cleanup function that closes the pool.
func (p *defaultStoreProvider) Create(ctx context.Context, cfg config.Interface) (runStore, func(), error) {
	logger := observability.GetLogger()
	if cfg.Database().URL == "" {
		return nil, nil, fmt.Errorf("database URL is not configured (TRANSCHECK_DATABASE_URL)")
	}

	pool, err := pgxpool.New(ctx, cfg.Database().URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storeService, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize store service: %w", err)
	}

	cleanup := func() {
		pool.Close()
		logger.Debug("Database connection pool closed.")
	}
	return storeService, cleanup, nil
}

// persistRun stores run, creating the schema on first use.
func persistRun(ctx context.Context, provider storeProvider, cfg config.Interface, run *results.Run) error {
	st, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	// The run is stored even when the suite was interrupted.
	ctx = context.WithoutCancel(ctx)
	if err := st.Migrate(ctx); err != nil {
		return err
	}
	if err := st.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("failed to store run %s: %w", run.ID, err)
	}
	return nil
}

// newReportCmd creates and configures the `report` command.
func newReportCmd(provider storeProvider) *cobra.Command {
	var runID string
	var list bool
	var limit int

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Render a stored run or list the stored runs",
		Long: `Reads a run back from the database and renders it in the configured report
formats, exactly as the run command did when it finished.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if !list && runID == "" {
				return fmt.Errorf("either --run-id or --list is required")
			}
			return runReport(ctx, cmd.OutOrStdout(), observability.GetLogger(), cfg, provider, runID, list, limit)
		},
	}

	addReportFlags(reportCmd)
	reportCmd.Flags().StringVar(&runID, "run-id", "", "The ID of the run to render.")
	reportCmd.Flags().BoolVar(&list, "list", false, "List the most recent runs instead.")
	reportCmd.Flags().IntVar(&limit, "limit", 20, "Number of runs listed by --list.")
	reportCmd.Flags().String("database-url", "", "PostgreSQL URL of the run store. (Overrides config/env)")
	return reportCmd
}

// runReport contains the core, testable logic of the `report` command.
func runReport(
	ctx context.Context,
	out io.Writer,
	logger *zap.Logger,
	cfg config.Interface,
	provider storeProvider,
	runID string,
	list bool,
	limit int,
) error {
	st, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	if list {
		runs, err := st.ListRuns(ctx, limit)
		if err != nil {
			return err
		}
		return printRuns(out, runs)
	}

	logger.Info("Rendering stored run", zap.String("run_id", runID))
	run, err := st.LoadRun(ctx, runID)
	if err != nil {
		return err
	}
	return writeReports(out, cfg.Report(), run)
}

func printRuns(out io.Writer, runs []store.RunInfo) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSTARTED\tDURATION\tRESULT\tTARGET")
	for _, r := range runs {
		result := "failed"
		if r.Passed {
			result = "passed"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.StartedAt.UTC().Format(time.RFC3339), r.FinishedAt.Sub(r.StartedAt).Round(time.Second), result, r.Target)
	}
	return tw.Flush()
}
