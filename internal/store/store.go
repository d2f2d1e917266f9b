// internal/store/store.go
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/transcheck/internal/results"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("run not found")

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Schema creates the tables SaveRun writes to.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT PRIMARY KEY,
    target      TEXT NOT NULL,
    source      TEXT NOT NULL,
    sheet       TEXT NOT NULL,
    driver      TEXT NOT NULL,
    passed      BOOLEAN NOT NULL,
    started_at  TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS outcomes (
    run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    idx           INTEGER NOT NULL,
    title         TEXT NOT NULL,
    kind          TEXT NOT NULL,
    case_id       TEXT NOT NULL,
    sheet         TEXT NOT NULL,
    row_number    INTEGER NOT NULL,
    polarity      TEXT NOT NULL,
    input         TEXT NOT NULL,
    expected      TEXT NOT NULL,
    raw           TEXT NOT NULL,
    extracted     TEXT NOT NULL,
    actual_norm   TEXT NOT NULL,
    expected_norm TEXT NOT NULL,
    rule          TEXT NOT NULL,
    pass          BOOLEAN NOT NULL,
    message       TEXT NOT NULL,
    error         TEXT NOT NULL,
    resolution    TEXT NOT NULL,
    output_kind   TEXT NOT NULL,
    settled       BOOLEAN NOT NULL,
    samples       INTEGER NOT NULL,
    started_at    TIMESTAMPTZ NOT NULL,
    duration_ms   BIGINT NOT NULL,
    attachments   JSONB NOT NULL,
    PRIMARY KEY (run_id, idx)
);
`

var outcomeColumns = []string{
	"run_id", "idx", "title", "kind", "case_id", "sheet", "row_number", "polarity",
	"input", "expected", "raw", "extracted", "actual_norm", "expected_norm", "rule",
	"pass", "message", "error", "resolution", "output_kind", "settled", "samples",
	"started_at", "duration_ms", "attachments",
}

const (
	sqlInsertRun = `
        INSERT INTO runs (id, target, source, sheet, driver, passed, started_at, finished_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
    `
	sqlSelectRun = `
        SELECT id, target, source, sheet, driver, started_at, finished_at
        FROM runs
        WHERE id = $1;
    `
	sqlSelectOutcomes = `
        SELECT idx, title, kind, case_id, sheet, row_number, polarity, input, expected, raw, extracted,
               actual_norm, expected_norm, rule, pass, message, error, resolution, output_kind,
               settled, samples, started_at, duration_ms, attachments
        FROM outcomes
        WHERE run_id = $1
        ORDER BY idx ASC;
    `
	sqlListRuns = `
        SELECT id, target, passed, started_at, finished_at
        FROM runs
        ORDER BY started_at DESC
        LIMIT $1;
    `
)

// RunInfo is the header of a stored run.
type RunInfo struct {
	ID         string
	Target     string
	Passed     bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// Store persists runs to PostgreSQL.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// Migrate creates the tables when they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// SaveRun writes run and all of its outcomes in one transaction.
func (s *Store) SaveRun(ctx context.Context, run *results.Run) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	_, err = tx.Exec(ctx, sqlInsertRun,
		run.ID, run.Target, run.Source, run.Sheet, run.Driver, run.Passed(),
		run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	if len(run.Outcomes) > 0 {
		if err := s.persistOutcomes(ctx, tx, run); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Info("Stored run.", zap.String("run_id", run.ID), zap.Int("outcomes", len(run.Outcomes)))
	return nil
}

func (s *Store) persistOutcomes(ctx context.Context, tx pgx.Tx, run *results.Run) error {
	rows := make([][]interface{}, len(run.Outcomes))
	for i, o := range run.Outcomes {
		atts, err := encodeAttachments(o.Attachments)
		if err != nil {
			return err
		}
		rows[i] = []interface{}{
			run.ID, o.Index, o.Title, string(o.Kind), o.CaseID, o.Sheet, o.Row, o.Polarity,
			o.Input, o.Expected, o.Raw, o.Extracted, o.ActualNorm, o.ExpectedNorm, o.Rule,
			o.Pass, o.Message, o.Error, o.Resolution, o.OutputKind, o.Settled, o.Samples,
			o.StartedAt.UTC(), o.Duration.Milliseconds(), atts,
		}
	}

	copyCount, err := tx.CopyFrom(ctx, pgx.Identifier{"outcomes"}, outcomeColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy outcomes: %w", err)
	}
	if int(copyCount) != len(rows) {
		return fmt.Errorf("mismatch in copied outcomes count: expected %d, got %d", len(rows), copyCount)
	}
	return nil
}

func encodeAttachments(atts []results.Attachment) ([]byte, error) {
	if len(atts) == 0 {
		return []byte("[]"), nil
	}
	b, err := json.Marshal(atts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode attachments: %w", err)
	}
	return b, nil
}

// LoadRun reads a stored run back with its outcomes in index order.
func (s *Store) LoadRun(ctx context.Context, id string) (*results.Run, error) {
	run := &results.Run{}
	err := s.pool.QueryRow(ctx, sqlSelectRun, id).Scan(
		&run.ID, &run.Target, &run.Source, &run.Sheet, &run.Driver, &run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("failed to query run %s: %w", id, err)
	}

	rows, err := s.pool.Query(ctx, sqlSelectOutcomes, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			o          results.Outcome
			kind       string
			durationMS int64
			atts       []byte
		)
		err := rows.Scan(
			&o.Index, &o.Title, &kind, &o.CaseID, &o.Sheet, &o.Row, &o.Polarity,
			&o.Input, &o.Expected, &o.Raw, &o.Extracted, &o.ActualNorm, &o.ExpectedNorm, &o.Rule,
			&o.Pass, &o.Message, &o.Error, &o.Resolution, &o.OutputKind, &o.Settled, &o.Samples,
			&o.StartedAt, &durationMS, &atts,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outcome row: %w", err)
		}
		o.Kind = results.Kind(kind)
		o.Duration = time.Duration(durationMS) * time.Millisecond
		if len(atts) > 0 {
			if err := json.Unmarshal(atts, &o.Attachments); err != nil {
				return nil, fmt.Errorf("failed to decode attachments of outcome %d: %w", o.Index, err)
			}
			if len(o.Attachments) == 0 {
				o.Attachments = nil
			}
		}
		run.Outcomes = append(run.Outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunInfo, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, sqlListRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var r RunInfo
		if err := rows.Scan(&r.ID, &r.Target, &r.Passed, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return runs, nil
}
