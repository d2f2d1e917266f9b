// internal/store/store_test.go
package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/transcheck/internal/results"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

// ArgumentMatcherFunc is a helper to create inline mock matchers.
type ArgumentMatcherFunc func(interface{}) bool

func (f ArgumentMatcherFunc) Match(v interface{}) bool {
	return f(v)
}

// anyTime accepts any timestamp.
var anyTime = ArgumentMatcherFunc(func(v interface{}) bool {
	_, ok := v.(time.Time)
	return ok
})

func newStore(t *testing.T, logger *zap.Logger) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mockPool.ExpectPing()
	s, err := New(context.Background(), mockPool, logger)
	require.NoError(t, err)
	return s, mockPool
}

func sampleRun() *results.Run {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return &results.Run{
		ID:         uuid.NewString(),
		Target:     "https://translit.example/",
		Source:     "TestCases.xlsx",
		Sheet:      "Test cases",
		Driver:     "chromedp",
		StartedAt:  start,
		FinishedAt: start.Add(time.Minute),
		Outcomes: []results.Outcome{
			{Index: 0, Title: "Excel source: TestCases.xlsx", Kind: results.KindSanity, Pass: true},
			{
				Index: 2, Title: "001 | Pos_Fun_0001 | row_3", Kind: results.KindFunctional, CaseID: "Pos_Fun_0001",
				Row: 3, Pass: true, Settled: true, StartedAt: start, Duration: 1200 * time.Millisecond,
				Attachments: []results.Attachment{results.TextAttachment(results.AttachInput, "mama")},
			},
		},
	}
}

func TestNewStore(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err = New(context.Background(), mockPool, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr, "Error from ping should be propagated")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestMigrate(t *testing.T) {
	s, mockPool := newStore(t, nil)
	mockPool.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS runs")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSaveRun(t *testing.T) {
	ctx := context.Background()

	t.Run("should persist the run and its outcomes without rollback errors", func(t *testing.T) {
		core, logs := observer.New(zapcore.ErrorLevel)
		s, mockPool := newStore(t, zap.New(core))
		run := sampleRun()

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs(run.ID, run.Target, run.Source, run.Sheet, run.Driver, true, anyTime, anyTime).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"outcomes"}, outcomeColumns).WillReturnResult(2)
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, s.SaveRun(ctx, run))
		assert.NoError(t, mockPool.ExpectationsWereMet())
		assert.Empty(t, logs.All(), "Expected no errors logged on successful commit")
	})

	t.Run("should skip the copy for a run without outcomes", func(t *testing.T) {
		s, mockPool := newStore(t, nil)
		run := sampleRun()
		run.Outcomes = nil

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs(run.ID, run.Target, run.Source, run.Sheet, run.Driver, false, anyTime, anyTime).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, s.SaveRun(ctx, run))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should handle transaction begin failure", func(t *testing.T) {
		s, mockPool := newStore(t, nil)
		beginErr := errors.New("cannot begin tx")
		mockPool.ExpectBegin().WillReturnError(beginErr)

		err := s.SaveRun(ctx, sampleRun())
		require.Error(t, err)
		assert.ErrorIs(t, err, beginErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should rollback if copying outcomes fails", func(t *testing.T) {
		s, mockPool := newStore(t, nil)
		run := sampleRun()
		copyErr := errors.New("copy from failed")

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs(run.ID, run.Target, run.Source, run.Sheet, run.Driver, true, anyTime, anyTime).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"outcomes"}, outcomeColumns).WillReturnError(copyErr)
		mockPool.ExpectRollback()

		err := s.SaveRun(ctx, run)
		require.Error(t, err)
		assert.ErrorIs(t, err, copyErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should fail on a short copy", func(t *testing.T) {
		s, mockPool := newStore(t, nil)
		run := sampleRun()

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs(run.ID, run.Target, run.Source, run.Sheet, run.Driver, true, anyTime, anyTime).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"outcomes"}, outcomeColumns).WillReturnResult(1)
		mockPool.ExpectRollback()

		err := s.SaveRun(ctx, run)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expected 2, got 1")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestLoadRun(t *testing.T) {
	ctx := context.Background()

	t.Run("should read the run with outcomes in order", func(t *testing.T) {
		s, mockPool := newStore(t, nil)
		start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectRun)).
			WithArgs("run-1").
			WillReturnRows(pgxmock.NewRows([]string{"id", "target", "source", "sheet", "driver", "started_at", "finished_at"}).
				AddRow("run-1", "https://translit.example/", "TestCases.xlsx", "Test cases", "rod", start, start.Add(time.Minute)))

		cols := outcomeColumns[1:]
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectOutcomes)).
			WithArgs("run-1").
			WillReturnRows(pgxmock.NewRows(cols).
				AddRow(0, "Excel source: TestCases.xlsx", "sanity", "", "", 0, "", "", "", "", "", "", "", "",
					true, "", "", "", "", false, 0, start, int64(0), []byte("[]")).
				AddRow(2, "001 | Pos_Fun_0001 | row_3", "functional", "Pos_Fun_0001", "Test cases", 3, "positive",
					"mama", "මම", "මම", "මම", "මම", "මම", "contains",
					true, "", "", "probe", "text", true, 4, start, int64(1200),
					[]byte(`[{"name":"Input","content_type":"text/plain","body":"bWFtYQ=="}]`)))

		run, err := s.LoadRun(ctx, "run-1")
		require.NoError(t, err)
		assert.Equal(t, "rod", run.Driver)
		require.Len(t, run.Outcomes, 2)
		assert.Nil(t, run.Outcomes[0].Attachments)

		o := run.Outcomes[1]
		assert.Equal(t, results.KindFunctional, o.Kind)
		assert.Equal(t, 1200*time.Millisecond, o.Duration)
		assert.Equal(t, 4, o.Samples)
		require.Len(t, o.Attachments, 1)
		assert.Equal(t, "mama", string(o.Attachments[0].Body))
		assert.True(t, run.Passed())
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should report a missing run", func(t *testing.T) {
		s, mockPool := newStore(t, nil)
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectRun)).
			WithArgs("nope").
			WillReturnRows(pgxmock.NewRows([]string{"id", "target", "source", "sheet", "driver", "started_at", "finished_at"}))

		_, err := s.LoadRun(ctx, "nope")
		assert.ErrorIs(t, err, ErrRunNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestListRuns(t *testing.T) {
	s, mockPool := newStore(t, nil)
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	mockPool.ExpectQuery(flexibleSQLMatcher(sqlListRuns)).
		WithArgs(20).
		WillReturnRows(pgxmock.NewRows([]string{"id", "target", "passed", "started_at", "finished_at"}).
			AddRow("b", "https://translit.example/", false, start.Add(time.Hour), start.Add(2*time.Hour)).
			AddRow("a", "https://translit.example/", true, start, start.Add(time.Minute)))

	runs, err := s.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].ID)
	assert.True(t, runs[1].Passed)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
