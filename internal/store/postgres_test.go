package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/adkeyword-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var (
	runColumns     = []string{"id", "name", "source", "target_roas", "report", "summary", "recommendations", "insights", "memo", "tags", "created_at"}
	runListColumns = []string{"id", "name", "source", "target_roas", "report", "summary", "insights", "memo", "tags", "created_at"}
)

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS runs`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	run := sampleRun("may.xlsx")
	run.ID = "run-1"
	run.CreatedAt = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs("run-1", run.Name, "may.xlsx", 400.0,
			mustJSON(t, run.Report), mustJSON(t, run.Summary), mustJSON(t, run.Recommendations),
			"요약", "시즌 시작", []byte(`["검색"]`), run.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SaveRun(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun_AssignsID(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	run := sampleRun("may.xlsx")
	run.Recommendations = nil

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), []byte("[]"), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SaveRun(context.Background(), run))
	assert.NotEmpty(t, run.ID)
	assert.False(t, run.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	run := sampleRun("may.xlsx")
	run.ID = "run-1"

	mock.ExpectExec(`INSERT INTO runs`).
		WillReturnError(errors.New("duplicate key"))

	err := s.SaveRun(context.Background(), run)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: insert run run-1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	run := sampleRun("may.xlsx")
	created := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, name, source, target_roas, report, summary, recommendations, insights, memo, tags, created_at\s+FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(runColumns).AddRow(
			"run-1", run.Name, run.Source, 400.0,
			mustJSON(t, run.Report), mustJSON(t, run.Summary), mustJSON(t, run.Recommendations),
			run.Insights, run.Memo, mustJSON(t, run.Tags), created,
		))

	got, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.ID)
	assert.Equal(t, run.Summary, got.Summary)
	assert.Equal(t, run.Recommendations, got.Recommendations)
	assert.Equal(t, created, got.CreatedAt)
	assert.Equal(t, "시즌 시작", got.Memo)
	assert.Equal(t, []string{"검색"}, got.Tags)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "get run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_BadJSON(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(runColumns).AddRow(
			"run-1", "", "", 400.0, []byte("{"), []byte("{}"), []byte("[]"), "", "", []byte("[]"), time.Now(),
		))

	_, err := s.GetRun(context.Background(), "run-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal report")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_Filters(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	since := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	run := sampleRun("a.xlsx")

	mock.ExpectQuery(`WHERE true AND source = \$1 AND created_at >= \$2 ORDER BY created_at DESC LIMIT \$3 OFFSET \$4`).
		WithArgs("a.xlsx", since, 5, 10).
		WillReturnRows(pgxmock.NewRows(runListColumns).
			AddRow("run-1", run.Name, "a.xlsx", 400.0, mustJSON(t, run.Report), mustJSON(t, run.Summary), "", "", []byte(`["6월"]`), since))

	runs, err := s.ListRuns(context.Background(), RunFilter{Source: "a.xlsx", Since: since, Limit: 5, Offset: 10})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Nil(t, runs[0].Recommendations)
	assert.Equal(t, []string{"6월"}, runs[0].Tags)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_DefaultLimit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`ORDER BY created_at DESC LIMIT \$1$`).
		WithArgs(defaultListLimit).
		WillReturnRows(pgxmock.NewRows(runListColumns))

	runs, err := s.ListRuns(context.Background(), RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM runs WHERE id = \$1`).
		WithArgs("run-2").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, s.DeleteRun(context.Background(), "run-1"))

	err := s.DeleteRun(context.Background(), "run-2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	memo := "예산 증액 후"

	mock.ExpectExec(`UPDATE runs SET memo = \$1, tags = \$2 WHERE id = \$3`).
		WithArgs("예산 증액 후", `["6월"]`, "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE runs SET memo = \$1 WHERE id = \$2`).
		WithArgs("예산 증액 후", "run-2").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, s.UpdateRun(context.Background(), "run-1", RunUpdate{Memo: &memo, Tags: []string{"6월"}}))

	err := s.UpdateRun(context.Background(), "run-2", RunUpdate{Memo: &memo})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	err = s.UpdateRun(context.Background(), "run-3", RunUpdate{})
	assert.True(t, errors.Is(err, ErrEmptyUpdate))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Ping(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`SELECT 1`).WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecodeRun_SkipsRecommendations(t *testing.T) {
	var r model.Run
	require.NoError(t, decodeRun(&r, []byte(`{"rows":2}`), []byte(`{"critical_priority":1}`), nil, nil))
	assert.Equal(t, 2, r.Report.Rows)
	assert.Equal(t, 1, r.Summary.Critical)
	assert.Nil(t, r.Recommendations)
}
