package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/adkeyword-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		dsn = "adkeyword.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL DEFAULT '',
	source          TEXT NOT NULL DEFAULT '',
	target_roas     REAL NOT NULL,
	report          TEXT NOT NULL,
	summary         TEXT NOT NULL,
	recommendations TEXT NOT NULL DEFAULT '[]',
	insights        TEXT NOT NULL DEFAULT '',
	memo            TEXT NOT NULL DEFAULT '',
	tags            TEXT NOT NULL DEFAULT '[]',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// sqliteAddedColumns are columns introduced after the first release; older
// databases get them through ALTER TABLE.
var sqliteAddedColumns = []struct{ name, ddl string }{
	{"memo", `ALTER TABLE runs ADD COLUMN memo TEXT NOT NULL DEFAULT ''`},
	{"tags", `ALTER TABLE runs ADD COLUMN tags TEXT NOT NULL DEFAULT '[]'`},
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	have, err := s.columns(ctx, "runs")
	if err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	for _, c := range sqliteAddedColumns {
		if have[c.name] {
			continue
		}
		if _, err := s.db.ExecContext(ctx, c.ddl); err != nil {
			return eris.Wrapf(err, "sqlite: migrate add column %s", c.name)
		}
	}
	return nil
}

func (s *SQLiteStore) columns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, eris.Wrapf(err, "table info %s", table)
	}
	defer rows.Close()

	have := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "scan column")
		}
		have[name] = true
	}
	return have, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.Run) error {
	enc, err := encodeRun(run)
	if err != nil {
		return eris.Wrap(err, "sqlite: save run")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, name, source, target_roas, report, summary, recommendations, insights, memo, tags, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Name, run.Source, run.TargetROAS,
		string(enc.report), string(enc.summary), string(enc.recommendations),
		run.Insights, run.Memo, string(enc.tags), run.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, source, target_roas, report, summary, recommendations, insights, memo, tags, created_at
		 FROM runs WHERE id = ?`,
		id,
	)

	var r model.Run
	var report, summary, recs, tags string
	err := row.Scan(&r.ID, &r.Name, &r.Source, &r.TargetROAS, &report, &summary, &recs, &r.Insights, &r.Memo, &tags, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get run %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", id)
	}
	if err := decodeRun(&r, []byte(report), []byte(summary), []byte(recs), []byte(tags)); err != nil {
		return nil, eris.Wrap(err, "sqlite: get run")
	}
	return &r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, name, source, target_roas, report, summary, insights, memo, tags, created_at FROM runs WHERE 1=1`
	var args []any

	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	runs := []model.Run{}
	for rows.Next() {
		var r model.Run
		var report, summary, tags string
		if err := rows.Scan(&r.ID, &r.Name, &r.Source, &r.TargetROAS, &report, &summary, &r.Insights, &r.Memo, &tags, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if err := decodeRun(&r, []byte(report), []byte(summary), nil, []byte(tags)); err != nil {
			return nil, eris.Wrap(err, "sqlite: list runs")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, id string, upd RunUpdate) error {
	sets, args, err := upd.assignments(func(int) string { return "?" })
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run %s", id)
	}
	args = append(args, id)
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run %s", id)
	}
	return checkRowsAffected(res, id)
}

func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete run %s", id)
	}
	return checkRowsAffected(res, id)
}

// helpers

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", id)
	}
	return nil
}

type encodedRun struct {
	report          []byte
	summary         []byte
	recommendations []byte
	tags            []byte
}

// encodeRun fills in a missing ID and creation time, then marshals the JSON
// columns.
func encodeRun(run *model.Run) (encodedRun, error) {
	if run == nil {
		return encodedRun{}, eris.New("nil run")
	}
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	run.CreatedAt = run.CreatedAt.UTC()

	var enc encodedRun
	var err error
	if enc.report, err = json.Marshal(run.Report); err != nil {
		return enc, eris.Wrap(err, "marshal report")
	}
	if enc.summary, err = json.Marshal(run.Summary); err != nil {
		return enc, eris.Wrap(err, "marshal summary")
	}
	recs := run.Recommendations
	if recs == nil {
		recs = []model.ScoredKeyword{}
	}
	if enc.recommendations, err = json.Marshal(recs); err != nil {
		return enc, eris.Wrap(err, "marshal recommendations")
	}
	run.Tags = model.NormalizeTags(run.Tags)
	if enc.tags, err = json.Marshal(run.Tags); err != nil {
		return enc, eris.Wrap(err, "marshal tags")
	}
	return enc, nil
}

// decodeRun unmarshals the JSON columns; a nil recs slice leaves
// Recommendations unset.
func decodeRun(r *model.Run, report, summary, recs, tags []byte) error {
	if err := json.Unmarshal(report, &r.Report); err != nil {
		return eris.Wrap(err, "unmarshal report")
	}
	if err := json.Unmarshal(summary, &r.Summary); err != nil {
		return eris.Wrap(err, "unmarshal summary")
	}
	if recs != nil {
		if err := json.Unmarshal(recs, &r.Recommendations); err != nil {
			return eris.Wrap(err, "unmarshal recommendations")
		}
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &r.Tags); err != nil {
			return eris.Wrap(err, "unmarshal tags")
		}
	}
	return nil
}
