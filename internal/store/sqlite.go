package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/castlemilk/cse-statements/internal/report"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	root       TEXT NOT NULL,
	output     TEXT NOT NULL,
	row_count  INTEGER NOT NULL,
	failed     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS reports (
	run_id                 TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	pos                    INTEGER NOT NULL,
	file_name              TEXT NOT NULL,
	file_path              TEXT NOT NULL,
	headline_kind          TEXT NOT NULL,
	quarter_end_raw        TEXT NOT NULL,
	quarter_end            TEXT NOT NULL,
	revenue                INTEGER,
	cogs                   INTEGER,
	gross_profit           INTEGER,
	operating_expenses     INTEGER,
	operating_income       INTEGER,
	net_income             INTEGER,
	administrative_expenses INTEGER,
	distribution_costs     INTEGER,
	other_income_and_gains INTEGER,
	note                   TEXT NOT NULL,
	error                  TEXT NOT NULL,
	issuer                 TEXT NOT NULL,
	date_method            TEXT NOT NULL,
	PRIMARY KEY (run_id, pos)
);
CREATE TABLE IF NOT EXISTS latest (
	id     INTEGER PRIMARY KEY CHECK (id = 1),
	run_id TEXT NOT NULL REFERENCES runs(id)
);
`

// SQLiteStore implements Store on an embedded SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for a throwaway database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if path == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: exec schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run Run, rows []report.Row) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, root, output, row_count, failed) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET created_at = excluded.created_at, root = excluded.root,
			output = excluded.output, row_count = excluded.row_count, failed = excluded.failed`,
		run.ID, run.CreatedAt.UTC().Format(time.RFC3339Nano), run.Root, run.Output, run.Rows, run.Failed)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM reports WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("clear reports: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO reports (
		run_id, pos, file_name, file_path, headline_kind, quarter_end_raw, quarter_end,
		revenue, cogs, gross_profit, operating_expenses, operating_income, net_income,
		administrative_expenses, distribution_costs, other_income_and_gains,
		note, error, issuer, date_method
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range rows {
		_, err := stmt.ExecContext(ctx,
			run.ID, i, r.FileName, r.FilePath, r.HeadlineKind, r.QuarterEndRaw, r.QuarterEnd,
			nullInt(r.Revenue), nullInt(r.COGS), nullInt(r.GrossProfit), nullInt(r.OperatingExpenses),
			nullInt(r.OperatingIncome), nullInt(r.NetIncome), nullInt(r.AdministrativeExpenses),
			nullInt(r.DistributionCosts), nullInt(r.OtherIncomeAndGains),
			r.Note, r.Error, r.Issuer, r.DateMethod)
		if err != nil {
			return fmt.Errorf("insert report %s: %w", r.FilePath, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO latest (id, run_id) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET run_id = excluded.run_id`, run.ID); err != nil {
		return fmt.Errorf("update latest: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, root, output, row_count, failed FROM runs WHERE id = ?`, runID)
	return scanRun(row, runID)
}

func (s *SQLiteStore) LatestRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT r.id, r.created_at, r.root, r.output, r.row_count, r.failed
		FROM latest l JOIN runs r ON r.id = l.run_id WHERE l.id = 1`)
	return scanRun(row, "latest")
}

func (s *SQLiteStore) ListReports(ctx context.Context, runID, issuer string, pageSize int32, pageToken string) ([]report.Row, string, error) {
	if runID == "" {
		run, err := s.LatestRun(ctx)
		if err != nil {
			return nil, "", err
		}
		runID = run.ID
	} else if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, "", err
	}

	after, err := DecodePageToken(pageToken)
	if err != nil {
		return nil, "", err
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	query := `SELECT pos, file_name, file_path, headline_kind, quarter_end_raw, quarter_end,
		revenue, cogs, gross_profit, operating_expenses, operating_income, net_income,
		administrative_expenses, distribution_costs, other_income_and_gains,
		note, error, issuer, date_method
		FROM reports WHERE run_id = ? AND pos > ?`
	args := []any{runID, after}
	if issuer != "" {
		query += ` AND issuer = ? COLLATE NOCASE`
		args = append(args, issuer)
	}
	query += ` ORDER BY pos LIMIT ?`
	args = append(args, pageSize+1) // +1 to detect next page

	rs, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("list reports: %w", err)
	}
	defer rs.Close()

	var rows []positionedRow
	for rs.Next() {
		var (
			pr   positionedRow
			r    = &pr.row
			vals [9]sql.NullInt64
		)
		err := rs.Scan(&pr.pos, &r.FileName, &r.FilePath, &r.HeadlineKind, &r.QuarterEndRaw, &r.QuarterEnd,
			&vals[0], &vals[1], &vals[2], &vals[3], &vals[4], &vals[5], &vals[6], &vals[7], &vals[8],
			&r.Note, &r.Error, &r.Issuer, &r.DateMethod)
		if err != nil {
			return nil, "", fmt.Errorf("scan report: %w", err)
		}
		r.Revenue, r.COGS, r.GrossProfit = intPtr(vals[0]), intPtr(vals[1]), intPtr(vals[2])
		r.OperatingExpenses, r.OperatingIncome, r.NetIncome = intPtr(vals[3]), intPtr(vals[4]), intPtr(vals[5])
		r.AdministrativeExpenses, r.DistributionCosts, r.OtherIncomeAndGains = intPtr(vals[6]), intPtr(vals[7]), intPtr(vals[8])
		rows = append(rows, pr)
	}
	if err := rs.Err(); err != nil {
		return nil, "", fmt.Errorf("list reports: %w", err)
	}
	return paginate(rows, pageSize, "")
}

func scanRun(row *sql.Row, key string) (Run, error) {
	var (
		run     Run
		created string
	)
	err := row.Scan(&run.ID, &created, &run.Root, &run.Output, &run.Rows, &run.Failed)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", key, err)
	}
	run.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return Run{}, fmt.Errorf("parse created_at %q: %w", strings.TrimSpace(created), err)
	}
	return run, nil
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func intPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
