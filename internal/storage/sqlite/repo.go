// Package sqlite implements a SQLite-backed storage.Repository using
// database/sql and the modernc driver. SQLite has no COPY equivalent, so the
// fast path is a single multi-row INSERT per chunk and the fallback prepares
// one INSERT executed per row; both run inside a transaction, keeping each
// write path atomic per chunk.
//
// Intended for local development and tests; production ingestion targets
// Postgres.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"rideingest/internal/storage"
	"rideingest/pkg/records"
)

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(ctx, cfg)
	})
}

// Repository is a SQLite-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg storage.Config
}

// NewRepository opens the database and pings it to fail fast on bad DSNs.
func NewRepository(ctx context.Context, cfg storage.Config) (*Repository, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return &Repository{db: db, cfg: cfg}, nil
}

// CopyFrom inserts all rows through one multi-row INSERT statement inside a
// transaction. SQLite aborts the whole statement on any bad row, so the fast
// path keeps the same no-partial-write guarantee COPY gives on Postgres.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	single := "(" + strings.TrimRight(strings.Repeat("?,", len(columns)), ",") + ")"
	values := make([]string, len(rows))
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("sqlite: row %d has %d values, want %d", i, len(row), len(columns))
		}
		values[i] = single
		for _, v := range row {
			args = append(args, toSQLiteValue(v))
		}
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		r.cfg.Table, strings.Join(columns, ", "), strings.Join(values, ","))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin: %w", err)
	}
	res, err := tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("sqlite: bulk insert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// InsertRows is the row-oriented fallback: a prepared INSERT executed per row
// in one transaction, rolled back entirely on the first failure.
func (r *Repository) InsertRows(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	stmtSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		r.cfg.Table,
		strings.Join(columns, ", "),
		strings.TrimRight(strings.Repeat("?,", len(columns)), ","))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("sqlite: prepare: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for i, row := range rows {
		args := make([]any, len(row))
		for j, v := range row {
			args[j] = toSQLiteValue(v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("sqlite: insert row %d: %w", i+1, err)
		}
		inserted++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return inserted, nil
}

// InsertRejects appends audit rows; independent of the data path.
func (r *Repository) InsertRejects(ctx context.Context, entries []storage.RejectEntry) error {
	if len(entries) == 0 {
		return nil
	}
	stmtSQL := fmt.Sprintf(
		"INSERT INTO %s (source_name, raw_record, reject_reason, rejected_at) VALUES (?,?,?,?)",
		r.cfg.RejectTable)

	for _, e := range entries {
		if _, err := r.db.ExecContext(ctx, stmtSQL,
			e.SourceName, string(e.RawRecord), e.Reason, e.RejectedAt.UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("sqlite: insert reject: %w", err)
		}
	}
	return nil
}

// Exec runs a raw statement.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	_, err := r.db.ExecContext(ctx, sql)
	return err
}

// Close closes the database handle.
func (r *Repository) Close() { _ = r.db.Close() }

// toSQLiteValue stores dates and clocks as their canonical strings; SQLite
// has no native date/time types.
func toSQLiteValue(v any) any {
	switch t := v.(type) {
	case records.Date:
		return t.String()
	case records.Clock:
		return t.String()
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return v
	}
}
