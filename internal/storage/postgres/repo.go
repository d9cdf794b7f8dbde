// Package postgres implements the storage.Repository backend using pgx v5.
//
// The fast path streams chunks through COPY ... FROM STDIN in the text wire
// format produced by pgcopy; COPY is a single statement, so a failure leaves
// nothing committed. The fallback issues one INSERT per row inside a single
// transaction via a pgx batch, committed only when every row succeeds.
package postgres

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"rideingest/internal/storage"
	"rideingest/internal/storage/pgcopy"
	"rideingest/pkg/records"
)

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(ctx, cfg)
	})
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	cfg  storage.Config
}

// NewRepository connects a pool and verifies the destination is reachable so
// connectivity problems surface at INIT rather than on the first chunk.
func NewRepository(ctx context.Context, cfg storage.Config) (*Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgxpool ping: %w", err)
	}
	return &Repository{pool: pool, cfg: cfg}, nil
}

// CopyFrom streams rows into the destination table with COPY FROM STDIN.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	if err := pgcopy.Encode(&buf, rows); err != nil {
		return 0, fmt.Errorf("encode copy stream: %w", err)
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	sql := fmt.Sprintf("COPY %s (%s) FROM STDIN",
		pgFQN(r.cfg.Table), strings.Join(mapIdent(columns), ","))

	tag, err := conn.Conn().PgConn().CopyFrom(ctx, &buf, sql)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Detail != "" {
			return 0, fmt.Errorf("copy: %s (%s)", pgErr.Detail, pgErr.SQLState())
		}
		return 0, fmt.Errorf("copy: %w", err)
	}
	return tag.RowsAffected(), nil
}

// InsertRows performs the row-oriented fallback inside one transaction.
func (r *Repository) InsertRows(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(columns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pgFQN(r.cfg.Table), strings.Join(mapIdent(columns), ","), strings.Join(placeholders, ","))

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, row := range rows {
		args := make([]any, len(row))
		for i, v := range row {
			args[i] = toPgValue(v)
		}
		batch.Queue(sql, args...)
	}

	br := tx.SendBatch(ctx, batch)
	var inserted int64
	for range rows {
		tag, err := br.Exec()
		if err != nil {
			br.Close()
			return 0, fmt.Errorf("insert row %d: %w", inserted+1, err)
		}
		inserted += tag.RowsAffected()
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("close batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// InsertRejects appends audit rows to the reject relation. It runs on its own
// connection and transaction scope so it can never interfere with the chunk's
// data write.
func (r *Repository) InsertRejects(ctx context.Context, entries []storage.RejectEntry) error {
	if len(entries) == 0 {
		return nil
	}

	sql := fmt.Sprintf(
		"INSERT INTO %s (source_name, raw_record, reject_reason, rejected_at) VALUES ($1,$2,$3,$4)",
		pgFQN(r.cfg.RejectTable))

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(sql, e.SourceName, string(e.RawRecord), e.Reason, e.RejectedAt)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range entries {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert reject: %w", err)
		}
	}
	return nil
}

// Exec runs a raw statement (DDL, CALL ...).
func (r *Repository) Exec(ctx context.Context, sql string) error {
	_, err := r.pool.Exec(ctx, sql)
	return err
}

// Close releases the pool.
func (r *Repository) Close() { r.pool.Close() }

// toPgValue converts pipeline value types into types pgx can encode.
func toPgValue(v any) any {
	switch t := v.(type) {
	case records.Date:
		return t.Time
	case records.Clock:
		return t.String()
	default:
		return v
	}
}

// pgIdent safely quotes a single identifier segment.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a possibly schema-qualified name like "public.stg_rides".
func pgFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pgIdent(p)
	}
	return strings.Join(parts, ".")
}

func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgIdent(c)
	}
	return out
}
