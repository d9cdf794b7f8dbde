package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"rideingest/pkg/records"
)

// Path identifies which write mechanism persisted a chunk.
type Path string

const (
	// PathFast is the set-oriented bulk path (COPY or equivalent).
	PathFast Path = "fast"
	// PathFallback is the row-oriented transactional insert path.
	PathFallback Path = "fallback"
)

// Outcome reports how one chunk was written.
type Outcome struct {
	Path        Path
	RowsWritten int64
	RowsFailed  int64
}

// ChunkError is the fatal per-chunk condition raised when both write paths
// fail. The chunk's writes are rolled back; whether the run aborts or skips
// the chunk is the caller's policy.
type ChunkError struct {
	Chunk       int
	FastErr     error
	FallbackErr error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d: fast path: %v; fallback: %v", e.Chunk, e.FastErr, e.FallbackErr)
}

func (e *ChunkError) Unwrap() error { return e.FallbackErr }

// Loader writes one chunk at a time to the destination through the two-tier
// protocol: the fast path is attempted first and its failure, held as a
// value rather than control flow, triggers exactly one fallback attempt for
// the same rows. Reject audit rows ride along on an independent path that can
// fail without affecting the main write.
type Loader struct {
	repo    Repository
	columns []string
}

// NewLoader builds a loader writing the given destination column list.
func NewLoader(repo Repository, columns []string) *Loader {
	return &Loader{repo: repo, columns: columns}
}

// BuildRows projects records onto the destination column list, in order.
// Record fields outside the column list are dropped; a destination column
// with no corresponding record field fails the whole chunk before any write.
func (l *Loader) BuildRows(recs []records.Record) ([][]any, error) {
	rows := make([][]any, len(recs))
	for i, rec := range recs {
		row := make([]any, len(l.columns))
		for j, col := range l.columns {
			v, ok := rec[col]
			if !ok {
				return nil, fmt.Errorf("record missing destination column %q", col)
			}
			row[j] = v
		}
		rows[i] = row
	}
	return rows, nil
}

// LoadChunk writes the survivors and the reject rows of one chunk.
//
// The main path returns an Outcome naming the mechanism that succeeded; when
// both mechanisms fail the error is a *ChunkError and nothing from this chunk
// is committed. A reject-write failure is logged and reported via the
// returned rejectErr but never blocks or rolls back the main path.
func (l *Loader) LoadChunk(
	ctx context.Context,
	chunk int,
	recs []records.Record,
	rejects []RejectEntry,
) (out Outcome, rejectErr error, err error) {
	// Rejects first: they are independent of the main path and must survive
	// even when the chunk's data write fails entirely.
	if len(rejects) > 0 {
		if rejectErr = l.repo.InsertRejects(ctx, rejects); rejectErr != nil {
			log.Printf("loader: chunk %d: reject write failed (continuing): %v", chunk, rejectErr)
		}
	}

	if len(recs) == 0 {
		return Outcome{Path: PathFast}, rejectErr, nil
	}

	rows, err := l.BuildRows(recs)
	if err != nil {
		return Outcome{RowsFailed: int64(len(recs))}, rejectErr, &ChunkError{Chunk: chunk, FastErr: err}
	}

	start := time.Now()
	n, fastErr := l.repo.CopyFrom(ctx, l.columns, rows)
	if fastErr == nil {
		log.Printf("loader: chunk %d: fast path rows=%d elapsed=%s",
			chunk, n, time.Since(start).Truncate(time.Millisecond))
		return Outcome{Path: PathFast, RowsWritten: n}, rejectErr, nil
	}

	log.Printf("loader: chunk %d: fast path failed, falling back to row inserts: %v", chunk, fastErr)

	n, fbErr := l.repo.InsertRows(ctx, l.columns, rows)
	if fbErr == nil {
		log.Printf("loader: chunk %d: fallback rows=%d elapsed=%s",
			chunk, n, time.Since(start).Truncate(time.Millisecond))
		return Outcome{Path: PathFallback, RowsWritten: n}, rejectErr, nil
	}

	return Outcome{RowsFailed: int64(len(recs))}, rejectErr,
		&ChunkError{Chunk: chunk, FastErr: fastErr, FallbackErr: fbErr}
}
