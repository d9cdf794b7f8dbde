package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"rideingest/pkg/records"
)

/*
fakeRepo is a scriptable Repository: each path can be told to fail, and every
call is recorded so tests can assert ordering and payloads.
*/
type fakeRepo struct {
	copyErr   error
	insertErr error
	rejectErr error

	copyCalls   int
	insertCalls int
	copied      [][]any
	inserted    [][]any
	rejects     []RejectEntry
	execd       []string
}

func (f *fakeRepo) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	f.copyCalls++
	if f.copyErr != nil {
		return 0, f.copyErr
	}
	f.copied = append(f.copied, rows...)
	return int64(len(rows)), nil
}

func (f *fakeRepo) InsertRows(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	f.insertCalls++
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.inserted = append(f.inserted, rows...)
	return int64(len(rows)), nil
}

func (f *fakeRepo) InsertRejects(ctx context.Context, entries []RejectEntry) error {
	if f.rejectErr != nil {
		return f.rejectErr
	}
	f.rejects = append(f.rejects, entries...)
	return nil
}

func (f *fakeRepo) Exec(ctx context.Context, sql string) error {
	f.execd = append(f.execd, sql)
	return nil
}

func (f *fakeRepo) Close() {}

var loaderCols = []string{"booking_id", "booking_value"}

func loaderRecs() []records.Record {
	return []records.Record{
		{"booking_id": "a", "booking_value": 1.0, "ignored": "x"},
		{"booking_id": "b", "booking_value": 2.0},
	}
}

func TestLoadChunkFastPath(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	l := NewLoader(repo, loaderCols)

	out, rejectErr, err := l.LoadChunk(context.Background(), 1, loaderRecs(), nil)
	if err != nil || rejectErr != nil {
		t.Fatalf("LoadChunk: err=%v rejectErr=%v", err, rejectErr)
	}
	if out.Path != PathFast || out.RowsWritten != 2 {
		t.Fatalf("outcome = %+v", out)
	}
	if repo.insertCalls != 0 {
		t.Fatalf("fallback used despite a healthy fast path")
	}
	// Projection respects column order and drops extras.
	if len(repo.copied[0]) != 2 || repo.copied[0][0] != "a" || repo.copied[0][1] != 1.0 {
		t.Fatalf("row = %v", repo.copied[0])
	}
}

func TestLoadChunkFallback(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{copyErr: errors.New("copy broken")}
	l := NewLoader(repo, loaderCols)

	out, _, err := l.LoadChunk(context.Background(), 1, loaderRecs(), nil)
	if err != nil {
		t.Fatalf("LoadChunk: %v", err)
	}
	if out.Path != PathFallback || out.RowsWritten != 2 {
		t.Fatalf("outcome = %+v", out)
	}
	if repo.copyCalls != 1 || repo.insertCalls != 1 {
		t.Fatalf("calls: copy=%d insert=%d, want exactly one each", repo.copyCalls, repo.insertCalls)
	}
}

func TestLoadChunkBothPathsFail(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{copyErr: errors.New("copy broken"), insertErr: errors.New("insert broken")}
	l := NewLoader(repo, loaderCols)

	out, _, err := l.LoadChunk(context.Background(), 7, loaderRecs(), nil)
	var ce *ChunkError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *ChunkError", err)
	}
	if ce.Chunk != 7 {
		t.Fatalf("Chunk = %d", ce.Chunk)
	}
	if ce.FastErr == nil || ce.FallbackErr == nil {
		t.Fatalf("ChunkError must carry both causes: %+v", ce)
	}
	if out.RowsFailed != 2 {
		t.Fatalf("RowsFailed = %d, want 2", out.RowsFailed)
	}
	if !strings.Contains(err.Error(), "copy broken") || !strings.Contains(err.Error(), "insert broken") {
		t.Fatalf("error text should name both causes: %v", err)
	}
}

/*
TestLoadChunkRejectFailureDoesNotBlock verifies the audit path is independent:
a failing reject write is reported but the chunk's data still lands.
*/
func TestLoadChunkRejectFailureDoesNotBlock(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{rejectErr: errors.New("audit down")}
	l := NewLoader(repo, loaderCols)
	rejects := []RejectEntry{{SourceName: "t", Reason: "booking_id is NULL"}}

	out, rejectErr, err := l.LoadChunk(context.Background(), 1, loaderRecs(), rejects)
	if err != nil {
		t.Fatalf("LoadChunk: %v", err)
	}
	if rejectErr == nil {
		t.Fatalf("reject failure swallowed")
	}
	if out.RowsWritten != 2 {
		t.Fatalf("data path affected by reject failure: %+v", out)
	}
}

func TestLoadChunkMissingDestinationColumn(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	l := NewLoader(repo, []string{"booking_id", "no_such_column"})

	_, _, err := l.LoadChunk(context.Background(), 1, loaderRecs(), nil)
	if err == nil || !strings.Contains(err.Error(), "no_such_column") {
		t.Fatalf("err = %v, want missing-column failure", err)
	}
	if repo.copyCalls != 0 && len(repo.copied) != 0 {
		t.Fatalf("rows written despite projection failure")
	}
}

func TestLoadChunkEmpty(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	l := NewLoader(repo, loaderCols)

	out, rejectErr, err := l.LoadChunk(context.Background(), 1, nil, []RejectEntry{{Reason: "r"}})
	if err != nil || rejectErr != nil {
		t.Fatalf("LoadChunk: err=%v rejectErr=%v", err, rejectErr)
	}
	if out.RowsWritten != 0 || repo.copyCalls != 0 {
		t.Fatalf("write attempted for an empty survivor set")
	}
	if len(repo.rejects) != 1 {
		t.Fatalf("rejects = %d, want 1", len(repo.rejects))
	}
}
