package csv

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"rideingest/internal/schema"
)

/*
byteSource implements datasource.Source over an in-memory byte slice. It also
records whether Close was forwarded by the reader.
*/
type byteSource struct {
	data    []byte
	openErr error
	closed  bool
}

func (s *byteSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	return &closeTracker{Reader: bytes.NewReader(s.data), src: s}, nil
}

type closeTracker struct {
	*bytes.Reader
	src *byteSource
}

func (c *closeTracker) Close() error { c.src.closed = true; return nil }

func testContract() schema.Contract {
	return schema.Contract{
		Name:       "test",
		NaturalKey: "id",
		HeaderMap:  map[string]string{"ID": "id", "Amount": "amount", "Note": "note"},
		Fields: []schema.Field{
			{Name: "id", Type: schema.TypeID, Required: true},
			{Name: "amount", Type: schema.TypeDecimal},
			{Name: "note", Type: schema.TypeText},
		},
	}
}

func drain(t *testing.T, r *ChunkReader) [][]string {
	t.Helper()
	var chunks [][]string
	for {
		chunk, err := r.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return chunks
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		ids := make([]string, len(chunk))
		for i, rec := range chunk {
			s, _ := rec.String("id")
			ids[i] = s
		}
		chunks = append(chunks, ids)
	}
}

func TestChunkBoundsAndOrder(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	b.WriteString("ID,Amount,Note\n")
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		b.WriteString(id + ",1,x\n")
	}
	src := &byteSource{data: []byte(b.String())}

	r, err := NewChunkReader(context.Background(), src, testContract(), 2, Options{})
	if err != nil {
		t.Fatalf("NewChunkReader: %v", err)
	}
	defer r.Close()

	chunks := drain(t, r)
	want := [][]string{{"a", "b"}, {"c", "d"}, {"e"}}
	if len(chunks) != len(want) {
		t.Fatalf("chunks = %d, want %d", len(chunks), len(want))
	}
	for i := range want {
		if strings.Join(chunks[i], ",") != strings.Join(want[i], ",") {
			t.Fatalf("chunk %d = %v, want %v", i, chunks[i], want[i])
		}
	}
}

func TestHeaderBOMAndFallbackMapping(t *testing.T) {
	t.Parallel()

	// BOM on the first header cell, and a header absent from the HeaderMap
	// that still resolves via lowercase-underscore normalization.
	data := "\ufeffID,Amount,Some Note\nx,2.5,hello\n"
	c := testContract()
	c.HeaderMap = map[string]string{"ID": "id", "Amount": "amount"}
	c.Fields[2].Name = "some_note"

	r, err := NewChunkReader(context.Background(), &byteSource{data: []byte(data)}, c, 0, Options{})
	if err != nil {
		t.Fatalf("NewChunkReader: %v", err)
	}
	defer r.Close()

	chunk, err := r.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(chunk) != 1 {
		t.Fatalf("rows = %d, want 1", len(chunk))
	}
	if got := chunk[0]["some_note"]; got != "hello" {
		t.Fatalf("some_note = %v, want hello", got)
	}
	if got := chunk[0]["id"]; got != "x" {
		t.Fatalf("id = %v (BOM not stripped?)", got)
	}
}

func TestEmptyCellBecomesNil(t *testing.T) {
	t.Parallel()

	data := "ID,Amount,Note\nx,, spaced \n"
	r, err := NewChunkReader(context.Background(), &byteSource{data: []byte(data)}, testContract(), 0, Options{})
	if err != nil {
		t.Fatalf("NewChunkReader: %v", err)
	}
	defer r.Close()

	chunk, err := r.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if chunk[0]["amount"] != nil {
		t.Fatalf("empty cell = %v, want nil", chunk[0]["amount"])
	}
	if chunk[0]["note"] != "spaced" {
		t.Fatalf("note = %q, want trimmed %q", chunk[0]["note"], "spaced")
	}
}

func TestOpenFailureIsSourceError(t *testing.T) {
	t.Parallel()

	src := &byteSource{openErr: errors.New("no such file")}
	_, err := NewChunkReader(context.Background(), src, testContract(), 0, Options{})
	var se *SourceError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *SourceError", err)
	}
}

func TestMissingRequiredHeaderIsSourceError(t *testing.T) {
	t.Parallel()

	data := "Amount,Note\n1,x\n"
	src := &byteSource{data: []byte(data)}
	_, err := NewChunkReader(context.Background(), src, testContract(), 0, Options{})
	var se *SourceError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *SourceError", err)
	}
	if !strings.Contains(err.Error(), "id") {
		t.Fatalf("error %v should name the missing column", err)
	}
	if !src.closed {
		t.Fatalf("reader must close the source on header failure")
	}
}

func TestMalformedRowIsSoftDropped(t *testing.T) {
	t.Parallel()

	// Second data row has a bare quote, which the strict csv reader rejects.
	data := "ID,Amount,Note\na,1,ok\nb,2,\"broken\nc,3,ok\n"
	r, err := NewChunkReader(context.Background(), &byteSource{data: []byte(data)}, testContract(), 0, Options{})
	if err != nil {
		t.Fatalf("NewChunkReader: %v", err)
	}
	defer r.Close()

	chunk, err := r.Next(context.Background())
	if err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("Next: %v", err)
	}
	if len(chunk) != 1 {
		t.Fatalf("rows = %d, want 1 (malformed rows dropped, remainder swallowed by open quote)", len(chunk))
	}

	rowErrs := r.RowErrors()
	if len(rowErrs) == 0 {
		t.Fatalf("expected row errors for the malformed line")
	}
	if rowErrs[0].Line < 2 {
		t.Fatalf("row error line = %d", rowErrs[0].Line)
	}
	// Drained: a second call must return nothing.
	if again := r.RowErrors(); len(again) != 0 {
		t.Fatalf("RowErrors not drained: %v", again)
	}
}

func TestNextHonorsContext(t *testing.T) {
	t.Parallel()

	data := "ID,Amount,Note\na,1,x\n"
	r, err := NewChunkReader(context.Background(), &byteSource{data: []byte(data)}, testContract(), 0, Options{})
	if err != nil {
		t.Fatalf("NewChunkReader: %v", err)
	}
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Next with canceled ctx = %v", err)
	}
}
