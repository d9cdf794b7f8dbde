package transform

import (
	"errors"
	"fmt"
	"testing"

	"rideingest/pkg/records"
)

func ids(recs []records.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		s, _ := r.String("booking_id")
		out[i] = s
	}
	return out
}

func TestDedupKeepFirstWithinChunk(t *testing.T) {
	t.Parallel()

	s := NewDedupState("booking_id")
	chunk := []records.Record{
		{"booking_id": "a", "v": 1},
		{"booking_id": "b", "v": 2},
		{"booking_id": "a", "v": 3},
	}
	kept, dropped, err := s.Filter(chunk)
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if dropped != 1 {
		t.Fatalf("dropped = %d, want 1", dropped)
	}
	got := ids(kept)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("kept = %v, want [a b]", got)
	}
	// First occurrence wins, carrying its own payload.
	if kept[0]["v"] != 1 {
		t.Fatalf("kept[0] = %v, want the first occurrence", kept[0])
	}
}

/*
TestDedupAcrossChunks verifies the state is run-scoped: a key seen in an
earlier chunk stays a duplicate for the rest of the run.
*/
func TestDedupAcrossChunks(t *testing.T) {
	t.Parallel()

	s := NewDedupState("booking_id")
	first := []records.Record{{"booking_id": "a"}, {"booking_id": "b"}}
	if _, _, err := s.Filter(first); err != nil {
		t.Fatalf("Filter: %v", err)
	}

	second := []records.Record{{"booking_id": "b"}, {"booking_id": "c"}, {"booking_id": "a"}}
	kept, dropped, err := s.Filter(second)
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if dropped != 2 {
		t.Fatalf("dropped = %d, want 2", dropped)
	}
	if got := ids(kept); len(got) != 1 || got[0] != "c" {
		t.Fatalf("kept = %v, want [c]", got)
	}
	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3 distinct keys", s.Len())
	}
}

func TestDedupScalesToManyKeys(t *testing.T) {
	t.Parallel()

	s := NewDedupState("booking_id")
	chunk := make([]records.Record, 10_000)
	for i := range chunk {
		chunk[i] = records.Record{"booking_id": fmt.Sprintf("CNR%08d", i)}
	}
	kept, dropped, err := s.Filter(chunk)
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if dropped != 0 || len(kept) != 10_000 || s.Len() != 10_000 {
		t.Fatalf("dropped=%d kept=%d len=%d", dropped, len(kept), s.Len())
	}
}

func TestDedupNilKeyIsInvariantViolation(t *testing.T) {
	t.Parallel()

	s := NewDedupState("booking_id")
	_, _, err := s.Filter([]records.Record{{"booking_id": nil}})
	var ie *InvariantError
	if !errors.As(err, &ie) {
		t.Fatalf("err = %v, want *InvariantError", err)
	}
}
