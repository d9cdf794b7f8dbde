package transform

import (
	"fmt"

	"github.com/zeebo/xxh3"

	"rideingest/pkg/records"
)

// DedupState is the run-scoped identity set behind keep-first deduplication.
// It belongs to exactly one run; concurrent runs each own their own state.
//
// Keys are stored as 128-bit xxh3 digests rather than raw strings, bounding
// memory at 16 bytes per distinct key regardless of key length. Membership
// and insert are O(1) map operations; the set only ever grows.
type DedupState struct {
	keyField string
	seen     map[xxh3.Uint128]struct{}
}

// NewDedupState returns an empty state keyed on keyField (the natural key).
func NewDedupState(keyField string) *DedupState {
	return &DedupState{
		keyField: keyField,
		seen:     make(map[xxh3.Uint128]struct{}),
	}
}

// Len returns the number of distinct keys observed so far.
func (s *DedupState) Len() int { return len(s.seen) }

// observe records the key and reports whether this is its first occurrence.
func (s *DedupState) observe(key string) bool {
	h := xxh3.HashString128(key)
	if _, dup := s.seen[h]; dup {
		return false
	}
	s.seen[h] = struct{}{}
	return true
}

// Filter applies keep-first deduplication to one chunk: records whose natural
// key was already seen anywhere earlier in the run are dropped; first
// occurrences pass through in order and are remembered.
//
// The contract guarantees the natural key is required, so a record reaching
// this stage with a nil key is a pipeline fault, not data: it is reported as
// an *InvariantError.
func (s *DedupState) Filter(chunk []records.Record) (kept []records.Record, dropped int, err error) {
	kept = chunk[:0]
	for _, rec := range chunk {
		key, ok := rec.String(s.keyField)
		if !ok || key == "" {
			return nil, 0, fmt.Errorf("dedup: %w", &InvariantError{Field: s.keyField, Value: rec[s.keyField]})
		}
		if s.observe(key) {
			kept = append(kept, rec)
		} else {
			dropped++
		}
	}
	return kept, dropped, nil
}
