// Package storage contains the storage-agnostic contracts for the ingestion
// destination: the Repository interface, a factory registry keyed by backend
// kind, and the two-tier chunk loader built on top of them.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// RejectEntry is one durable audit row for an input record that failed
// validation. RawRecord holds the original record as a JSON object.
type RejectEntry struct {
	SourceName string
	RawRecord  []byte
	Reason     string
	RejectedAt time.Time
}

// Repository is the minimal backend surface the loader needs. Both write
// paths are atomic per call: a failed CopyFrom or InsertRows must leave no
// rows committed from that call.
type Repository interface {
	// CopyFrom is the set-oriented fast path: one bulk operation writing all
	// rows (aligned to the columns order) into the destination table.
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)

	// InsertRows is the row-oriented fallback: per-row inserts inside a
	// single transaction, committed only if every row succeeds.
	InsertRows(ctx context.Context, columns []string, rows [][]any) (int64, error)

	// InsertRejects appends audit rows to the reject relation. Implementations
	// must keep this independent of the main data path.
	InsertRejects(ctx context.Context, entries []RejectEntry) error

	// Exec runs a raw statement (DDL, stored procedure calls).
	Exec(ctx context.Context, sql string) error

	Close()
}

// Config selects and configures a backend.
type Config struct {
	// Kind selects the registered backend, e.g. "postgres" or "sqlite".
	Kind string

	// DSN is the backend connection string.
	DSN string

	// Table is the destination table for valid records, possibly
	// schema-qualified ("public.stg_rides").
	Table string

	// RejectTable is the append-only reject relation ("public.stg_rejects").
	RejectTable string

	// Columns is the destination's ordered column list.
	Columns []string
}

// Factory constructs a Repository for one backend kind.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs (or replaces) the factory for a backend kind. Backend
// packages call this from init; tests may override.
func Register(kind string, fn Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = fn
}

// New opens a Repository for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	fn, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return fn(ctx, cfg)
}

// ListKinds returns a sorted snapshot of the registered backend kinds.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
