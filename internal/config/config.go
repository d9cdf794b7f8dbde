// Package config defines the JSON-serializable configuration model for an
// ingestion run. It is intentionally small and decoded with the standard
// library; parser-specific knobs live in a free-form Options bag with typed
// getters.
package config

import (
	"encoding/json"

	"rideingest/internal/schema"
)

// Failure policies for a chunk whose load fails on both write paths.
const (
	PolicyAbort = "abort" // stop the run (default)
	PolicySkip  = "skip"  // record the loss, continue with the next chunk
)

// Pipeline is the top-level object decoded from a pipeline file.
type Pipeline struct {
	// Job names the run for logs and metric labels.
	Job string `json:"job"`

	// Source describes where the raw bytes come from.
	Source Source `json:"source"`

	// Parser configures how bytes become records. Current kind: "csv".
	Parser Parser `json:"parser"`

	// Contract optionally overrides the built-in ride-bookings contract.
	Contract *schema.Contract `json:"contract,omitempty"`

	// Storage selects and configures the destination backend.
	Storage Storage `json:"storage"`

	Runtime Runtime `json:"runtime"`
}

// ResolveContract returns the configured contract, or the built-in
// ride-bookings contract when none is given.
func (p Pipeline) ResolveContract() schema.Contract {
	if p.Contract != nil {
		return *p.Contract
	}
	return schema.RideBookings()
}

// Source identifies the data source.
type Source struct {
	// Kind selects the source implementation: "file" or "http".
	Kind string `json:"kind"`

	File SourceFile `json:"file"`
	HTTP SourceHTTP `json:"http"`
}

// SourceFile holds configuration for the "file" source kind.
type SourceFile struct {
	Path string `json:"path"`
}

// SourceHTTP holds configuration for the "http" source kind.
type SourceHTTP struct {
	URL string `json:"url"`
	// MaxRetries bounds re-attempts on transient failures.
	MaxRetries int `json:"max_retries"`
}

// Parser selects how to parse the raw source into records.
type Parser struct {
	// Kind selects the parser implementation. Current value: "csv".
	Kind string `json:"kind"`

	// Options is a free-form map interpreted by the parser. For CSV:
	// comma (string, first rune), lazy_quotes (bool).
	Options Options `json:"options"`
}

// Storage selects the sink used to persist records.
type Storage struct {
	// Kind selects the storage backend, e.g. "postgres" or "sqlite".
	Kind string `json:"kind"`

	DB DBConfig `json:"db"`
}

// DBConfig configures the destination database.
type DBConfig struct {
	// DSN is the backend connection string.
	DSN string `json:"dsn"`

	// Table is the destination table for valid records, e.g. "public.stg_rides".
	Table string `json:"table"`

	// RejectTable is the append-only reject audit relation.
	RejectTable string `json:"reject_table"`

	// Columns optionally narrows the destination column list; when empty the
	// contract's full column set is used in declaration order.
	Columns []string `json:"columns,omitempty"`
}

// Runtime controls chunking and failure policy.
type Runtime struct {
	// ChunkSize bounds records per chunk; 0 means the default (10000).
	ChunkSize int `json:"chunk_size"`

	// OnChunkFailure is the policy when both write paths fail for a chunk:
	// "abort" (default) or "skip".
	OnChunkFailure string `json:"on_chunk_failure"`

	// Procedure optionally names a statement executed after the last chunk,
	// e.g. "CALL transfer_stage_to_core();". Empty disables it.
	Procedure string `json:"procedure"`
}

// Options is a small helper to fetch typed values from arbitrary JSON maps.
// It performs only minimal type coercion and returns the provided default
// when a key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers decode as float64,
// so both float64 and int are accepted.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def. Useful for
// single-character settings such as the CSV delimiter.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// UnmarshalJSON decodes a missing or null options object to a non-nil, empty
// map so call sites never nil-check.
func (o *Options) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	var tmp map[string]any
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
