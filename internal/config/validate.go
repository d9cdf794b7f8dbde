// This file adds a lightweight linter for Pipeline values: static checks over
// a decoded Pipeline returning a list of issues callers can surface in a CLI
// or treat as fatal.
package config

import (
	"fmt"
	"strings"
)

// IssueSeverity grades a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning should be surfaced but need not block.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single lint finding. Path is a dotted path into the
// config (e.g. "storage.db.table").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements error so an Issue can be treated as one.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// ValidatePipeline statically validates a Pipeline without mutating it.
// Callers decide whether warnings are fatal.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it labels metrics and identifies runs",
		})
	}

	issues = append(issues, validateSource(p.Source)...)

	switch p.Parser.Kind {
	case "csv":
	case "":
		issues = append(issues, Issue{SeverityError, "parser.kind", "parser.kind is required (csv)"})
	default:
		issues = append(issues, Issue{SeverityError, "parser.kind", fmt.Sprintf("unsupported parser.kind %q", p.Parser.Kind)})
	}

	// The contract (built-in or inline) must be coherent; in particular the
	// natural key has to be declared required, or dedup guarantees collapse.
	if err := p.ResolveContract().Check(); err != nil {
		issues = append(issues, Issue{SeverityError, "contract", err.Error()})
	}

	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateRuntime(p.Runtime)...)

	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue
	switch s.Kind {
	case "file":
		if strings.TrimSpace(s.File.Path) == "" {
			issues = append(issues, Issue{SeverityError, "source.file.path", "path is required for source.kind=file"})
		}
	case "http":
		if strings.TrimSpace(s.HTTP.URL) == "" {
			issues = append(issues, Issue{SeverityError, "source.http.url", "url is required for source.kind=http"})
		}
	case "":
		issues = append(issues, Issue{SeverityError, "source.kind", "source.kind is required (file|http)"})
	default:
		issues = append(issues, Issue{SeverityError, "source.kind", fmt.Sprintf("unsupported source.kind %q", s.Kind)})
	}
	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue
	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{SeverityError, "storage.kind", "storage.kind is required (postgres|sqlite)"})
	}
	if strings.TrimSpace(s.DB.DSN) == "" {
		issues = append(issues, Issue{SeverityError, "storage.db.dsn", "dsn is required"})
	}
	if strings.TrimSpace(s.DB.Table) == "" {
		issues = append(issues, Issue{SeverityError, "storage.db.table", "table is required"})
	}
	if strings.TrimSpace(s.DB.RejectTable) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.db.reject_table",
			Message:  "reject_table is empty; invalid rows will have no audit trail",
		})
	}
	return issues
}

func validateRuntime(r Runtime) []Issue {
	var issues []Issue
	if r.ChunkSize < 0 {
		issues = append(issues, Issue{SeverityError, "runtime.chunk_size", "chunk_size must be >= 0"})
	}
	switch r.OnChunkFailure {
	case "", PolicyAbort, PolicySkip:
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.on_chunk_failure",
			Message:  fmt.Sprintf("must be %q or %q, got %q", PolicyAbort, PolicySkip, r.OnChunkFailure),
		})
	}
	return issues
}
