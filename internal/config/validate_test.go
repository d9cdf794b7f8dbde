package config

import (
	"strings"
	"testing"
)

func validPipeline() Pipeline {
	return Pipeline{
		Job:    "ride_bookings",
		Source: Source{Kind: "file", File: SourceFile{Path: "data.csv"}},
		Parser: Parser{Kind: "csv"},
		Storage: Storage{
			Kind: "postgres",
			DB: DBConfig{
				DSN:         "postgres://localhost/rides",
				Table:       "public.stg_rides",
				RejectTable: "public.stg_rejects",
			},
		},
		Runtime: Runtime{ChunkSize: 1000, OnChunkFailure: PolicyAbort},
	}
}

func findIssue(issues []Issue, path string) (Issue, bool) {
	for _, i := range issues {
		if i.Path == path {
			return i, true
		}
	}
	return Issue{}, false
}

func TestValidatePipelineClean(t *testing.T) {
	t.Parallel()

	if issues := ValidatePipeline(validPipeline()); len(issues) != 0 {
		t.Fatalf("issues = %v, want none", issues)
	}
}

func TestValidatePipelineIssues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(*Pipeline)
		path     string
		severity IssueSeverity
	}{
		{"empty_job", func(p *Pipeline) { p.Job = "" }, "job", SeverityError},
		{"no_source_kind", func(p *Pipeline) { p.Source.Kind = "" }, "source.kind", SeverityError},
		{"bad_source_kind", func(p *Pipeline) { p.Source.Kind = "ftp" }, "source.kind", SeverityError},
		{"file_without_path", func(p *Pipeline) { p.Source.File.Path = " " }, "source.file.path", SeverityError},
		{"http_without_url", func(p *Pipeline) { p.Source = Source{Kind: "http"} }, "source.http.url", SeverityError},
		{"bad_parser", func(p *Pipeline) { p.Parser.Kind = "xml" }, "parser.kind", SeverityError},
		{"no_storage_kind", func(p *Pipeline) { p.Storage.Kind = "" }, "storage.kind", SeverityError},
		{"no_dsn", func(p *Pipeline) { p.Storage.DB.DSN = "" }, "storage.db.dsn", SeverityError},
		{"no_table", func(p *Pipeline) { p.Storage.DB.Table = "" }, "storage.db.table", SeverityError},
		{"no_reject_table_warns", func(p *Pipeline) { p.Storage.DB.RejectTable = "" }, "storage.db.reject_table", SeverityWarning},
		{"negative_chunk", func(p *Pipeline) { p.Runtime.ChunkSize = -1 }, "runtime.chunk_size", SeverityError},
		{"bad_policy", func(p *Pipeline) { p.Runtime.OnChunkFailure = "retry" }, "runtime.on_chunk_failure", SeverityError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := validPipeline()
			tc.mutate(&p)
			iss, ok := findIssue(ValidatePipeline(p), tc.path)
			if !ok {
				t.Fatalf("no issue at path %q", tc.path)
			}
			if iss.Severity != tc.severity {
				t.Fatalf("severity = %s, want %s", iss.Severity, tc.severity)
			}
		})
	}
}

/*
TestValidatePipelineContract verifies an inline contract is checked for
coherence, in particular that the natural key must be declared required.
*/
func TestValidatePipelineContract(t *testing.T) {
	t.Parallel()

	p := validPipeline()
	c := p.ResolveContract()
	for i := range c.Fields {
		if c.Fields[i].Name == c.NaturalKey {
			c.Fields[i].Required = false
		}
	}
	p.Contract = &c

	iss, ok := findIssue(ValidatePipeline(p), "contract")
	if !ok {
		t.Fatalf("broken contract produced no issue")
	}
	if iss.Severity != SeverityError || !strings.Contains(iss.Message, "required") {
		t.Fatalf("issue = %+v", iss)
	}
}

func TestIssueError(t *testing.T) {
	t.Parallel()

	i := Issue{Severity: SeverityError, Path: "storage.db.dsn", Message: "dsn is required"}
	if got := i.Error(); got != "error at storage.db.dsn: dsn is required" {
		t.Fatalf("Error() = %q", got)
	}
}
