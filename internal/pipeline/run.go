// Package pipeline drives a single ingestion run end to end: read a chunk,
// validate it, clean it, drop duplicates, load it, repeat until the source is
// exhausted, then finalize. Stages run strictly in order; a chunk is never
// read before the previous one is fully loaded.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"rideingest/internal/config"
	"rideingest/internal/datasource"
	"rideingest/internal/metrics"
	"rideingest/internal/parser/csv"
	"rideingest/internal/schema"
	"rideingest/internal/storage"
	"rideingest/internal/transform"
	"rideingest/pkg/records"
)

// Pipeline holds everything a run needs. Zero-value optional fields fall back
// to contract columns, default rules and the configured chunk size.
type Pipeline struct {
	Job      string
	Contract schema.Contract
	Source   datasource.Source
	Repo     storage.Repository

	ChunkSize  int
	CSVOptions csv.Options

	// Policy decides what happens when a whole chunk fails both write
	// paths: config.PolicyAbort stops the run, config.PolicySkip counts the
	// chunk as failed and moves on.
	Policy string

	// Procedure, when set, is executed against the repository after the
	// last chunk, typically a stage-to-core transfer.
	Procedure string

	// Columns overrides the destination column list; defaults to the
	// contract's canonical order.
	Columns []string

	Rules []transform.Rule

	now func() time.Time
}

func (p *Pipeline) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now()
}

// Run executes the full ingestion and returns its accounting. The returned
// Summary is valid even on error: it reflects everything committed before the
// failure.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	start := p.clock()
	sum := Summary{RunID: uuid.NewString(), Job: p.Job}

	if err := p.Contract.Check(); err != nil {
		return sum, fmt.Errorf("run %s: %w", sum.RunID, err)
	}
	if p.Source == nil || p.Repo == nil {
		return sum, fmt.Errorf("run %s: pipeline missing source or repository", sum.RunID)
	}

	cols := p.Columns
	if len(cols) == 0 {
		cols = p.Contract.Columns()
	}
	rules := p.Rules
	if rules == nil {
		rules = transform.DefaultRules()
	}

	validator := transform.NewValidator(p.Contract, rules)
	cleaner := transform.NewCleaner(p.Contract)
	dedup := transform.NewDedupState(p.Contract.NaturalKey)
	loader := storage.NewLoader(p.Repo, cols)

	reader, err := csv.NewChunkReader(ctx, p.Source, p.Contract, p.ChunkSize, p.CSVOptions)
	if err != nil {
		return sum, fmt.Errorf("run %s: %w", sum.RunID, err)
	}
	defer reader.Close()

	log.Printf("pipeline: run=%s job=%s started", sum.RunID, p.Job)

	for chunkNo := 1; ; chunkNo++ {
		readStart := p.clock()
		chunk, err := reader.Next(ctx)
		done := errors.Is(err, io.EOF)
		if err != nil && !done {
			metrics.RecordStep(p.Job, "read", err, p.clock().Sub(readStart))
			return p.finish(sum, start, fmt.Errorf("run %s: chunk %d: %w", sum.RunID, chunkNo, err))
		}
		metrics.RecordStep(p.Job, "read", nil, p.clock().Sub(readStart))

		rejects := p.malformedRejects(reader.RowErrors())
		sum.TotalRows += int64(len(chunk)) + int64(len(rejects))
		if len(chunk) == 0 && len(rejects) == 0 {
			if done {
				break
			}
			continue
		}

		valid, invalid := p.validate(validator, chunk)
		rejects = append(rejects, invalid...)
		sum.RowsRejected += int64(len(rejects))

		cleaned, err := p.clean(cleaner, valid)
		if err != nil {
			return p.finish(sum, start, fmt.Errorf("run %s: chunk %d: %w", sum.RunID, chunkNo, err))
		}

		dedupStart := p.clock()
		kept, dropped, err := dedup.Filter(cleaned)
		metrics.RecordStep(p.Job, "dedup", err, p.clock().Sub(dedupStart))
		if err != nil {
			return p.finish(sum, start, fmt.Errorf("run %s: chunk %d: %w", sum.RunID, chunkNo, err))
		}
		if dropped > 0 {
			log.Printf("pipeline: run=%s chunk=%d duplicates=%d", sum.RunID, chunkNo, dropped)
		}
		sum.RowsDeduplicated += int64(dropped)
		sum.DistinctKeys = dedup.Len()

		loadStart := p.clock()
		out, rejectErr, err := loader.LoadChunk(ctx, chunkNo, kept, rejects)
		metrics.RecordStep(p.Job, "load", err, p.clock().Sub(loadStart))
		if rejectErr != nil {
			log.Printf("pipeline: run=%s chunk=%d reject audit write failed: %v", sum.RunID, chunkNo, rejectErr)
		}
		if err != nil {
			if p.Policy != config.PolicySkip {
				return p.finish(sum, start, fmt.Errorf("run %s: %w", sum.RunID, err))
			}
			log.Printf("pipeline: run=%s chunk=%d skipped after load failure: %v", sum.RunID, chunkNo, err)
			sum.RowsFailed += int64(out.RowsFailed)
		} else {
			sum.RowsLoaded += int64(out.RowsWritten)
			metrics.RecordChunk(p.Job, string(out.Path))
		}

		if done {
			break
		}
	}

	if p.Procedure != "" {
		finStart := p.clock()
		err := p.Repo.Exec(ctx, p.Procedure)
		metrics.RecordStep(p.Job, "finalize", err, p.clock().Sub(finStart))
		if err != nil {
			return p.finish(sum, start, fmt.Errorf("run %s: finalize procedure: %w", sum.RunID, err))
		}
	}

	return p.finish(sum, start, nil)
}

// finish closes out accounting, emits metrics and the summary line, and
// surfaces an identity violation as an error when the run itself succeeded.
func (p *Pipeline) finish(sum Summary, start time.Time, runErr error) (Summary, error) {
	sum.Elapsed = p.clock().Sub(start)

	metrics.RecordRows(p.Job, "total", sum.TotalRows)
	metrics.RecordRows(p.Job, "loaded", sum.RowsLoaded)
	metrics.RecordRows(p.Job, "rejected", sum.RowsRejected)
	metrics.RecordRows(p.Job, "deduplicated", sum.RowsDeduplicated)
	metrics.RecordRows(p.Job, "failed", sum.RowsFailed)

	if runErr != nil {
		log.Printf("pipeline: %s error=%v", sum, runErr)
		return sum, runErr
	}
	log.Printf("pipeline: %s", sum)
	if err := sum.Check(); err != nil {
		return sum, err
	}
	return sum, nil
}

// validate splits a chunk into typed records and reject entries. Every
// invalid record carries the full joined reason list and a JSON snapshot of
// its raw values.
func (p *Pipeline) validate(v *transform.Validator, chunk []records.Record) ([]records.Record, []storage.RejectEntry) {
	vStart := p.clock()
	valid := make([]records.Record, 0, len(chunk))
	var rejects []storage.RejectEntry
	for _, rec := range chunk {
		out := v.Validate(rec)
		if out.Valid() {
			valid = append(valid, out.Typed)
			continue
		}
		doc, err := rec.Document(p.Contract.Columns())
		if err != nil {
			doc = []byte("{}")
		}
		rejects = append(rejects, storage.RejectEntry{
			SourceName: p.Job,
			RawRecord:  doc,
			Reason:     out.Reason(),
			RejectedAt: p.clock(),
		})
	}
	metrics.RecordStep(p.Job, "validate", nil, p.clock().Sub(vStart))
	return valid, rejects
}

func (p *Pipeline) clean(c *transform.Cleaner, recs []records.Record) ([]records.Record, error) {
	cStart := p.clock()
	out := make([]records.Record, 0, len(recs))
	for _, rec := range recs {
		cleaned, err := c.Clean(rec)
		if err != nil {
			metrics.RecordStep(p.Job, "clean", err, p.clock().Sub(cStart))
			return nil, err
		}
		out = append(out, cleaned)
	}
	metrics.RecordStep(p.Job, "clean", nil, p.clock().Sub(cStart))
	return out, nil
}

// malformedRejects turns parser row errors into reject entries so structurally
// broken lines still land in the audit trail and the run totals.
func (p *Pipeline) malformedRejects(rowErrs []csv.RowError) []storage.RejectEntry {
	if len(rowErrs) == 0 {
		return nil
	}
	out := make([]storage.RejectEntry, 0, len(rowErrs))
	for _, re := range rowErrs {
		doc, err := json.Marshal(map[string]any{"line": re.Line, "error": re.Err.Error()})
		if err != nil {
			doc = []byte("{}")
		}
		out = append(out, storage.RejectEntry{
			SourceName: p.Job,
			RawRecord:  doc,
			Reason:     fmt.Sprintf("malformed row at line %d", re.Line),
			RejectedAt: p.clock(),
		})
	}
	return out
}
