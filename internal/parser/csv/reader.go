// Package csv turns a raw byte stream into ordered chunks of records keyed by
// the contract's canonical field names.
//
// The reader is strictly single-pass and bounded: it never holds more than one
// chunk in memory, and chunks preserve source order. Header handling follows
// the contract's header map; unmapped headers fall back to
// lowercase-with-underscores so near-miss exports still line up.
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strings"

	"rideingest/internal/datasource"
	"rideingest/internal/schema"
	"rideingest/pkg/records"
)

const utf8BOM = "\ufeff"

// DefaultChunkSize bounds a chunk when the config does not say otherwise.
const DefaultChunkSize = 10_000

// Options tunes CSV parsing. The zero value is usable.
type Options struct {
	// Comma is the field delimiter; ',' when zero.
	Comma rune
	// LazyQuotes tolerates unescaped quotes inside fields.
	LazyQuotes bool
}

// RowError describes a data row the CSV layer could not parse. Such rows are
// surfaced to the caller (they become reject entries) but never stop the run.
type RowError struct {
	Line int
	Err  error
}

// ChunkReader produces ordered chunks of at most chunkSize records.
type ChunkReader struct {
	name      string
	src       io.ReadCloser
	cr        *csv.Reader
	contract  schema.Contract
	columns   []string
	colIx     []int // colIx[target] = source column index, or -1
	chunkSize int
	line      int
	rowErrs   []RowError
	seen      int
}

// NewChunkReader opens the source and consumes the header row. Any failure
// here (unreadable source, unreadable header, or a header missing a required
// contract column) is returned as *SourceError and must abort the run.
func NewChunkReader(
	ctx context.Context,
	source datasource.Source,
	contract schema.Contract,
	chunkSize int,
	opt Options,
) (*ChunkReader, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	src, err := source.Open(ctx)
	if err != nil {
		return nil, &SourceError{Source: contract.Name, Err: err}
	}

	cr := csv.NewReader(src)
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	cr.LazyQuotes = opt.LazyQuotes
	cr.ReuseRecord = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1 // tolerant; short rows yield nil cells

	r := &ChunkReader{
		name:      contract.Name,
		src:       src,
		cr:        cr,
		contract:  contract,
		columns:   contract.Columns(),
		chunkSize: chunkSize,
	}

	if err := r.readHeader(); err != nil {
		src.Close()
		return nil, &SourceError{Source: contract.Name, Err: err}
	}
	return r, nil
}

func (r *ChunkReader) readHeader() error {
	hdr, err := r.cr.Read()
	r.line++
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	srcToIdx := make(map[string]int, len(hdr))
	for i, h := range hdr {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		if mapped, ok := r.contract.HeaderMap[h]; ok {
			h = mapped
		} else {
			h = strings.ReplaceAll(strings.ToLower(h), " ", "_")
		}
		srcToIdx[h] = i
	}

	r.colIx = make([]int, len(r.columns))
	for t, target := range r.columns {
		si, ok := srcToIdx[target]
		if !ok {
			si = -1
		}
		r.colIx[t] = si
	}

	// A header missing a required column can never produce a valid record;
	// fail before touching data.
	var missing []string
	for _, f := range r.contract.Fields {
		if !f.Required {
			continue
		}
		if _, ok := srcToIdx[f.Name]; !ok {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("header missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Next returns the next chunk in source order, or io.EOF when the source is
// exhausted. Rows the csv layer cannot parse are skipped and reported via
// RowErrors; they never abort the read.
func (r *ChunkReader) Next(ctx context.Context) ([]records.Record, error) {
	chunk := make([]records.Record, 0, r.chunkSize)
	for len(chunk) < r.chunkSize {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		rec, err := r.cr.Read()
		r.line++
		if err == io.EOF {
			if len(chunk) == 0 {
				return nil, io.EOF
			}
			return chunk, nil
		}
		if err != nil {
			r.rowErrs = append(r.rowErrs, RowError{Line: r.line, Err: err})
			continue
		}

		row := make(records.Record, len(r.columns))
		for t, col := range r.columns {
			si := r.colIx[t]
			if si < 0 || si >= len(rec) {
				row[col] = nil
				continue
			}
			v := strings.TrimSpace(rec[si])
			if v == "" {
				row[col] = nil
			} else {
				row[col] = v
			}
		}
		chunk = append(chunk, row)

		r.seen++
		if r.seen%50_000 == 0 {
			log.Printf("reader: line=%d emitted=%d", r.line, r.seen)
		}
	}
	return chunk, nil
}

// RowErrors drains the parse errors accumulated since the last call.
func (r *ChunkReader) RowErrors() []RowError {
	errs := r.rowErrs
	r.rowErrs = nil
	return errs
}

// Columns returns the canonical column order records are keyed by.
func (r *ChunkReader) Columns() []string { return r.columns }

// Close releases the underlying stream.
func (r *ChunkReader) Close() error { return r.src.Close() }
