// This file keeps the CLI layer thin: it resolves config into concrete
// source/storage implementations and hands them to the pipeline. It never
// touches database drivers directly; backends register themselves via the
// storage/all import in main.go.
package main

import (
	"context"
	"fmt"
	"io"

	"rideingest/internal/config"
	"rideingest/internal/datasource"
	"rideingest/internal/datasource/file"
	"rideingest/internal/datasource/httpds"
	csvparser "rideingest/internal/parser/csv"
	"rideingest/internal/pipeline"
	"rideingest/internal/schema/ddl"
	"rideingest/internal/storage"
)

// Function variables used to introduce test seams. Production code points
// them at the real implementations.
var (
	newRepositoryFn = func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return storage.New(ctx, cfg)
	}

	newSourceFn = newSource
)

func newSource(cfg config.Source) (datasource.Source, error) {
	switch cfg.Kind {
	case "file":
		return file.NewLocal(cfg.File.Path), nil
	case "http":
		return httpds.NewRemote(httpds.Config{
			URL:        cfg.HTTP.URL,
			MaxRetries: cfg.HTTP.MaxRetries,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported source.kind=%q", cfg.Kind)
	}
}

// emitDDL writes the CREATE TABLE statements for one pipeline's staging and
// reject tables.
func emitDDL(w io.Writer, spec config.Pipeline) error {
	stg, err := ddl.StagingTable(spec.ResolveContract(), spec.Storage.Kind, spec.Storage.DB.Table)
	if err != nil {
		return err
	}
	sql, err := ddl.Render(stg)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, sql); err != nil {
		return err
	}

	if spec.Storage.DB.RejectTable == "" {
		return nil
	}
	rej, err := ddl.RejectTable(spec.Storage.Kind, spec.Storage.DB.RejectTable)
	if err != nil {
		return err
	}
	sql, err = ddl.Render(rej)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, sql)
	return err
}

// runPipeline resolves one pipeline config and executes it to completion.
func runPipeline(ctx context.Context, spec config.Pipeline) (pipeline.Summary, error) {
	contract := spec.ResolveContract()

	src, err := newSourceFn(spec.Source)
	if err != nil {
		return pipeline.Summary{}, err
	}

	cols := spec.Storage.DB.Columns
	if len(cols) == 0 {
		cols = contract.Columns()
	}

	repo, err := newRepositoryFn(ctx, storage.Config{
		Kind:        spec.Storage.Kind,
		DSN:         spec.Storage.DB.DSN,
		Table:       spec.Storage.DB.Table,
		RejectTable: spec.Storage.DB.RejectTable,
		Columns:     cols,
	})
	if err != nil {
		return pipeline.Summary{}, fmt.Errorf("storage init: %w", err)
	}
	defer repo.Close()

	p := &pipeline.Pipeline{
		Job:      spec.Job,
		Contract: contract,
		Source:   src,
		Repo:     repo,
		CSVOptions: csvparser.Options{
			Comma:      spec.Parser.Options.Rune("comma", ','),
			LazyQuotes: spec.Parser.Options.Bool("lazy_quotes", false),
		},
		ChunkSize: spec.Runtime.ChunkSize,
		Policy:    spec.Runtime.OnChunkFailure,
		Procedure: spec.Runtime.Procedure,
		Columns:   cols,
	}
	return p.Run(ctx)
}
