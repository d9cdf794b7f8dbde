package csv

import "fmt"

// SourceError reports that the source could not be opened or that its
// structural shape (header row) is unusable. It is always fatal: the run
// aborts before any data row is processed.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }
