package pipeline

import (
	"fmt"
	"time"
)

// Summary is the run-level accounting emitted when a run finalizes. Every
// input row ends in exactly one bucket, so
// loaded + rejected + deduplicated + failed == total always holds; failed is
// non-zero only when the skip policy sacrificed chunks.
type Summary struct {
	RunID string
	Job   string

	TotalRows        int64
	RowsLoaded       int64
	RowsRejected     int64
	RowsDeduplicated int64
	RowsFailed       int64

	// DistinctKeys is the size of the dedup set at the end of the run.
	DistinctKeys int

	Elapsed time.Duration
}

// Check verifies the accounting identity. A mismatch means the pipeline
// itself miscounted and is reported as an error, never papered over.
func (s Summary) Check() error {
	sum := s.RowsLoaded + s.RowsRejected + s.RowsDeduplicated + s.RowsFailed
	if sum != s.TotalRows {
		return fmt.Errorf(
			"run %s: accounting mismatch: loaded=%d rejected=%d deduplicated=%d failed=%d sum=%d total=%d",
			s.RunID, s.RowsLoaded, s.RowsRejected, s.RowsDeduplicated, s.RowsFailed, sum, s.TotalRows)
	}
	return nil
}

func (s Summary) String() string {
	return fmt.Sprintf(
		"run=%s job=%s total=%d loaded=%d rejected=%d deduplicated=%d failed=%d distinct_keys=%d elapsed=%s",
		s.RunID, s.Job, s.TotalRows, s.RowsLoaded, s.RowsRejected, s.RowsDeduplicated,
		s.RowsFailed, s.DistinctKeys, s.Elapsed.Truncate(time.Millisecond))
}
