// Package datasource abstracts where the raw booking bytes come from. A
// Source yields a single-use byte stream; re-opening restarts the stream from
// the beginning.
package datasource

import (
	"context"
	"io"
)

// Source opens the configured locator for reading. Implementations must
// return a fresh stream on every call and honor ctx cancellation during open.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
