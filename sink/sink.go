// Package sink accumulates per-tile results, persists them to durable storage
// batch by batch, and records completed anchors so interrupted runs resume
// without reprocessing or duplicating output.
package sink

import (
	"context"
	"errors"

	"github.com/osmundr/go-tileproc/grid"
	"github.com/osmundr/go-tileproc/raster"
)

// ErrWrite marks a durable-storage failure. It is always fatal to the run:
// a partial write would break the flush-before-record ordering.
var ErrWrite = errors.New("tileproc: sink write failed")

// Sink persists batches of results. For every batch, implementations must
// flush the results to durable storage before appending the anchors to the
// progress record, so a reader of the record never sees an anchor recorded as
// complete while its output is not yet visible. Sinks must tolerate re-open
// against non-empty prior output.
type Sink interface {
	// Write persists the batch and then records its anchors as completed.
	Write(ctx context.Context, batch []raster.Result) error

	// LoadProgress returns the anchors already completed by earlier runs.
	LoadProgress() (grid.AnchorSet, error)

	Close() error
}
