// Package raster defines the boundary types between the tile pipeline and its
// external collaborators: sources that produce raster patches and transforms
// that turn batches of patches into result patches.
package raster

import (
	"context"

	"github.com/paulmach/orb"

	"github.com/osmundr/go-tileproc/grid"
)

// Patch is one raster patch fetched for a tile. Data is opaque to the
// pipeline; Region is the patch extent, margin expansion included.
type Patch struct {
	Anchor grid.Anchor
	Region grid.Region
	Data   []byte
}

// Result is the per-tile outcome of a transform: geometry and attributes to
// merge into the cumulative output store.
type Result struct {
	Anchor     grid.Anchor
	Geometry   orb.Geometry
	Attributes map[string]string
}

// Source produces the raster patch for a tile. Margin is a non-negative
// context expansion around the tile's nominal extent, in the same units as
// the tile size.
type Source interface {
	Fetch(ctx context.Context, anchor grid.Anchor, margin int) (Patch, error)
}

// Transform turns a batch of raster patches into a batch of result patches.
// It must preserve the batch size, with result i corresponding to patch i,
// and must not depend on pipeline state.
type Transform interface {
	Apply(ctx context.Context, batch []Patch) ([]Result, error)
}

// SourceFunc adapts a plain function to the Source interface.
type SourceFunc func(ctx context.Context, anchor grid.Anchor, margin int) (Patch, error)

func (f SourceFunc) Fetch(ctx context.Context, anchor grid.Anchor, margin int) (Patch, error) {
	return f(ctx, anchor, margin)
}

// TransformFunc adapts a plain function to the Transform interface.
type TransformFunc func(ctx context.Context, batch []Patch) ([]Result, error)

func (f TransformFunc) Apply(ctx context.Context, batch []Patch) ([]Result, error) {
	return f(ctx, batch)
}
