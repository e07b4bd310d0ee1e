package grid

import (
	"fmt"
	"sort"

	"github.com/google/hilbert"
)

// SortHilbert reorders the anchors along a Hilbert curve over the tile grid,
// so that consecutive anchors are spatially close. Useful for fetch locality
// when the backing store caches by spatial extent.
func (s *TileSet) SortHilbert() error {
	if len(s.anchors) < 2 {
		return nil
	}

	minX, minY := s.anchors[0].X, s.anchors[0].Y
	for _, anchor := range s.anchors[1:] {
		minX = min(minX, anchor.X)
		minY = min(minY, anchor.Y)
	}

	extent := 0
	columns := make([]int, len(s.anchors))
	rows := make([]int, len(s.anchors))
	for i, anchor := range s.anchors {
		columns[i] = floorTo(anchor.X-minX, s.tileSize) / s.tileSize
		rows[i] = floorTo(anchor.Y-minY, s.tileSize) / s.tileSize
		extent = max(extent, columns[i]+1, rows[i]+1)
	}

	side := 1
	for side < extent {
		side *= 2
	}

	curve, err := hilbert.NewHilbert(side)
	if err != nil {
		return fmt.Errorf("tileproc: hilbert order: %w", err)
	}

	distances := make([]int, len(s.anchors))
	for i := range s.anchors {
		distances[i], err = curve.MapInverse(columns[i], rows[i])
		if err != nil {
			return fmt.Errorf("tileproc: hilbert order: %w", err)
		}
	}

	indices := make([]int, len(s.anchors))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(a, b int) bool {
		return distances[indices[a]] < distances[indices[b]]
	})

	ordered := make([]Anchor, len(s.anchors))
	for i, index := range indices {
		ordered[i] = s.anchors[index]
	}
	s.anchors = ordered

	return nil
}
