package filter

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/osmundr/go-tileproc/grid"
)

// GeospatialMode selects how anchors relate to a reference geometry.
type GeospatialMode int

const (
	// Intersection keeps only anchors whose cell intersects the geometry.
	Intersection GeospatialMode = iota
	// Difference drops anchors whose cell intersects the geometry.
	Difference
)

func (m GeospatialMode) String() string {
	switch m {
	case Intersection:
		return "intersection"
	case Difference:
		return "difference"
	default:
		return fmt.Sprintf("GeospatialMode(%d)", int(m))
	}
}

type geospatialFilter struct {
	tileSize   int
	mode       GeospatialMode
	geometries []orb.Geometry
}

// Geospatial returns a filter that keeps (Intersection) or drops (Difference)
// anchors whose covering cell intersects the reference geometries. Both modes
// share one intersection predicate, so over any input they produce exact
// complements.
func Geospatial(tileSize int, mode GeospatialMode, geometries ...orb.Geometry) (Filter, error) {
	if tileSize <= 0 {
		return nil, fmt.Errorf("%w: tile size must be positive, got %d", grid.ErrInvalidGeometry, tileSize)
	}
	if mode != Intersection && mode != Difference {
		return nil, fmt.Errorf("%w: unknown geospatial mode %d", grid.ErrInvalidGeometry, int(mode))
	}
	return &geospatialFilter{tileSize: tileSize, mode: mode, geometries: geometries}, nil
}

func (f *geospatialFilter) Apply(anchors []grid.Anchor) []grid.Anchor {
	keepIntersecting := f.mode == Intersection

	result := make([]grid.Anchor, 0, len(anchors))
	for _, anchor := range anchors {
		intersects := anchor.Cell(f.tileSize).IntersectsGeometry(f.geometries...)
		if intersects == keepIntersecting {
			result = append(result, anchor)
		}
	}
	return result
}
