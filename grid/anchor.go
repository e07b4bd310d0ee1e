package grid

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/planar"
)

// Anchor identifies one tile by the coordinates of its lower-left corner, in
// units of the source coordinate system. Anchors may be offset relative to
// tile-size multiples when derived from unquantized regions.
type Anchor struct {
	X int
	Y int
}

// Cell returns the square extent of the tile anchored at a.
func (a Anchor) Cell(tileSize int) Region {
	return Region{MinX: a.X, MinY: a.Y, MaxX: a.X + tileSize, MaxY: a.Y + tileSize}
}

// AnchorSet is an unordered membership set of anchors.
type AnchorSet map[Anchor]struct{}

func NewAnchorSet(anchors ...Anchor) AnchorSet {
	set := make(AnchorSet, len(anchors))
	for _, anchor := range anchors {
		set.Add(anchor)
	}
	return set
}

func (s AnchorSet) Add(anchor Anchor) { s[anchor] = struct{}{} }

func (s AnchorSet) Has(anchor Anchor) bool {
	_, found := s[anchor]
	return found
}

// IntersectsGeometry reports whether the region shares interior or boundary
// with any of the given geometries. Areal geometries must overlap the region
// with positive area; mere edge contact does not count. Lineal and puntal
// geometries intersect if any part lies within the region.
func (r Region) IntersectsGeometry(geometries ...orb.Geometry) bool {
	bound := r.Bound()
	for _, geometry := range geometries {
		if geometry == nil || !bound.Intersects(geometry.Bound()) {
			continue
		}

		clipped := clip.Geometry(bound, orb.Clone(geometry))
		if clipped == nil {
			continue
		}

		switch geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
			if planar.Area(clipped) > 0 {
				return true
			}
		default:
			return true
		}
	}
	return false
}
