// Package grid provides the tile-coordinate algebra: axis-aligned regions
// and ordered, duplicate-free sets of tile anchors sharing one tile size.
package grid

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var (
	ErrInvalidGeometry    = errors.New("tileproc: invalid geometry")
	ErrMismatchedTileSize = errors.New("tileproc: mismatched tile size")
)

// Region is an axis-aligned rectangular extent in a planar coordinate system.
// Bounds are settable in place; call Validate after direct mutation. Zero-area
// regions are legal, negative-area regions are rejected.
//
// The zero Region is also the empty sentinel returned by Intersect for
// disjoint inputs, see IsEmpty.
type Region struct {
	MinX int
	MinY int
	MaxX int
	MaxY int
}

// NewRegion creates a region from explicit bounds.
// It returns ErrInvalidGeometry if min exceeds max on either axis.
func NewRegion(minX, minY, maxX, maxY int) (Region, error) {
	r := Region{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
	if err := r.Validate(); err != nil {
		return Region{}, err
	}
	return r, nil
}

// RegionOf creates a region from the envelope of the union of the given
// geometries. Fractional bounds are rounded outward to integers.
func RegionOf(geometries ...orb.Geometry) (Region, error) {
	if len(geometries) == 0 {
		return Region{}, fmt.Errorf("%w: no geometries", ErrInvalidGeometry)
	}

	bound := geometries[0].Bound()
	for _, geometry := range geometries[1:] {
		bound = bound.Union(geometry.Bound())
	}

	return NewRegion(
		int(math.Floor(bound.Min.X())),
		int(math.Floor(bound.Min.Y())),
		int(math.Ceil(bound.Max.X())),
		int(math.Ceil(bound.Max.Y())),
	)
}

// Validate checks the bounds invariant after in-place mutation.
func (r Region) Validate() error {
	if r.MinX > r.MaxX || r.MinY > r.MaxY {
		return fmt.Errorf("%w: degenerate region bounds (%d, %d, %d, %d)",
			ErrInvalidGeometry, r.MinX, r.MinY, r.MaxX, r.MaxY)
	}
	return nil
}

// IsEmpty reports whether the region is the empty sentinel.
func (r Region) IsEmpty() bool {
	return r == Region{}
}

func (r Region) Width() int  { return r.MaxX - r.MinX }
func (r Region) Height() int { return r.MaxY - r.MinY }

// Area returns width times height.
func (r Region) Area() int {
	return r.Width() * r.Height()
}

// Intersect returns the overlapping rectangle of the two regions, or the
// empty sentinel if they are disjoint.
func (r Region) Intersect(other Region) Region {
	result := Region{
		MinX: max(r.MinX, other.MinX),
		MinY: max(r.MinY, other.MinY),
		MaxX: min(r.MaxX, other.MaxX),
		MaxY: min(r.MaxY, other.MaxY),
	}
	if result.MinX > result.MaxX || result.MinY > result.MaxY {
		return Region{}
	}
	return result
}

// Union returns the smallest rectangle covering both regions. For disjoint
// inputs the result covers the gap between them as well, so it is not a true
// set union.
func (r Region) Union(other Region) Region {
	return Region{
		MinX: min(r.MinX, other.MinX),
		MinY: min(r.MinY, other.MinY),
		MaxX: max(r.MaxX, other.MaxX),
		MaxY: max(r.MaxY, other.MaxY),
	}
}

// Buffer grows (positive amount) or shrinks (negative amount) every edge by
// amount. It returns ErrInvalidGeometry if shrinking collapses the region.
func (r Region) Buffer(amount int) (Region, error) {
	result := Region{
		MinX: r.MinX - amount,
		MinY: r.MinY - amount,
		MaxX: r.MaxX + amount,
		MaxY: r.MaxY + amount,
	}
	if err := result.Validate(); err != nil {
		return Region{}, fmt.Errorf("%w: buffer amount %d collapses region", ErrInvalidGeometry, amount)
	}
	return result, nil
}

// SnapToGrid rounds min bounds down and max bounds up to the nearest multiple
// of pitch. The result fully contains the input.
func (r Region) SnapToGrid(pitch int) (Region, error) {
	if pitch <= 0 {
		return Region{}, fmt.Errorf("%w: pitch must be positive, got %d", ErrInvalidGeometry, pitch)
	}
	return Region{
		MinX: floorTo(r.MinX, pitch),
		MinY: floorTo(r.MinY, pitch),
		MaxX: ceilTo(r.MaxX, pitch),
		MaxY: ceilTo(r.MaxY, pitch),
	}, nil
}

func floorTo(value, pitch int) int {
	remainder := value % pitch
	if remainder < 0 {
		remainder += pitch
	}
	return value - remainder
}

func ceilTo(value, pitch int) int {
	return -floorTo(-value, pitch)
}

// Contains reports whether the anchor point lies within the region,
// minimum edges inclusive, maximum edges exclusive.
func (r Region) Contains(a Anchor) bool {
	return a.X >= r.MinX && a.X < r.MaxX && a.Y >= r.MinY && a.Y < r.MaxY
}

// Bound returns the region as an orb bound.
func (r Region) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{float64(r.MinX), float64(r.MinY)},
		Max: orb.Point{float64(r.MaxX), float64(r.MaxY)},
	}
}

// ToGeometry returns the region as a closed axis-aligned polygon.
func (r Region) ToGeometry() orb.Polygon {
	return r.Bound().ToPolygon()
}

// Feature returns the region as a GeoJSON feature in the caller-specified
// coordinate reference, recorded as a "crs" property.
func (r Region) Feature(crs string) *geojson.Feature {
	feature := geojson.NewFeature(r.ToGeometry())
	feature.Properties["crs"] = crs
	return feature
}
