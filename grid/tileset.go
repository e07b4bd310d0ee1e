package grid

import (
	"fmt"
	"iter"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Filter transforms an anchor sequence. Implementations may drop anchors but
// must not invent ones absent from the input, duplicate removal aside.
type Filter interface {
	Apply(anchors []Anchor) []Anchor
}

// TileSet is an insertion-ordered, duplicate-free collection of tile anchors
// sharing one tile size.
type TileSet struct {
	tileSize int
	anchors  []Anchor
}

// New creates a tile set with the given tile size and anchors.
// Duplicate anchors are collapsed, keeping the first occurrence.
func New(tileSize int, anchors ...Anchor) (*TileSet, error) {
	if tileSize <= 0 {
		return nil, fmt.Errorf("%w: tile size must be positive, got %d", ErrInvalidGeometry, tileSize)
	}
	return &TileSet{tileSize: tileSize, anchors: dedupeAnchors(anchors)}, nil
}

// FromRegion creates a tile set covering the region. Without quantization,
// anchors start at the region's minimum corner and step by tileSize until the
// maximum is reached or exceeded; the final row and column of tiles may extend
// beyond the region. With quantization, the region is first snapped to the
// tileSize grid, so every anchor coordinate is an exact multiple of tileSize.
func FromRegion(region Region, tileSize int, quantize bool) (*TileSet, error) {
	if err := region.Validate(); err != nil {
		return nil, err
	}
	if tileSize <= 0 {
		return nil, fmt.Errorf("%w: tile size must be positive, got %d", ErrInvalidGeometry, tileSize)
	}

	if quantize {
		var err error
		region, err = region.SnapToGrid(tileSize)
		if err != nil {
			return nil, err
		}
	}

	var anchors []Anchor
	for y := region.MinY; y < region.MaxY; y += tileSize {
		for x := region.MinX; x < region.MaxX; x += tileSize {
			anchors = append(anchors, Anchor{X: x, Y: y})
		}
	}

	return &TileSet{tileSize: tileSize, anchors: anchors}, nil
}

// FromGeometry creates the minimal tile set covering the given geometries:
// the covering grid of their envelope, reduced to the cells that intersect
// the geometries themselves.
func FromGeometry(geometries []orb.Geometry, tileSize int, quantize bool) (*TileSet, error) {
	region, err := RegionOf(geometries...)
	if err != nil {
		return nil, err
	}

	tileSet, err := FromRegion(region, tileSize, quantize)
	if err != nil {
		return nil, err
	}

	kept := tileSet.anchors[:0]
	for _, anchor := range tileSet.anchors {
		if anchor.Cell(tileSize).IntersectsGeometry(geometries...) {
			kept = append(kept, anchor)
		}
	}
	tileSet.anchors = kept

	return tileSet, nil
}

// TileSize returns the shared edge length of every tile in the set.
func (s *TileSet) TileSize() int { return s.tileSize }

// Len returns the number of anchors.
func (s *TileSet) Len() int { return len(s.anchors) }

// At returns the anchor at position i.
func (s *TileSet) At(i int) Anchor { return s.anchors[i] }

// Anchors returns a copy of the anchor sequence.
func (s *TileSet) Anchors() []Anchor {
	anchors := make([]Anchor, len(s.anchors))
	copy(anchors, s.anchors)
	return anchors
}

// All returns an iterator over the anchors in sequence order.
func (s *TileSet) All() iter.Seq2[int, Anchor] {
	return func(yield func(int, Anchor) bool) {
		for i, anchor := range s.anchors {
			if !yield(i, anchor) {
				return
			}
		}
	}
}

// Area returns the covered area: anchor count times tile size squared.
func (s *TileSet) Area() int {
	return len(s.anchors) * s.tileSize * s.tileSize
}

// Bounds returns the envelope of all tile cells, or the empty sentinel for an
// empty set.
func (s *TileSet) Bounds() Region {
	if len(s.anchors) == 0 {
		return Region{}
	}
	bounds := s.anchors[0].Cell(s.tileSize)
	for _, anchor := range s.anchors[1:] {
		bounds = bounds.Union(anchor.Cell(s.tileSize))
	}
	return bounds
}

// Equal reports whether both sets have the same tile size and the same
// anchors in the same order.
func (s *TileSet) Equal(other *TileSet) bool {
	if s.tileSize != other.tileSize || len(s.anchors) != len(other.anchors) {
		return false
	}
	for i, anchor := range s.anchors {
		if other.anchors[i] != anchor {
			return false
		}
	}
	return true
}

// Combine returns the union of both anchor sequences, duplicates collapsed,
// left-hand anchors first. It returns ErrMismatchedTileSize if the tile sizes
// differ.
func (s *TileSet) Combine(other *TileSet) (*TileSet, error) {
	if err := s.checkTileSize(other); err != nil {
		return nil, err
	}
	anchors := make([]Anchor, 0, len(s.anchors)+len(other.anchors))
	anchors = append(anchors, s.anchors...)
	anchors = append(anchors, other.anchors...)
	return &TileSet{tileSize: s.tileSize, anchors: dedupeAnchors(anchors)}, nil
}

// Subtract returns the left-hand anchors absent from the right-hand set.
func (s *TileSet) Subtract(other *TileSet) (*TileSet, error) {
	if err := s.checkTileSize(other); err != nil {
		return nil, err
	}
	drop := NewAnchorSet(other.anchors...)
	anchors := make([]Anchor, 0, len(s.anchors))
	for _, anchor := range s.anchors {
		if !drop.Has(anchor) {
			anchors = append(anchors, anchor)
		}
	}
	return &TileSet{tileSize: s.tileSize, anchors: anchors}, nil
}

// Intersect returns the anchors present in both sets, in left-hand order.
func (s *TileSet) Intersect(other *TileSet) (*TileSet, error) {
	if err := s.checkTileSize(other); err != nil {
		return nil, err
	}
	keep := NewAnchorSet(other.anchors...)
	anchors := make([]Anchor, 0, min(len(s.anchors), len(other.anchors)))
	for _, anchor := range s.anchors {
		if keep.Has(anchor) {
			anchors = append(anchors, anchor)
		}
	}
	return &TileSet{tileSize: s.tileSize, anchors: anchors}, nil
}

func (s *TileSet) checkTileSize(other *TileSet) error {
	if s.tileSize != other.tileSize {
		return fmt.Errorf("%w: %d != %d", ErrMismatchedTileSize, s.tileSize, other.tileSize)
	}
	return nil
}

// Append adds the anchor to the end of the sequence if absent, otherwise it
// is a no-op. Existing anchors are never reordered.
func (s *TileSet) Append(anchor Anchor) {
	for _, existing := range s.anchors {
		if existing == anchor {
			return
		}
	}
	s.anchors = append(s.anchors, anchor)
}

// Filter replaces the anchor sequence with the filter's output. Duplicates in
// the output are collapsed to keep the set invariant.
func (s *TileSet) Filter(filter Filter) {
	s.anchors = dedupeAnchors(filter.Apply(s.Anchors()))
}

// Partition splits the sequence into n contiguous, order-preserving
// sub-sequences of near-equal length. The sub-sets are pairwise disjoint and
// together contain every anchor; when n exceeds the anchor count the trailing
// sets are empty.
func (s *TileSet) Partition(n int) ([]*TileSet, error) {
	if n <= 0 {
		return nil, fmt.Errorf("tileproc: partition count must be positive, got %d", n)
	}

	parts := make([]*TileSet, 0, n)
	quotient, remainder := len(s.anchors)/n, len(s.anchors)%n
	start := 0
	for i := range n {
		length := quotient
		if i < remainder {
			length++
		}
		anchors := make([]Anchor, length)
		copy(anchors, s.anchors[start:start+length])
		parts = append(parts, &TileSet{tileSize: s.tileSize, anchors: anchors})
		start += length
	}

	return parts, nil
}

// ToGeometry returns one axis-aligned square feature per anchor in the
// caller-specified coordinate reference, recorded as a "crs" property.
func (s *TileSet) ToGeometry(crs string) *geojson.FeatureCollection {
	collection := geojson.NewFeatureCollection()
	for _, anchor := range s.anchors {
		feature := anchor.Cell(s.tileSize).Feature(crs)
		feature.Properties["x"] = anchor.X
		feature.Properties["y"] = anchor.Y
		collection.Append(feature)
	}
	return collection
}

func dedupeAnchors(anchors []Anchor) []Anchor {
	seen := make(AnchorSet, len(anchors))
	result := make([]Anchor, 0, len(anchors))
	for _, anchor := range anchors {
		if seen.Has(anchor) {
			continue
		}
		seen.Add(anchor)
		result = append(result, anchor)
	}
	return result
}
