package filter

import (
	"fmt"

	"github.com/osmundr/go-tileproc/grid"
)

// SetMode selects how anchors relate to a fixed reference set.
type SetMode int

const (
	// SetDifference drops anchors present in the reference set.
	SetDifference SetMode = iota
	// SetIntersection keeps only anchors present in the reference set.
	SetIntersection
	// SetUnion appends the reference anchors and removes duplicates.
	SetUnion
)

func (m SetMode) String() string {
	switch m {
	case SetDifference:
		return "difference"
	case SetIntersection:
		return "intersection"
	case SetUnion:
		return "union"
	default:
		return fmt.Sprintf("SetMode(%d)", int(m))
	}
}

type setFilter struct {
	mode  SetMode
	other []grid.Anchor
}

// Set returns a filter that relates anchors to a fixed reference set of
// anchors: keep, drop, or merge depending on mode.
func Set(mode SetMode, other []grid.Anchor) Filter {
	reference := make([]grid.Anchor, len(other))
	copy(reference, other)
	return &setFilter{mode: mode, other: reference}
}

func (f *setFilter) Apply(anchors []grid.Anchor) []grid.Anchor {
	switch f.mode {
	case SetDifference, SetIntersection:
		reference := grid.NewAnchorSet(f.other...)
		keepPresent := f.mode == SetIntersection
		result := make([]grid.Anchor, 0, len(anchors))
		for _, anchor := range anchors {
			if reference.Has(anchor) == keepPresent {
				result = append(result, anchor)
			}
		}
		return result
	case SetUnion:
		merged := make([]grid.Anchor, 0, len(anchors)+len(f.other))
		merged = append(merged, anchors...)
		merged = append(merged, f.other...)
		return Duplicates().Apply(merged)
	default:
		return anchors
	}
}
