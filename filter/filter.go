// Package filter provides composable, ordered filters over the anchor
// sequence of a tile set.
package filter

import (
	"github.com/osmundr/go-tileproc/grid"
)

// Filter transforms an anchor sequence. A filter may drop anchors but must
// not invent ones absent from its input; the duplicate-removal filter is
// idempotent. Filters satisfy grid.Filter.
type Filter interface {
	Apply(anchors []grid.Anchor) []grid.Anchor
}

// Func adapts a plain function to the Filter interface.
type Func func(anchors []grid.Anchor) []grid.Anchor

func (f Func) Apply(anchors []grid.Anchor) []grid.Anchor { return f(anchors) }

// Chain runs its members strictly in order, each consuming the previous
// member's full output. A chain is itself a filter.
type Chain []Filter

func (c Chain) Apply(anchors []grid.Anchor) []grid.Anchor {
	for _, filter := range c {
		anchors = filter.Apply(anchors)
	}
	return anchors
}

// Duplicates returns a filter that removes duplicate anchors, keeping the
// first occurrence of each.
func Duplicates() Filter {
	return Func(func(anchors []grid.Anchor) []grid.Anchor {
		seen := make(grid.AnchorSet, len(anchors))
		result := make([]grid.Anchor, 0, len(anchors))
		for _, anchor := range anchors {
			if seen.Has(anchor) {
				continue
			}
			seen.Add(anchor)
			result = append(result, anchor)
		}
		return result
	})
}
