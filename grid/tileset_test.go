package grid_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"

	"github.com/osmundr/go-tileproc/grid"
)

func mustTileSet(t *testing.T, tileSize int, anchors ...grid.Anchor) *grid.TileSet {
	t.Helper()
	tileSet, err := grid.New(tileSize, anchors...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return tileSet
}

func TestNewCollapsesDuplicates(t *testing.T) {
	tileSet := mustTileSet(t, 128,
		grid.Anchor{X: 0, Y: 0},
		grid.Anchor{X: 128, Y: 0},
		grid.Anchor{X: 0, Y: 0},
	)

	want := []grid.Anchor{{X: 0, Y: 0}, {X: 128, Y: 0}}
	if diff := cmp.Diff(want, tileSet.Anchors()); diff != "" {
		t.Errorf("Anchors mismatch (-want +got):\n%s", diff)
	}

	if _, err := grid.New(0); !errors.Is(err, grid.ErrInvalidGeometry) {
		t.Errorf("New(0) error = %v, want ErrInvalidGeometry", err)
	}
}

func TestFromRegion(t *testing.T) {
	region := grid.Region{MinX: 0, MinY: 0, MaxX: 256, MaxY: 256}

	tileSet, err := grid.FromRegion(region, 128, false)
	if err != nil {
		t.Fatalf("FromRegion failed: %v", err)
	}

	// x varies fastest, rows bottom to top.
	want := []grid.Anchor{
		{X: 0, Y: 0}, {X: 128, Y: 0},
		{X: 0, Y: 128}, {X: 128, Y: 128},
	}
	if diff := cmp.Diff(want, tileSet.Anchors()); diff != "" {
		t.Errorf("Anchors mismatch (-want +got):\n%s", diff)
	}
	if got, want := tileSet.Area(), 4*128*128; got != want {
		t.Errorf("Area = %d, want %d", got, want)
	}
	if got := tileSet.Bounds(); got != region {
		t.Errorf("Bounds = %v, want %v", got, region)
	}
}

func TestFromRegionOverhang(t *testing.T) {
	// 250 is not a multiple of 128; the last row and column extend past the
	// region instead of being dropped.
	region := grid.Region{MinX: 0, MinY: 0, MaxX: 250, MaxY: 250}

	tileSet, err := grid.FromRegion(region, 128, false)
	if err != nil {
		t.Fatalf("FromRegion failed: %v", err)
	}

	if got, want := tileSet.Len(), 4; got != want {
		t.Fatalf("Len = %d, want %d", got, want)
	}
	wantBounds := grid.Region{MinX: 0, MinY: 0, MaxX: 256, MaxY: 256}
	if got := tileSet.Bounds(); got != wantBounds {
		t.Errorf("Bounds = %v, want %v", got, wantBounds)
	}
}

func TestFromRegionQuantize(t *testing.T) {
	region := grid.Region{MinX: 100, MinY: 100, MaxX: 300, MaxY: 300}

	tileSet, err := grid.FromRegion(region, 128, true)
	if err != nil {
		t.Fatalf("FromRegion failed: %v", err)
	}

	if got, want := tileSet.Len(), 9; got != want {
		t.Fatalf("Len = %d, want %d", got, want)
	}
	for _, anchor := range tileSet.Anchors() {
		if anchor.X%128 != 0 || anchor.Y%128 != 0 {
			t.Errorf("anchor %v is not aligned to the tile grid", anchor)
		}
		if !tileSet.Bounds().Contains(anchor) {
			t.Errorf("anchor %v lies outside the set bounds", anchor)
		}
	}
	if got := tileSet.Bounds().Intersect(region); got != region {
		t.Errorf("quantized set does not cover the region: bounds %v", tileSet.Bounds())
	}
}

func TestFromGeometry(t *testing.T) {
	// An L-shaped polygon inside a 3x3 grid; the top-right cell touches the
	// shape nowhere and must be absent.
	shape := orb.Polygon{{
		{0, 0}, {30, 0}, {30, 10}, {10, 10}, {10, 30}, {0, 30}, {0, 0},
	}}

	tileSet, err := grid.FromGeometry([]orb.Geometry{shape}, 10, true)
	if err != nil {
		t.Fatalf("FromGeometry failed: %v", err)
	}

	want := []grid.Anchor{
		{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 20, Y: 0},
		{X: 0, Y: 10},
		{X: 0, Y: 20},
	}
	if diff := cmp.Diff(want, tileSet.Anchors()); diff != "" {
		t.Errorf("Anchors mismatch (-want +got):\n%s", diff)
	}
}

func TestCombineSubtract(t *testing.T) {
	s := mustTileSet(t, 128, grid.Anchor{X: 0, Y: 0}, grid.Anchor{X: 128, Y: 0})
	other := mustTileSet(t, 128, grid.Anchor{X: 128, Y: 0}, grid.Anchor{X: 256, Y: 0})

	combined, err := s.Combine(other)
	if err != nil {
		t.Fatalf("Combine failed: %v", err)
	}
	wantCombined := []grid.Anchor{{X: 0, Y: 0}, {X: 128, Y: 0}, {X: 256, Y: 0}}
	if diff := cmp.Diff(wantCombined, combined.Anchors()); diff != "" {
		t.Errorf("Combine mismatch (-want +got):\n%s", diff)
	}

	// Combining then subtracting the same set leaves exactly the anchors
	// unique to the left-hand side.
	left, err := combined.Subtract(other)
	if err != nil {
		t.Fatalf("Subtract failed: %v", err)
	}
	direct, err := s.Subtract(other)
	if err != nil {
		t.Fatalf("Subtract failed: %v", err)
	}
	if !left.Equal(direct) {
		t.Errorf("Combine(T).Subtract(T) = %v, want %v", left.Anchors(), direct.Anchors())
	}

	intersected, err := s.Intersect(other)
	if err != nil {
		t.Fatalf("Intersect failed: %v", err)
	}
	if diff := cmp.Diff([]grid.Anchor{{X: 128, Y: 0}}, intersected.Anchors()); diff != "" {
		t.Errorf("Intersect mismatch (-want +got):\n%s", diff)
	}

	// Inputs are untouched.
	if got, want := s.Len(), 2; got != want {
		t.Errorf("source set modified: Len = %d, want %d", got, want)
	}
}

func TestMismatchedTileSize(t *testing.T) {
	s := mustTileSet(t, 128, grid.Anchor{X: 0, Y: 0})
	other := mustTileSet(t, 256, grid.Anchor{X: 0, Y: 0})

	if _, err := s.Combine(other); !errors.Is(err, grid.ErrMismatchedTileSize) {
		t.Errorf("Combine error = %v, want ErrMismatchedTileSize", err)
	}
	if _, err := s.Subtract(other); !errors.Is(err, grid.ErrMismatchedTileSize) {
		t.Errorf("Subtract error = %v, want ErrMismatchedTileSize", err)
	}
	if _, err := s.Intersect(other); !errors.Is(err, grid.ErrMismatchedTileSize) {
		t.Errorf("Intersect error = %v, want ErrMismatchedTileSize", err)
	}
}

func TestAppend(t *testing.T) {
	tileSet := mustTileSet(t, 128, grid.Anchor{X: 0, Y: 0}, grid.Anchor{X: 128, Y: 0})

	tileSet.Append(grid.Anchor{X: 0, Y: 0}) // already present, no-op
	tileSet.Append(grid.Anchor{X: 256, Y: 0})

	want := []grid.Anchor{{X: 0, Y: 0}, {X: 128, Y: 0}, {X: 256, Y: 0}}
	if diff := cmp.Diff(want, tileSet.Anchors()); diff != "" {
		t.Errorf("Anchors mismatch (-want +got):\n%s", diff)
	}
}

func TestPartition(t *testing.T) {
	anchors := make([]grid.Anchor, 7)
	for i := range anchors {
		anchors[i] = grid.Anchor{X: i * 128}
	}
	tileSet := mustTileSet(t, 128, anchors...)

	parts, err := tileSet.Partition(3)
	if err != nil {
		t.Fatalf("Partition failed: %v", err)
	}

	wantLens := []int{3, 2, 2}
	var reassembled []grid.Anchor
	for i, part := range parts {
		if got := part.Len(); got != wantLens[i] {
			t.Errorf("part %d Len = %d, want %d", i, got, wantLens[i])
		}
		reassembled = append(reassembled, part.Anchors()...)
	}
	if diff := cmp.Diff(anchors, reassembled); diff != "" {
		t.Errorf("parts do not reassemble the input (-want +got):\n%s", diff)
	}

	// More parts than anchors yields empty trailing sets.
	parts, err = tileSet.Partition(10)
	if err != nil {
		t.Fatalf("Partition failed: %v", err)
	}
	if got, want := len(parts), 10; got != want {
		t.Fatalf("Partition count = %d, want %d", got, want)
	}
	if got := parts[9].Len(); got != 0 {
		t.Errorf("trailing part Len = %d, want 0", got)
	}

	if _, err := tileSet.Partition(0); err == nil {
		t.Error("Partition(0) succeeded, want error")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	tileSet := mustTileSet(t, 128,
		grid.Anchor{X: 363084, Y: 5715326},
		grid.Anchor{X: 363212, Y: 5715326},
		grid.Anchor{X: -128, Y: 0},
	)

	data, err := tileSet.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}

	restored, err := grid.FromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON failed: %v", err)
	}
	if !restored.Equal(tileSet) {
		t.Errorf("round trip changed the set: got %v, want %v", restored.Anchors(), tileSet.Anchors())
	}

	if _, err := grid.FromJSON([]byte("{")); err == nil {
		t.Error("FromJSON(invalid) succeeded, want error")
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	anchors := []grid.Anchor{{X: 0, Y: 0}, {X: -128, Y: 5715326}, {X: 363084, Y: -256}}

	var buffer bytes.Buffer
	if err := grid.WriteAnchors(&buffer, anchors); err != nil {
		t.Fatalf("WriteAnchors failed: %v", err)
	}

	restored, err := grid.ReadAnchors(buffer.Bytes())
	if err != nil {
		t.Fatalf("ReadAnchors failed: %v", err)
	}
	if diff := cmp.Diff(anchors, restored); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSortHilbert(t *testing.T) {
	region := grid.Region{MinX: 0, MinY: 0, MaxX: 512, MaxY: 512}
	tileSet, err := grid.FromRegion(region, 128, false)
	if err != nil {
		t.Fatalf("FromRegion failed: %v", err)
	}
	before := tileSet.Anchors()

	if err := tileSet.SortHilbert(); err != nil {
		t.Fatalf("SortHilbert failed: %v", err)
	}
	after := tileSet.Anchors()

	// Same anchors, reordered.
	if got, want := len(after), len(before); got != want {
		t.Fatalf("Len changed: %d, want %d", got, want)
	}
	beforeSet := grid.NewAnchorSet(before...)
	for _, anchor := range after {
		if !beforeSet.Has(anchor) {
			t.Errorf("SortHilbert invented anchor %v", anchor)
		}
	}

	// Consecutive anchors are grid neighbors on a full square grid.
	for i := 1; i < len(after); i++ {
		dx := after[i].X - after[i-1].X
		dy := after[i].Y - after[i-1].Y
		if dx < 0 {
			dx = -dx
		}
		if dy < 0 {
			dy = -dy
		}
		if dx+dy != 128 {
			t.Errorf("anchors %d and %d are not adjacent: %v -> %v", i-1, i, after[i-1], after[i])
		}
	}

	// Deterministic.
	repeat, err := grid.FromRegion(region, 128, false)
	if err != nil {
		t.Fatalf("FromRegion failed: %v", err)
	}
	if err := repeat.SortHilbert(); err != nil {
		t.Fatalf("SortHilbert failed: %v", err)
	}
	if !repeat.Equal(tileSet) {
		t.Error("SortHilbert is not deterministic")
	}
}
