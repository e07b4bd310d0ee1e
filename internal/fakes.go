// Package internal provides shared fakes for tests: a latency-randomized
// raster source, a footprint transform, and an in-memory sink.
package internal

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/osmundr/go-tileproc/grid"
	"github.com/osmundr/go-tileproc/raster"
)

// FakeSource produces synthetic patches, optionally with randomized latency
// and injected per-anchor failures.
type FakeSource struct {
	TileSize int
	MaxDelay time.Duration
	Fail     grid.AnchorSet

	fetches atomic.Int64
}

func (s *FakeSource) Fetch(ctx context.Context, anchor grid.Anchor, margin int) (raster.Patch, error) {
	s.fetches.Add(1)

	if s.MaxDelay > 0 {
		select {
		case <-time.After(rand.N(s.MaxDelay)):
		case <-ctx.Done():
			return raster.Patch{}, ctx.Err()
		}
	}

	if s.Fail.Has(anchor) {
		return raster.Patch{}, fmt.Errorf("synthetic fetch failure (%d, %d)", anchor.X, anchor.Y)
	}

	region, err := anchor.Cell(s.TileSize).Buffer(margin)
	if err != nil {
		return raster.Patch{}, err
	}

	return raster.Patch{
		Anchor: anchor,
		Region: region,
		Data:   fmt.Appendf(nil, "patch %d %d", anchor.X, anchor.Y),
	}, nil
}

// Fetches returns how many fetches were issued, failures included.
func (s *FakeSource) Fetches() int {
	return int(s.fetches.Load())
}

// Footprint returns a transform that emits each patch's extent as its result
// geometry.
func Footprint() raster.Transform {
	return raster.TransformFunc(func(_ context.Context, batch []raster.Patch) ([]raster.Result, error) {
		results := make([]raster.Result, len(batch))
		for i, patch := range batch {
			results[i] = raster.Result{
				Anchor:   patch.Anchor,
				Geometry: patch.Region.ToGeometry(),
			}
		}
		return results, nil
	})
}

// MemorySink is an in-memory sink.Sink. The Completed set persists across
// instances when shared, which makes resume tests cheap.
type MemorySink struct {
	Completed grid.AnchorSet // progress record; lazily initialized
	WriteErr  error          // injected failure for every Write

	mu      sync.Mutex
	written []raster.Result
	writes  int
}

func (s *MemorySink) Write(_ context.Context, batch []raster.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.WriteErr != nil {
		return s.WriteErr
	}

	s.writes++
	s.written = append(s.written, batch...)
	if s.Completed == nil {
		s.Completed = grid.AnchorSet{}
	}
	for _, result := range batch {
		s.Completed.Add(result.Anchor)
	}
	return nil
}

func (s *MemorySink) LoadProgress() (grid.AnchorSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	completed := grid.AnchorSet{}
	for anchor := range s.Completed {
		completed.Add(anchor)
	}
	return completed, nil
}

func (s *MemorySink) Close() error { return nil }

// Written returns every result handed to the sink, in write order.
func (s *MemorySink) Written() []raster.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	written := make([]raster.Result, len(s.written))
	copy(written, s.written)
	return written
}

// Writes returns the number of successful Write calls.
func (s *MemorySink) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
