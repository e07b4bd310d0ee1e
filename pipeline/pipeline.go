// Package pipeline drives the batch loop over a tile set: prefetch raster
// patches, invoke the transform, hand results to the sink, advance the
// durable progress record.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/osmundr/go-tileproc/fetch"
	"github.com/osmundr/go-tileproc/filter"
	"github.com/osmundr/go-tileproc/grid"
	"github.com/osmundr/go-tileproc/raster"
	"github.com/osmundr/go-tileproc/sink"
)

// ErrTransform marks a failure propagated from the external computation.
var ErrTransform = errors.New("tileproc: transform failed")

// State is the lifecycle of a pipeline run.
type State int32

const (
	Ready State = iota
	Running
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// RunError is the terminal error of a failed run. LastRecorded is the last
// anchor durably recorded as completed, so the caller knows exactly how much
// output is trustworthy; nil means no anchor was recorded by this run.
type RunError struct {
	Err          error
	LastRecorded *grid.Anchor
}

func (e *RunError) Error() string {
	if e.LastRecorded == nil {
		return fmt.Sprintf("tileproc: run failed before recording any anchor: %v", e.Err)
	}
	return fmt.Sprintf("tileproc: run failed, last recorded anchor (%d, %d): %v",
		e.LastRecorded.X, e.LastRecorded.Y, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Pipeline processes a tile set once: Ready -> Running -> Completed | Failed.
type Pipeline struct {
	tiles        *grid.TileSet
	prefetcher   *fetch.Prefetcher
	transform    raster.Transform
	sink         sink.Sink
	batchSize    int
	margin       int
	doubleBuffer bool
	progressFunc func(completed, total int)
	logger       *slog.Logger
	run          string

	state        atomic.Int32
	lastRecorded atomic.Pointer[grid.Anchor]
}

type config struct {
	BatchSize    int
	Workers      int
	Margin       int
	Policy       fetch.Policy
	DoubleBuffer bool
	ProgressFunc func(completed, total int)
	Logger       *slog.Logger
	RunID        string
}

type Option func(*config)

// WithBatchSize sets how many anchors are processed per transform call.
func WithBatchSize(n int) Option {
	return func(c *config) { c.BatchSize = n }
}

// WithWorkers bounds the number of concurrent in-flight fetches.
func WithWorkers(n int) Option {
	return func(c *config) { c.Workers = n }
}

// WithMargin sets the context expansion fetched around each tile.
func WithMargin(margin int) Option {
	return func(c *config) { c.Margin = margin }
}

// WithFetchPolicy sets how per-anchor fetch failures are handled.
func WithFetchPolicy(policy fetch.Policy) Option {
	return func(c *config) { c.Policy = policy }
}

// WithDoubleBuffer overlaps the next batch's prefetch with the current
// batch's transform.
func WithDoubleBuffer(enabled bool) Option {
	return func(c *config) { c.DoubleBuffer = enabled }
}

// WithProgressFunc reports (completed, total) anchor counts after each batch.
func WithProgressFunc(fn func(completed, total int)) Option {
	return func(c *config) { c.ProgressFunc = fn }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.Logger = logger }
}

// WithRunID overrides the generated run identifier.
func WithRunID(run string) Option {
	return func(c *config) { c.RunID = run }
}

// New creates a pipeline over the given tile set and collaborators.
func New(tiles *grid.TileSet, source raster.Source, transform raster.Transform, s sink.Sink, opts ...Option) *Pipeline {
	cfg := config{
		BatchSize: 1,
		Workers:   4,
		Logger:    slog.New(slog.DiscardHandler),
		RunID:     uuid.NewString(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}

	prefetcher := fetch.New(source,
		fetch.WithWorkers(cfg.Workers),
		fetch.WithPolicy(cfg.Policy),
		fetch.WithLogger(cfg.Logger),
	)

	return &Pipeline{
		tiles:        tiles,
		prefetcher:   prefetcher,
		transform:    transform,
		sink:         s,
		batchSize:    cfg.BatchSize,
		margin:       cfg.Margin,
		doubleBuffer: cfg.DoubleBuffer,
		progressFunc: cfg.ProgressFunc,
		logger:       cfg.Logger,
		run:          cfg.RunID,
	}
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// RunID returns the identifier stamped on this run's log lines.
func (p *Pipeline) RunID() string { return p.run }

// LastRecorded returns the last anchor this run durably recorded.
func (p *Pipeline) LastRecorded() (grid.Anchor, bool) {
	anchor := p.lastRecorded.Load()
	if anchor == nil {
		return grid.Anchor{}, false
	}
	return *anchor, true
}

type prefetched struct {
	outcomes []fetch.Outcome
	err      error
}

// Run processes the tile set to completion. Anchors already present in the
// progress record are skipped up front, so re-running a completed pipeline
// performs no fetches and no writes. Run can be called once per Pipeline.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.state.CompareAndSwap(int32(Ready), int32(Running)) {
		return fmt.Errorf("tileproc: pipeline already started (state %v)", p.State())
	}

	completed, err := p.sink.LoadProgress()
	if err != nil {
		return p.fail(err)
	}

	anchors := p.tiles.Anchors()
	pending := filter.Set(filter.SetDifference, anchorSlice(completed)).Apply(anchors)

	batches := chunkAnchors(pending, p.batchSize)
	p.logger.Info("tileproc: starting run",
		"run", p.run,
		"tiles", len(pending),
		"skipped", len(anchors)-len(pending),
		"batches", len(batches),
		"batch_size", p.batchSize)

	start := time.Now()
	processed := 0

	var next chan prefetched
	if p.doubleBuffer && len(batches) > 0 {
		next = p.prefetchAsync(ctx, batches[0])
	}

	for i, batch := range batches {
		// A run may be stopped between batches; the progress record already
		// covers everything written so far.
		if err := ctx.Err(); err != nil {
			return p.fail(err)
		}

		var current prefetched
		if next != nil {
			current = <-next
			next = nil
		} else {
			current.outcomes, current.err = p.prefetcher.Batch(ctx, batch, p.margin)
		}
		if current.err != nil {
			return p.fail(current.err)
		}

		if p.doubleBuffer && i+1 < len(batches) {
			next = p.prefetchAsync(ctx, batches[i+1])
		}

		if err := p.processBatch(ctx, current.outcomes); err != nil {
			return p.fail(err)
		}

		processed += len(batch)
		if p.progressFunc != nil {
			p.progressFunc(processed, len(pending))
		}
		p.logger.Info("tileproc: batch done", "run", p.run, "batch", i+1, "batches", len(batches))
	}

	p.state.Store(int32(Completed))
	p.logger.Info("tileproc: run completed",
		"run", p.run,
		"tiles", len(pending),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

func (p *Pipeline) processBatch(ctx context.Context, outcomes []fetch.Outcome) error {
	patches, skipped := fetch.Split(outcomes)
	for _, outcome := range skipped {
		// Not recorded as completed, so the next run retries it.
		p.logger.Warn("tileproc: anchor skipped, will retry on next run",
			"run", p.run, "pos", outcome.Pos, "error", outcome.Err)
	}
	if len(patches) == 0 {
		return nil
	}

	results, err := p.transform.Apply(ctx, patches)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransform, err)
	}
	if len(results) != len(patches) {
		return fmt.Errorf("%w: got %d results for %d patches", ErrTransform, len(results), len(patches))
	}

	// Downstream spatial alignment depends on batch-to-anchor correspondence.
	for i := range results {
		results[i].Anchor = patches[i].Anchor
	}

	if err := p.sink.Write(ctx, results); err != nil {
		return err
	}

	last := results[len(results)-1].Anchor
	p.lastRecorded.Store(&last)
	return nil
}

func (p *Pipeline) prefetchAsync(ctx context.Context, batch []grid.Anchor) chan prefetched {
	result := make(chan prefetched, 1)
	go func() {
		outcomes, err := p.prefetcher.Batch(ctx, batch, p.margin)
		result <- prefetched{outcomes: outcomes, err: err}
	}()
	return result
}

func (p *Pipeline) fail(err error) error {
	p.state.Store(int32(Failed))
	runErr := &RunError{Err: err, LastRecorded: p.lastRecorded.Load()}
	p.logger.Error("tileproc: run failed", "run", p.run, "error", err)
	return runErr
}

func anchorSlice(set grid.AnchorSet) []grid.Anchor {
	anchors := make([]grid.Anchor, 0, len(set))
	for anchor := range set {
		anchors = append(anchors, anchor)
	}
	return anchors
}

func chunkAnchors(anchors []grid.Anchor, size int) [][]grid.Anchor {
	var batches [][]grid.Anchor
	for start := 0; start < len(anchors); start += size {
		batches = append(batches, anchors[start:min(start+size, len(anchors))])
	}
	return batches
}
