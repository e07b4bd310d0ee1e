// Package fetch provides a bounded-concurrency prefetcher that resolves
// raster patches for a batch of anchors while preserving the anchor order.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/osmundr/go-tileproc/grid"
	"github.com/osmundr/go-tileproc/raster"
)

// Policy decides how a per-anchor fetch failure affects the batch.
type Policy int

const (
	// FailBatch fails the whole batch on the first fetch error.
	FailBatch Policy = iota
	// SkipFailed keeps going; failed anchors carry their error in the
	// returned outcomes and are retried on the next run.
	SkipFailed
)

// Error is a per-anchor fetch failure, paired with the anchor's position in
// the batch.
type Error struct {
	Anchor grid.Anchor
	Pos    int
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("tileproc: fetch (%d, %d) at batch position %d: %v", e.Anchor.X, e.Anchor.Y, e.Pos, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Outcome is the result of fetching one anchor. Exactly one of Patch and Err
// is meaningful.
type Outcome struct {
	Pos   int
	Patch raster.Patch
	Err   error
}

// Prefetcher issues bounded-concurrency fetches against a source and returns
// results in the original anchor order, not completion order.
type Prefetcher struct {
	source  raster.Source
	workers int
	policy  Policy
	logger  *slog.Logger
}

type config struct {
	Workers int
	Policy  Policy
	Logger  *slog.Logger
}

type Option func(*config)

// WithWorkers bounds the number of concurrent in-flight fetches.
func WithWorkers(n int) Option {
	return func(c *config) { c.Workers = n }
}

// WithPolicy sets the failure policy. The default is FailBatch.
func WithPolicy(p Policy) Option {
	return func(c *config) { c.Policy = p }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.Logger = logger }
}

// New creates a prefetcher over the given source.
func New(source raster.Source, opts ...Option) *Prefetcher {
	cfg := config{
		Workers: 4,
		Policy:  FailBatch,
		Logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Prefetcher{
		source:  source,
		workers: cfg.Workers,
		policy:  cfg.Policy,
		logger:  cfg.Logger,
	}
}

// Batch fetches the patches for the given anchors and returns one outcome per
// anchor, in anchor order. Under FailBatch the first fetch error cancels the
// remaining fetches and is returned as the batch error; under SkipFailed the
// error is recorded in the anchor's outcome instead.
func (p *Prefetcher) Batch(ctx context.Context, anchors []grid.Anchor, margin int) ([]Outcome, error) {
	if margin < 0 {
		return nil, fmt.Errorf("%w: margin must be non-negative, got %d", grid.ErrInvalidGeometry, margin)
	}

	outcomes := make([]Outcome, len(anchors))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.workers)

	for i, anchor := range anchors {
		group.Go(func() error {
			patch, err := p.source.Fetch(groupCtx, anchor, margin)
			if err != nil {
				fetchErr := &Error{Anchor: anchor, Pos: i, Err: err}
				outcomes[i] = Outcome{Pos: i, Err: fetchErr}
				if p.policy == FailBatch {
					return fetchErr
				}
				p.logger.Warn("tileproc: skipping failed fetch",
					"x", anchor.X, "y", anchor.Y, "pos", i, "error", err)
				return nil
			}
			outcomes[i] = Outcome{Pos: i, Patch: patch}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return outcomes, nil
}

// Split separates successful patches from skipped outcomes, preserving order.
func Split(outcomes []Outcome) (patches []raster.Patch, skipped []Outcome) {
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			skipped = append(skipped, outcome)
			continue
		}
		patches = append(patches, outcome.Patch)
	}
	return patches, skipped
}

// AsError returns the per-anchor fetch error wrapped in err, if any.
func AsError(err error) (*Error, bool) {
	var fetchErr *Error
	if errors.As(err, &fetchErr) {
		return fetchErr, true
	}
	return nil, false
}
