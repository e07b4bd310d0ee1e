package sink

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/paulmach/orb/geojson"

	"github.com/osmundr/go-tileproc/grid"
	"github.com/osmundr/go-tileproc/raster"
)

// Features persists results as newline-delimited GeoJSON features, one line
// per anchor. Appends only; the single exception is a one-time repair on open
// that drops features whose anchor never made it into the progress record
// (output flushed, crash before record).
type Features struct {
	path     string
	file     *os.File
	progress *Progress
	logger   *slog.Logger
}

type featuresConfig struct {
	Logger *slog.Logger
}

type FeaturesOption func(*featuresConfig)

func WithFeaturesLogger(logger *slog.Logger) FeaturesOption {
	return func(c *featuresConfig) { c.Logger = logger }
}

// NewFeatures opens (or creates) the feature file at path. The sink takes
// ownership of the progress record and closes it with the file.
func NewFeatures(path string, progress *Progress, opts ...FeaturesOption) (*Features, error) {
	cfg := featuresConfig{
		Logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	completed, err := progress.Load()
	if err != nil {
		return nil, err
	}

	if err := repairLeftovers(path, completed, cfg.Logger); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	return &Features{path: path, file: file, progress: progress, logger: cfg.Logger}, nil
}

// repairLeftovers rewrites the feature file without features whose anchor is
// absent from the progress record.
func repairLeftovers(path string, completed grid.AnchorSet, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var kept bytes.Buffer
	dropped := 0
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		anchor, err := featureAnchor(line)
		if err != nil {
			return fmt.Errorf("tileproc: invalid feature file %q: %w", path, err)
		}
		if !completed.Has(anchor) {
			dropped++
			continue
		}
		kept.Write(line)
		kept.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	if dropped == 0 {
		return nil
	}

	logger.Warn("tileproc: dropping unrecorded features from previous run", "count", dropped)

	tempPath := path + ".repair"
	if err := os.WriteFile(tempPath, kept.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Rename(tempPath, path)
}

func featureAnchor(line []byte) (grid.Anchor, error) {
	var envelope struct {
		Properties struct {
			X int `json:"x"`
			Y int `json:"y"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(line, &envelope); err != nil {
		return grid.Anchor{}, err
	}
	return grid.Anchor{X: envelope.Properties.X, Y: envelope.Properties.Y}, nil
}

func (f *Features) Close() error {
	return errors.Join(f.file.Close(), f.progress.Close())
}

func (f *Features) LoadProgress() (grid.AnchorSet, error) {
	return f.progress.Load()
}

// Write flushes the batch to the feature file, then records its anchors.
func (f *Features) Write(ctx context.Context, batch []raster.Result) error {
	if len(batch) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	var buffer bytes.Buffer
	for _, result := range batch {
		feature := geojson.NewFeature(result.Geometry)
		feature.Properties["x"] = result.Anchor.X
		feature.Properties["y"] = result.Anchor.Y
		for key, value := range result.Attributes {
			feature.Properties[key] = value
		}

		line, err := feature.MarshalJSON()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrWrite, err)
		}
		buffer.Write(line)
		buffer.WriteByte('\n')
	}

	if _, err := f.file.Write(buffer.Bytes()); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := f.file.Sync(); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	anchors := make([]grid.Anchor, len(batch))
	for i, result := range batch {
		anchors[i] = result.Anchor
	}
	if err := f.progress.Append(anchors); err != nil {
		return fmt.Errorf("%w: progress record: %w", ErrWrite, err)
	}

	return nil
}
