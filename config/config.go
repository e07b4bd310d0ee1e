// Package config assembles a pipeline from a YAML document: grid, source,
// transform, sink, and run parameters.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/osmundr/go-tileproc/fetch"
	"github.com/osmundr/go-tileproc/fetch/filesrc"
	"github.com/osmundr/go-tileproc/fetch/wms"
	"github.com/osmundr/go-tileproc/grid"
	"github.com/osmundr/go-tileproc/pipeline"
	"github.com/osmundr/go-tileproc/raster"
	"github.com/osmundr/go-tileproc/sink"
)

// Config is the YAML document driving a run.
//
//	tile_size: 128
//	quantize: true
//	bounding_box: [363084, 5715326, 363340, 5715582]
//	batch_size: 4
//	workers: 8
//	margin: 32
//	on_fetch_error: skip
//	progress: out/progress.ndjson
//	source:
//	  kind: wms
//	  endpoint: https://example.com/wms
//	  layer: dop
//	  crs: EPSG:25832
//	  gsd: 0.2
//	transform:
//	  kind: footprint
//	sink:
//	  kind: sqlite
//	  path: out/results.db
type Config struct {
	TileSize     int             `yaml:"tile_size"`
	Quantize     bool            `yaml:"quantize"`
	BoundingBox  []int           `yaml:"bounding_box,omitempty"`
	TileSetPath  string          `yaml:"tile_set,omitempty"`
	HilbertOrder bool            `yaml:"hilbert_order,omitempty"`
	BatchSize    int             `yaml:"batch_size"`
	Workers      int             `yaml:"workers"`
	Margin       int             `yaml:"margin"`
	DoubleBuffer bool            `yaml:"double_buffer"`
	OnFetchError string          `yaml:"on_fetch_error,omitempty"`
	Progress     string          `yaml:"progress"`
	Source       SourceConfig    `yaml:"source"`
	Transform    TransformConfig `yaml:"transform"`
	Sink         SinkConfig      `yaml:"sink"`
}

type SourceConfig struct {
	Kind     string  `yaml:"kind"` // file | wms
	Pattern  string  `yaml:"pattern,omitempty"`
	Endpoint string  `yaml:"endpoint,omitempty"`
	Layer    string  `yaml:"layer,omitempty"`
	Style    string  `yaml:"style,omitempty"`
	CRS      string  `yaml:"crs,omitempty"`
	Format   string  `yaml:"format,omitempty"`
	GSD      float64 `yaml:"gsd,omitempty"`
}

type TransformConfig struct {
	Kind    string            `yaml:"kind"`
	Options map[string]string `yaml:"options,omitempty"`
}

type SinkConfig struct {
	Kind string `yaml:"kind"` // sqlite | features
	Path string `yaml:"path"`
}

// Load reads and parses the YAML document at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse parses a YAML document and applies defaults.
func Parse(data []byte) (*Config, error) {
	config := Config{
		BatchSize: 1,
		Workers:   4,
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("tileproc: invalid config: %w", err)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	if c.TileSetPath == "" && len(c.BoundingBox) != 4 {
		return fmt.Errorf("tileproc: config needs tile_set or a 4-element bounding_box")
	}
	if c.TileSetPath == "" && c.TileSize <= 0 {
		return fmt.Errorf("tileproc: config needs a positive tile_size, got %d", c.TileSize)
	}
	if c.Progress == "" {
		return fmt.Errorf("tileproc: config needs a progress path")
	}
	switch c.OnFetchError {
	case "", "fail", "skip":
	default:
		return fmt.Errorf("tileproc: on_fetch_error must be \"fail\" or \"skip\", got %q", c.OnFetchError)
	}
	return nil
}

// Runtime is an assembled pipeline and the sink it writes to. Close the
// runtime after the run to release the sink.
type Runtime struct {
	Pipeline *pipeline.Pipeline
	Sink     sink.Sink
}

func (r *Runtime) Close() error {
	return r.Sink.Close()
}

// Build assembles a runnable pipeline from the configuration. The sqlite sink
// requires a registered "sqlite3" database/sql driver.
func (c *Config) Build(logger *slog.Logger, opts ...pipeline.Option) (*Runtime, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	tileSet, err := c.buildTileSet()
	if err != nil {
		return nil, err
	}

	source, err := c.buildSource(tileSet.TileSize())
	if err != nil {
		return nil, err
	}

	transform, err := NewTransform(c.Transform.Kind, c.Transform.Options)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()

	progress, err := sink.OpenProgress(c.Progress, sink.WithRun(runID))
	if err != nil {
		return nil, err
	}

	output, err := c.buildSink(progress, logger)
	if err != nil {
		progress.Close()
		return nil, err
	}

	policy := fetch.FailBatch
	if c.OnFetchError == "skip" {
		policy = fetch.SkipFailed
	}

	options := []pipeline.Option{
		pipeline.WithBatchSize(c.BatchSize),
		pipeline.WithWorkers(c.Workers),
		pipeline.WithMargin(c.Margin),
		pipeline.WithFetchPolicy(policy),
		pipeline.WithDoubleBuffer(c.DoubleBuffer),
		pipeline.WithLogger(logger),
		pipeline.WithRunID(runID),
	}
	options = append(options, opts...)

	return &Runtime{
		Pipeline: pipeline.New(tileSet, source, transform, output, options...),
		Sink:     output,
	}, nil
}

func (c *Config) buildTileSet() (*grid.TileSet, error) {
	if c.TileSetPath != "" {
		data, err := os.ReadFile(c.TileSetPath)
		if err != nil {
			return nil, err
		}
		tileSet, err := grid.FromJSON(data)
		if err != nil {
			return nil, err
		}
		if c.HilbertOrder {
			if err := tileSet.SortHilbert(); err != nil {
				return nil, err
			}
		}
		return tileSet, nil
	}

	region, err := grid.NewRegion(c.BoundingBox[0], c.BoundingBox[1], c.BoundingBox[2], c.BoundingBox[3])
	if err != nil {
		return nil, err
	}
	tileSet, err := grid.FromRegion(region, c.TileSize, c.Quantize)
	if err != nil {
		return nil, err
	}
	if c.HilbertOrder {
		if err := tileSet.SortHilbert(); err != nil {
			return nil, err
		}
	}
	return tileSet, nil
}

func (c *Config) buildSource(tileSize int) (raster.Source, error) {
	switch c.Source.Kind {
	case "file":
		return filesrc.New(c.Source.Pattern, tileSize)
	case "wms":
		var opts []wms.Option
		if c.Source.Format != "" {
			opts = append(opts, wms.WithFormat(c.Source.Format))
		}
		if c.Source.Style != "" {
			opts = append(opts, wms.WithStyle(c.Source.Style))
		}
		return wms.New(c.Source.Endpoint, c.Source.Layer, c.Source.CRS, tileSize, c.Source.GSD, opts...)
	default:
		return nil, fmt.Errorf("tileproc: unknown source kind %q", c.Source.Kind)
	}
}

func (c *Config) buildSink(progress *sink.Progress, logger *slog.Logger) (sink.Sink, error) {
	switch c.Sink.Kind {
	case "sqlite":
		return sink.NewSQLite(c.Sink.Path, progress, sink.WithSQLiteLogger(logger))
	case "features":
		return sink.NewFeatures(c.Sink.Path, progress, sink.WithFeaturesLogger(logger))
	default:
		return nil, fmt.Errorf("tileproc: unknown sink kind %q", c.Sink.Kind)
	}
}
