// Package wms provides a raster source backed by a web map service, fetching
// one GetMap image per tile.
package wms

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/osmundr/go-tileproc/grid"
	"github.com/osmundr/go-tileproc/raster"
)

// Source implements raster.Source over a WMS endpoint.
type Source struct {
	client   *http.Client
	endpoint string
	layer    string
	style    string
	crs      string
	format   string
	tileSize int
	// groundSamplingDistance converts map units to pixels: a patch covering
	// tileSize units is requested at tileSize/gsd pixels.
	groundSamplingDistance float64
}

type config struct {
	Client *http.Client
	Style  string
	Format string
}

type Option func(*config)

func WithClient(client *http.Client) Option {
	return func(c *config) { c.Client = client }
}

func WithStyle(style string) Option {
	return func(c *config) { c.Style = style }
}

// WithFormat sets the response format. The default is "image/png".
func WithFormat(format string) Option {
	return func(c *config) { c.Format = format }
}

// New creates a WMS source. crs is the coordinate reference of the tile grid
// (e.g. "EPSG:25832"); gsd is the ground sampling distance in map units per
// pixel.
func New(endpoint, layer, crs string, tileSize int, gsd float64, opts ...Option) (*Source, error) {
	if tileSize <= 0 {
		return nil, fmt.Errorf("%w: tile size must be positive, got %d", grid.ErrInvalidGeometry, tileSize)
	}
	if gsd <= 0 {
		return nil, fmt.Errorf("%w: ground sampling distance must be positive, got %v", grid.ErrInvalidGeometry, gsd)
	}

	cfg := config{
		Client: http.DefaultClient,
		Format: "image/png",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Source{
		client:                 cfg.Client,
		endpoint:               endpoint,
		layer:                  layer,
		style:                  cfg.Style,
		crs:                    crs,
		format:                 cfg.Format,
		tileSize:               tileSize,
		groundSamplingDistance: gsd,
	}, nil
}

func (s *Source) Fetch(ctx context.Context, anchor grid.Anchor, margin int) (raster.Patch, error) {
	region, err := anchor.Cell(s.tileSize).Buffer(margin)
	if err != nil {
		return raster.Patch{}, err
	}

	requestURL, err := s.getMapURL(region)
	if err != nil {
		return raster.Patch{}, err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return raster.Patch{}, err
	}

	response, err := s.client.Do(request)
	if err != nil {
		return raster.Patch{}, err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return raster.Patch{}, fmt.Errorf("tileproc: wms GetMap returned %v", response.Status)
	}

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return raster.Patch{}, err
	}

	return raster.Patch{Anchor: anchor, Region: region, Data: data}, nil
}

func (s *Source) getMapURL(region grid.Region) (string, error) {
	base, err := url.Parse(s.endpoint)
	if err != nil {
		return "", fmt.Errorf("tileproc: invalid wms endpoint: %w", err)
	}

	widthPixels := int(float64(region.Width()) / s.groundSamplingDistance)
	heightPixels := int(float64(region.Height()) / s.groundSamplingDistance)

	query := base.Query()
	query.Set("SERVICE", "WMS")
	query.Set("VERSION", "1.3.0")
	query.Set("REQUEST", "GetMap")
	query.Set("LAYERS", s.layer)
	query.Set("STYLES", s.style)
	query.Set("CRS", s.crs)
	query.Set("BBOX", fmt.Sprintf("%d,%d,%d,%d", region.MinX, region.MinY, region.MaxX, region.MaxY))
	query.Set("WIDTH", strconv.Itoa(widthPixels))
	query.Set("HEIGHT", strconv.Itoa(heightPixels))
	query.Set("FORMAT", s.format)
	base.RawQuery = query.Encode()

	return base.String(), nil
}
