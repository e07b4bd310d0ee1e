// Package filesrc provides a raster source backed by per-tile files, where
// patches are stored as individual files with paths like "/dir/{x}_{y}.tif".
package filesrc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/osmundr/go-tileproc/grid"
	"github.com/osmundr/go-tileproc/raster"
)

var ErrInvalidPattern = errors.New("tileproc: invalid file pattern")

// Source implements raster.Source for pre-cut patch files. The files are
// expected to already carry any context margin; the margin only expands the
// extent recorded on the returned patch.
type Source struct {
	filePattern string
	tileSize    int
}

// New creates a source for the given file pattern (e.g.
// "/home/user/patches/{x}_{y}.tif").
func New(filePattern string, tileSize int) (*Source, error) {
	if err := validatePattern(filePattern); err != nil {
		return nil, err
	}
	if tileSize <= 0 {
		return nil, fmt.Errorf("%w: tile size must be positive, got %d", grid.ErrInvalidGeometry, tileSize)
	}
	return &Source{filePattern: filePattern, tileSize: tileSize}, nil
}

func (s *Source) Fetch(ctx context.Context, anchor grid.Anchor, margin int) (raster.Patch, error) {
	if err := ctx.Err(); err != nil {
		return raster.Patch{}, err
	}

	data, err := os.ReadFile(formatPattern(s.filePattern, anchor))
	if err != nil {
		return raster.Patch{}, err
	}

	region, err := anchor.Cell(s.tileSize).Buffer(margin)
	if err != nil {
		return raster.Patch{}, err
	}

	return raster.Patch{Anchor: anchor, Region: region, Data: data}, nil
}

func validatePattern(pattern string) error {
	for _, placeholder := range []string{"{x}", "{y}"} {
		if !strings.Contains(pattern, placeholder) {
			return fmt.Errorf("%w: placeholder %v not found", ErrInvalidPattern, placeholder)
		}
	}
	return nil
}

func formatPattern(pattern string, anchor grid.Anchor) string {
	result := pattern
	result = strings.ReplaceAll(result, "{x}", fmt.Sprintf("%d", anchor.X))
	result = strings.ReplaceAll(result, "{y}", fmt.Sprintf("%d", anchor.Y))
	return result
}
