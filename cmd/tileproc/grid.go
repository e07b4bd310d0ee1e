package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/subcommands"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/osmundr/go-tileproc/grid"
)

type gridCmd struct {
	bbox         string
	geometryPath string
	tileSize     int
	quantize     bool
	hilbert      bool
	split        int
	outputPath   string
}

func (c *gridCmd) Name() string     { return "grid" }
func (c *gridCmd) Synopsis() string { return "build a tile set from a bounding box or geometry" }
func (c *gridCmd) Usage() string {
	return "tileproc grid -size <n> [-bbox <minx,miny,maxx,maxy> | -g <path>] [-quantize] [-hilbert] [-split <n>] -o <path>\n"
}
func (c *gridCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.bbox, "bbox", "", "Bounding box as minx,miny,maxx,maxy")
	f.StringVar(&c.geometryPath, "g", "", "GeoJSON geometry path")
	f.IntVar(&c.tileSize, "size", 0, "Tile size")
	f.BoolVar(&c.quantize, "quantize", false, "Snap the bounds to the tile-size grid")
	f.BoolVar(&c.hilbert, "hilbert", false, "Order anchors along a Hilbert curve")
	f.IntVar(&c.split, "split", 0, "Partition into n shard files")
	f.StringVar(&c.outputPath, "o", "", "Output tile set path (.json)")
}

func (c *gridCmd) buildTileSet() (*grid.TileSet, error) {
	if c.geometryPath != "" {
		data, err := os.ReadFile(c.geometryPath)
		if err != nil {
			return nil, err
		}
		collection, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, err
		}
		geometries := make([]orb.Geometry, 0, len(collection.Features))
		for _, feature := range collection.Features {
			geometries = append(geometries, feature.Geometry)
		}
		return grid.FromGeometry(geometries, c.tileSize, c.quantize)
	}

	var region grid.Region
	if _, err := fmt.Sscanf(c.bbox, "%d,%d,%d,%d", &region.MinX, &region.MinY, &region.MaxX, &region.MaxY); err != nil {
		return nil, fmt.Errorf("invalid -bbox %q: %w", c.bbox, err)
	}
	if err := region.Validate(); err != nil {
		return nil, err
	}
	return grid.FromRegion(region, c.tileSize, c.quantize)
}

func (c *gridCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	tileSet, err := c.buildTileSet()
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	if c.hilbert {
		if err := tileSet.SortHilbert(); err != nil {
			log.Println(err)
			return subcommands.ExitFailure
		}
	}

	if c.split > 0 {
		parts, err := tileSet.Partition(c.split)
		if err != nil {
			log.Println(err)
			return subcommands.ExitFailure
		}
		for i, part := range parts {
			if err := writeTileSet(part, shardPath(c.outputPath, i)); err != nil {
				log.Println(err)
				return subcommands.ExitFailure
			}
		}
		return subcommands.ExitSuccess
	}

	if err := writeTileSet(tileSet, c.outputPath); err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	log.Printf("wrote %d anchors to %s", tileSet.Len(), c.outputPath)
	return subcommands.ExitSuccess
}

func shardPath(path string, i int) string {
	return fmt.Sprintf("%s.%03d", path, i)
}

func writeTileSet(tileSet *grid.TileSet, path string) error {
	data, err := tileSet.ToJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func readTileSet(path string) (*grid.TileSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return grid.FromJSON(data)
}
