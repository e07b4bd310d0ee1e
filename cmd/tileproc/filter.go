package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/google/subcommands"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/osmundr/go-tileproc/filter"
)

type filterCmd struct {
	inputPath    string
	geometryPath string
	mode         string
	subtractPath string
	outputPath   string
}

func (c *filterCmd) Name() string     { return "filter" }
func (c *filterCmd) Synopsis() string { return "filter a tile set by geometry or by another tile set" }
func (c *filterCmd) Usage() string {
	return "tileproc filter -i <path> [-g <path> -mode <intersection|difference>] [-subtract <path>] -o <path>\n"
}
func (c *filterCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.inputPath, "i", "", "Input tile set path (.json)")
	f.StringVar(&c.geometryPath, "g", "", "GeoJSON geometry path")
	f.StringVar(&c.mode, "mode", "intersection", "Geometry filter mode (intersection, difference)")
	f.StringVar(&c.subtractPath, "subtract", "", "Tile set whose anchors are removed")
	f.StringVar(&c.outputPath, "o", "", "Output tile set path (.json)")
}

func (c *filterCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	tileSet, err := readTileSet(c.inputPath)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	chain := filter.Chain{filter.Duplicates()}

	if c.geometryPath != "" {
		data, err := os.ReadFile(c.geometryPath)
		if err != nil {
			log.Println(err)
			return subcommands.ExitFailure
		}
		collection, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			log.Println(err)
			return subcommands.ExitFailure
		}
		geometries := make([]orb.Geometry, 0, len(collection.Features))
		for _, feature := range collection.Features {
			geometries = append(geometries, feature.Geometry)
		}

		mode := filter.Intersection
		if c.mode == "difference" {
			mode = filter.Difference
		}
		geospatial, err := filter.Geospatial(tileSet.TileSize(), mode, geometries...)
		if err != nil {
			log.Println(err)
			return subcommands.ExitFailure
		}
		chain = append(chain, geospatial)
	}

	if c.subtractPath != "" {
		other, err := readTileSet(c.subtractPath)
		if err != nil {
			log.Println(err)
			return subcommands.ExitFailure
		}
		chain = append(chain, filter.Set(filter.SetDifference, other.Anchors()))
	}

	tileSet.Filter(chain)

	if err := writeTileSet(tileSet, c.outputPath); err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	log.Printf("wrote %d anchors to %s", tileSet.Len(), c.outputPath)
	return subcommands.ExitSuccess
}
