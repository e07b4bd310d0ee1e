package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/google/subcommands"
)

type exportCmd struct {
	inputPath  string
	crs        string
	outputPath string
}

func (c *exportCmd) Name() string     { return "export" }
func (c *exportCmd) Synopsis() string { return "export a tile set as GeoJSON tile squares" }
func (c *exportCmd) Usage() string {
	return "tileproc export -i <path> -crs <code> -o <path>\n"
}
func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.inputPath, "i", "", "Input tile set path (.json)")
	f.StringVar(&c.crs, "crs", "", "Coordinate reference code (e.g. EPSG:25832)")
	f.StringVar(&c.outputPath, "o", "", "Output GeoJSON path")
}

func (c *exportCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	tileSet, err := readTileSet(c.inputPath)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	data, err := tileSet.ToGeometry(c.crs).MarshalJSON()
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	if err := os.WriteFile(c.outputPath, data, 0o644); err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	log.Printf("wrote %d features to %s", tileSet.Len(), c.outputPath)
	return subcommands.ExitSuccess
}
