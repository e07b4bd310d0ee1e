package main

import (
	"context"
	"flag"
	"log"

	"github.com/google/subcommands"
)

type combineCmd struct {
	outputPath string
}

func (c *combineCmd) Name() string     { return "combine" }
func (c *combineCmd) Synopsis() string { return "combine tile set files into one" }
func (c *combineCmd) Usage() string {
	return "tileproc combine -o <path> <tileset.json> [<tileset.json> ...]\n"
}
func (c *combineCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.outputPath, "o", "", "Output tile set path (.json)")
}

func (c *combineCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	paths := f.Args()
	if len(paths) == 0 {
		log.Println("no input tile sets")
		return subcommands.ExitUsageError
	}

	combined, err := readTileSet(paths[0])
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	for _, path := range paths[1:] {
		next, err := readTileSet(path)
		if err != nil {
			log.Println(err)
			return subcommands.ExitFailure
		}
		combined, err = combined.Combine(next)
		if err != nil {
			log.Println(err)
			return subcommands.ExitFailure
		}
	}

	if err := writeTileSet(combined, c.outputPath); err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	log.Printf("wrote %d anchors to %s", combined.Len(), c.outputPath)
	return subcommands.ExitSuccess
}
