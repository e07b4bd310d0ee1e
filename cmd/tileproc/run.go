package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/google/subcommands"
	"github.com/schollz/progressbar/v3"

	"github.com/osmundr/go-tileproc/config"
	"github.com/osmundr/go-tileproc/pipeline"
)

type runCmd struct {
	configPath string
	verbose    bool
}

func (c *runCmd) Name() string     { return "run" }
func (c *runCmd) Synopsis() string { return "run a tile pipeline from a YAML config" }
func (c *runCmd) Usage() string {
	return "tileproc run -c <config.yaml> [-v]\n"
}
func (c *runCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "c", "", "Config path (.yaml)")
	f.BoolVar(&c.verbose, "v", false, "Verbose logging")
}

func (c *runCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	logger := slog.New(slog.DiscardHandler)
	if c.verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	bar := progressbar.NewOptions(-1, progressbar.OptionShowIts(), progressbar.OptionShowCount())
	runtime, err := cfg.Build(logger, pipeline.WithProgressFunc(func(completed, total int) {
		bar.ChangeMax(total)
		bar.Set(completed)
	}))
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	defer runtime.Close()

	runErr := runtime.Pipeline.Run(ctx)
	bar.Finish()
	fmt.Println()

	if runErr != nil {
		log.Println(runErr)
		return subcommands.ExitFailure
	}

	return subcommands.ExitSuccess
}
