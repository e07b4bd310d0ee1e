package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
	_ "github.com/mattn/go-sqlite3"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(&gridCmd{}, "")
	subcommands.Register(&combineCmd{}, "")
	subcommands.Register(&filterCmd{}, "")
	subcommands.Register(&exportCmd{}, "")
	subcommands.Register(&runCmd{}, "")

	flag.Parse()
	os.Exit(int(subcommands.Execute(context.Background())))
}
