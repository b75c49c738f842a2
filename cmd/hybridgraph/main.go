// Command hybridgraph is the CLI entry point: parse flags, load
// configuration, embed the engine, and dispatch to a subcommand.
package main

import (
	"os"

	"github.com/hybridgraph/hybridgraph/internal/cli"
)

func main() {
	os.Exit(cli.New().Execute())
}
