// Command molstruct parses molecular structure files locally or through a
// molstruct API server.
package main

import (
	"os"

	"github.com/turtacn/molstruct/internal/interfaces/cli"
)

// Set with -ldflags at build time.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

//Personal.AI order the ending
