package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fitpro/fitsync/internal/adapter"
	"github.com/fitpro/fitsync/internal/cli"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	root := cli.NewRootCommand()
	root.Version = Version
	adapter.Version = Version

	if err := root.Execute(); err != nil {
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) || !exitErr.Reported {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
