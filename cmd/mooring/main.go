// Package main is the entry point for the mooring CLI.
package main

import (
	"os"

	"github.com/akodra/mooring/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
