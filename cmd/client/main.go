// Package main is the entry point for the tokenauth CLI client.
package main

import (
	"os"

	"github.com/iudanet/tokenauth/internal/client/cli"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	cmd := cli.NewRootCmd(cli.BuildInfo{
		Version:   Version,
		BuildDate: BuildDate,
		GitCommit: GitCommit,
	})
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
