package main

import (
	"errors"
	"fmt"
	"os"

	"bridgewatch/internal/cli"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	err := cli.Execute(cli.BuildInfo{Version: version, Commit: commit, BuildTime: buildTime})
	switch {
	case err == nil:
	case errors.Is(err, cli.ErrFraudDetected):
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
