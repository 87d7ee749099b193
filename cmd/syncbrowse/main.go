// syncbrowse - terminal browser for a file synchronization daemon.
package main

import (
	"os"

	"github.com/syncbrowse/syncbrowse/internal/cli"
	"github.com/syncbrowse/syncbrowse/internal/version"
)

// Version information, set with -ldflags "-X main.Version=... -X main.BuildTime=...".
var (
	Version   = "v0.4.0-dev"
	BuildTime = "unknown"
)

func main() {
	version.Version = Version
	version.BuildTime = BuildTime

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
