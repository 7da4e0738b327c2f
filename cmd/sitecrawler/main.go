// Command sitecrawler is the executable entrypoint: it wires version
// metadata into the cobra command tree and dispatches to the crawl,
// export, and validate subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/kestrelweb/sitecrawler/internal/cmd"
)

var (
	// Version is set at build time via -ldflags.
	Version = "dev"
	// BuildTime is set at build time via -ldflags.
	BuildTime = "unknown"
)

func main() {
	cmd.SetVersionInfo(Version, BuildTime)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
