package main

import (
	"fmt"
	"os"

	"github.com/weiawesome/sync-party/internal/cli"
	pkglog "github.com/weiawesome/sync-party/pkg/log"
)

func main() {
	// Audit entries go to stderr so --format json stays parseable.
	pkglog.Init(pkglog.Config{Level: "info", ServiceName: "partyctl", Output: os.Stderr})

	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
