package main

import (
	"context"
	"fmt"
	"os"

	// Embedded zone database so IANA names resolve on hosts without one.
	_ "time/tzdata"

	"github.com/geoclock/timekeeper/cmd"
	"github.com/geoclock/timekeeper/internal/buildinfo"
)

// buildDate and version are set at build time with -ldflags
// "-X main.buildDate=... -X main.version=...".
var (
	buildDate string
	version   string
)

func main() {
	info := buildinfo.NewContext(version, buildDate)

	rootCmd := cmd.RootCommand(info)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
