package main

import (
	"fmt"
	"os"

	"github.com/tphakala/myconet/cmd"
	"github.com/tphakala/myconet/internal/conf"
)

// version is set at build time with -ldflags "-X main.version=..."
var version string

func main() {
	if version != "" {
		cmd.Version = version
	}

	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
