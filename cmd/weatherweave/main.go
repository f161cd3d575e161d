// Command weatherweave turns the current weather into a desktop wallpaper.
//
// Usage:
//
//	weatherweave [command]
//
// Examples:
//
//	# Preview the prompt for the current conditions
//	weatherweave weather --theme minimal
//
//	# Generate and apply once
//	weatherweave generate
//
//	# Keep updating in the background and expose the control API
//	weatherweave serve
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/adityak74/weatherweave/internal/cli"
)

// Set via ldflags during build.
var version = "dev"

func main() {
	root := cli.NewRootCmd(version)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
