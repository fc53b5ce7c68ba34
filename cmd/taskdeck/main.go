// Package main is the entry point for the taskdeck CLI/TUI.
package main

import (
	"os"

	"github.com/taskdeck-io/taskdeck/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
