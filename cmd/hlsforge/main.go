// Package main is the entry point for the hlsforge application.
package main

import (
	"os"

	"github.com/hlsforge/hlsforge/cmd/hlsforge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
