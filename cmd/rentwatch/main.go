// Package main is the entry point for the rentwatch CLI.
package main

import (
	"os"

	"github.com/jmylchreest/rentwatch/cmd/rentwatch/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
