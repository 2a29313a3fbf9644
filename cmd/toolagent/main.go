// Package main is the entry point for the toolagent CLI.
//
// Usage:
//
//	toolagent [flags] <command> [args]
//
// Commands:
//
//	ask      - Answer one question (optionally on a persisted thread)
//	chat     - Interactive chat loop
//	demo     - Run the built-in demo queries
//	threads  - List, show or delete persisted threads
package main

import (
	"fmt"
	"os"

	"github.com/hupe1980/toolagent/cmd/toolagent/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
