// Package main is the entry point for the rsakit command-line tool. It builds the root command,
// registers the key, RSA and cipher command groups and executes it.
package main

import (
	"fmt"
	"os"

	"github.com/bastionzero/rsakit/cmd/rsakit/internal/commands"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	rootCmd := commands.NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("command execution failed: %w", err)
	}
	return nil
}
