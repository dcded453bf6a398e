// Package main provides the entry point for the rbmap CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/rbmap/cmd/rbmap/commands"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rbmap",
		Short: "rbmap - red-black tree ordered map diagnostics",
		Long: `rbmap exercises the red-black tree ordered map.

Commands:
  stress    Randomized workload checked against a map oracle
  dump      Build a tree from keys and print its shape
  config    Print the effective configuration`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	commands.RegisterGlobalFlags(rootCmd)

	rootCmd.AddCommand(commands.NewStressCommand())
	rootCmd.AddCommand(commands.NewDumpCommand())
	rootCmd.AddCommand(commands.NewConfigCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
