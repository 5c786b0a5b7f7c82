package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:     "pipeline",
	Short:   "Run the wall geometry pipeline over a CAD drawing document",
	Long:    `pipeline is a command-line runner for the wall-geometry extraction pipeline: it reads a drawing export, runs the full stage chain, and writes every stage's artifact to disk.`,
	Version: "1.0.0",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
