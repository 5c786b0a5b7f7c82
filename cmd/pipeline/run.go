package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"wallgeometry/internal/artifact"
	"wallgeometry/internal/pipeline"
	"wallgeometry/internal/pipeline/stages"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	runLayers string
	runOutDir string
)

var runCmd = &cobra.Command{
	Use:   "run <drawing.json>",
	Short: "Run the pipeline once over a drawing document",
	Long:  "Parses a drawing export, runs every stage in order, and writes each stage's artifact plus the step metrics under --out via the filesystem sink.",
	Args:  cobra.ExactArgs(1),
	Run:   runRun,
}

func init() {
	runCmd.Flags().StringVar(&runLayers, "layers", "", "comma-separated layer names to include (required)")
	runCmd.Flags().StringVar(&runOutDir, "out", "./pipeline-out", "directory artifacts are written under")
	runCmd.MarkFlagRequired("layers")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) {
	path := args[0]

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %s: %v\n", path, err)
		os.Exit(1)
	}
	defer f.Close()

	doc, err := stages.ParseDrawingDocument(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing drawing document: %v\n", err)
		os.Exit(1)
	}

	layers := strings.Split(runLayers, ",")

	jobID := uuid.NewString()
	sink := artifact.NewFSSink(runOutDir)

	executor := pipeline.NewExecutor(stages.All(doc, layers), sink, pipeline.DefaultAlgorithmConfig())
	bundle, err := executor.Run(context.Background(), jobID, &pipeline.Bundle{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Pipeline failed (job %s): %v\n", jobID, err)
		os.Exit(1)
	}

	fmt.Printf("Pipeline run %s completed\n", jobID)
	fmt.Printf("Artifacts written under %s/%s\n", runOutDir, jobID)
	if bundle.LogicF != nil {
		fmt.Printf("Wall rectangles: %d\n", len(bundle.LogicF.Rectangles))
	}
	if bundle.DoorBridge != nil {
		fmt.Printf("Door bridges: %d\n", len(bundle.DoorBridge.Bridges))
	}
}
