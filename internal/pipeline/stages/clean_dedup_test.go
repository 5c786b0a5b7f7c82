package stages

import (
	"context"
	"testing"

	"wallgeometry/internal/geometry"
	"wallgeometry/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanDedupRemovesExactDuplicates(t *testing.T) {
	line := pipeline.Line{EntityID: "l1", LayerName: "Walls", Segment: geometry.Segment{
		P1: geometry.Point{X: 0, Y: 0}, P2: geometry.Point{X: 100, Y: 0},
	}}
	bundle := &pipeline.Bundle{
		Normalize: &pipeline.NormalizeResult{
			Entities: []pipeline.Entity{line, line, line},
		},
	}

	stage := &CleanDedupStage{}
	metrics, err := stage.Run(context.Background(), bundle, pipeline.DefaultAlgorithmConfig())
	require.NoError(t, err)

	assert.Len(t, bundle.CleanDedup.Entities, 1)
	assert.Equal(t, 2, metrics.Counts["duplicates_removed"])
}

func TestCleanDedupBuildsCanvasLayersAndBounds(t *testing.T) {
	l1 := pipeline.Line{EntityID: "l1", LayerName: "Walls", Segment: geometry.Segment{
		P1: geometry.Point{X: 0, Y: 0}, P2: geometry.Point{X: 100, Y: 0},
	}}
	l2 := pipeline.Line{EntityID: "l2", LayerName: "Walls", Segment: geometry.Segment{
		P1: geometry.Point{X: 0, Y: 50}, P2: geometry.Point{X: 100, Y: 50},
	}}
	bundle := &pipeline.Bundle{
		Normalize: &pipeline.NormalizeResult{Entities: []pipeline.Entity{l1, l2}},
	}

	stage := &CleanDedupStage{}
	_, err := stage.Run(context.Background(), bundle, pipeline.DefaultAlgorithmConfig())
	require.NoError(t, err)

	require.Contains(t, bundle.CleanDedup.CanvasLayers, pipeline.LayerName("Walls"))
	layer := bundle.CleanDedup.CanvasLayers["Walls"]
	assert.Len(t, layer.Lines, 2)
	assert.NotEmpty(t, layer.Color)
	assert.True(t, layer.Visible)

	assert.Equal(t, 0.0, bundle.CleanDedup.DrawingBounds.MinY)
	assert.Equal(t, 50.0, bundle.CleanDedup.DrawingBounds.MaxY)
}

func TestLayerColorIsDeterministic(t *testing.T) {
	a := layerColor("Walls")
	b := layerColor("Walls")
	c := layerColor("Doors")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Regexp(t, "^#[0-9a-f]{6}$", a)
}
