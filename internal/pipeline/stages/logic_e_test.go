package stages

import (
	"context"
	"testing"

	"wallgeometry/internal/geometry"
	"wallgeometry/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogicEMergesAdjacentCollinearRectangles(t *testing.T) {
	a := rect("a", geometry.Point{X: 0, Y: 0}, geometry.Point{X: 500, Y: 0}, geometry.Point{X: 0, Y: 100}, 100)
	// starts 2mm past a's end, within BandGapToleranceMM (5mm default).
	b := rect("b", geometry.Point{X: 502, Y: 0}, geometry.Point{X: 1000, Y: 0}, geometry.Point{X: 502, Y: 100}, 100)

	bundle := &pipeline.Bundle{
		LogicD: &pipeline.LogicDResult{Rectangles: []pipeline.TrimmedRectangle{a, b}},
	}
	stage := &LogicEStage{}
	_, err := stage.Run(context.Background(), bundle, pipeline.DefaultAlgorithmConfig())
	require.NoError(t, err)

	require.Len(t, bundle.LogicE.Rectangles, 1)
	merged := bundle.LogicE.Rectangles[0]
	assert.ElementsMatch(t, []string{"a", "b"}, merged.MergedFrom)
	length := merged.QuadCorners[1].Distance(merged.QuadCorners[0])
	assert.InDelta(t, 1000.0, length, 1e-6)
	assert.Equal(t, 1, bundle.LogicE.MergedCount)
}

func TestLogicEDoesNotMergeRectanglesWithGapTooLarge(t *testing.T) {
	a := rect("a", geometry.Point{X: 0, Y: 0}, geometry.Point{X: 500, Y: 0}, geometry.Point{X: 0, Y: 100}, 100)
	b := rect("b", geometry.Point{X: 600, Y: 0}, geometry.Point{X: 1000, Y: 0}, geometry.Point{X: 600, Y: 100}, 100)

	bundle := &pipeline.Bundle{
		LogicD: &pipeline.LogicDResult{Rectangles: []pipeline.TrimmedRectangle{a, b}},
	}
	stage := &LogicEStage{}
	_, err := stage.Run(context.Background(), bundle, pipeline.DefaultAlgorithmConfig())
	require.NoError(t, err)

	assert.Len(t, bundle.LogicE.Rectangles, 2)
	assert.Equal(t, 0, bundle.LogicE.MergedCount)
}

func TestLogicEKeepsSeparateBandsApart(t *testing.T) {
	horiz := rect("h", geometry.Point{X: 0, Y: 0}, geometry.Point{X: 500, Y: 0}, geometry.Point{X: 0, Y: 100}, 100)
	vert := rect("v", geometry.Point{X: 0, Y: 0}, geometry.Point{X: 0, Y: 500}, geometry.Point{X: 100, Y: 0}, 100)

	bundle := &pipeline.Bundle{
		LogicD: &pipeline.LogicDResult{Rectangles: []pipeline.TrimmedRectangle{horiz, vert}},
	}
	stage := &LogicEStage{}
	_, err := stage.Run(context.Background(), bundle, pipeline.DefaultAlgorithmConfig())
	require.NoError(t, err)

	assert.Len(t, bundle.LogicE.Rectangles, 2)
}

func TestLogicERequiresLogicD(t *testing.T) {
	stage := &LogicEStage{}
	_, err := stage.Run(context.Background(), &pipeline.Bundle{}, pipeline.DefaultAlgorithmConfig())
	require.Error(t, err)
}
