package stages

import (
	"context"
	"testing"

	"wallgeometry/internal/geometry"
	"wallgeometry/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStageExplodesPolylinesAndDropsDegenerate(t *testing.T) {
	bundle := &pipeline.Bundle{
		Extract: &pipeline.ExtractResult{
			Entities: []pipeline.Entity{
				pipeline.Line{EntityID: "l1", Segment: geometry.Segment{
					P1: geometry.Point{X: 0, Y: 0}, P2: geometry.Point{X: 0, Y: 0},
				}},
				pipeline.Polyline{
					EntityID: "p1",
					Vertices: []geometry.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 20, Y: 0}},
					Closed:   false,
				},
				pipeline.Block{EntityID: "b1", RotationDeg: 450},
			},
		},
	}

	stage := &NormalizeStage{}
	metrics, err := stage.Run(context.Background(), bundle, pipeline.DefaultAlgorithmConfig())
	require.NoError(t, err)

	for _, e := range bundle.Normalize.Entities {
		_, isPolyline := e.(pipeline.Polyline)
		assert.False(t, isPolyline, "no Polyline entity should survive NORMALIZE")
	}

	// the degenerate line is dropped, the two polyline segments explode.
	assert.Equal(t, 1, metrics.Counts["dropped"])
	assert.Equal(t, 2, metrics.Counts["exploded_segments"])

	for _, e := range bundle.Normalize.Entities {
		if b, ok := e.(pipeline.Block); ok {
			assert.InDelta(t, 90.0, b.RotationDeg, 1e-9)
		}
	}
}

func TestNormalizeRotationFoldsNegativeAndLargeAngles(t *testing.T) {
	assert.InDelta(t, 270.0, normalizeRotation(-90), 1e-9)
	assert.InDelta(t, 10.0, normalizeRotation(370), 1e-9)
	assert.InDelta(t, 0.0, normalizeRotation(360), 1e-9)
}

func TestSnapDoorRotationTo90(t *testing.T) {
	assert.InDelta(t, 0.0, snapDoorRotationTo90(5), 1e-9)
	assert.InDelta(t, 90.0, snapDoorRotationTo90(88), 1e-9)
	assert.InDelta(t, 270.0, snapDoorRotationTo90(-91), 1e-9)
	// 1000 units out of a 4000-unit circle is 90 degrees.
	assert.InDelta(t, 90.0, snapDoorRotationTo90(1000), 1e-9)
	assert.InDelta(t, 180.0, snapDoorRotationTo90(2000), 1e-9)
}

func TestNormalizeStageSnapsDoorWindowRotation(t *testing.T) {
	bundle := &pipeline.Bundle{
		Extract: &pipeline.ExtractResult{
			DoorWindowBlocks: []pipeline.Block{
				{EntityID: "d1", RotationDeg: 88},
				{EntityID: "d2", RotationDeg: 1000},
			},
		},
	}

	stage := &NormalizeStage{}
	_, err := stage.Run(context.Background(), bundle, pipeline.DefaultAlgorithmConfig())
	require.NoError(t, err)

	require.Len(t, bundle.Normalize.DoorWindowBlocks, 2)
	assert.InDelta(t, 90.0, bundle.Normalize.DoorWindowBlocks[0].RotationDeg, 1e-9)
	assert.InDelta(t, 90.0, bundle.Normalize.DoorWindowBlocks[1].RotationDeg, 1e-9)
}

func TestNormalizeStageRequiresExtract(t *testing.T) {
	stage := &NormalizeStage{}
	_, err := stage.Run(context.Background(), &pipeline.Bundle{}, pipeline.DefaultAlgorithmConfig())
	require.Error(t, err)
}
