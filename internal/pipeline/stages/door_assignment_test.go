package stages

import (
	"context"
	"testing"

	"wallgeometry/internal/geometry"
	"wallgeometry/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wallRect() pipeline.TrimmedRectangle {
	return rect("wall", geometry.Point{X: 0, Y: 0}, geometry.Point{X: 1000, Y: 0}, geometry.Point{X: 0, Y: 100}, 100)
}

func doorBlockAt(x, y float64) pipeline.Block {
	return pipeline.Block{
		EntityID:  "door1",
		BlockName: "door1",
		Position:  geometry.Point{X: x, Y: y},
		LocalBBox: geometry.BBox{MinX: -40, MaxX: 40, MinY: -10, MaxY: 10},
	}
}

func TestDoorAssignmentSnapsDoorInsideWall(t *testing.T) {
	bundle := &pipeline.Bundle{
		LogicF:     &pipeline.LogicFResult{Rectangles: []pipeline.TrimmedRectangle{wallRect()}},
		CleanDedup: &pipeline.CleanDedupResult{DoorWindowBlocks: []pipeline.Block{doorBlockAt(500, 50)}},
	}
	stage := &DoorAssignmentStage{}
	_, err := stage.Run(context.Background(), bundle, pipeline.DefaultAlgorithmConfig())
	require.NoError(t, err)

	require.Len(t, bundle.DoorAssignment.Assignments, 1)
	a := bundle.DoorAssignment.Assignments[0]
	assert.Equal(t, pipeline.EntityID("door1"), a.DoorEntityID)
	assert.Equal(t, 0, a.RectangleIndex)
	assert.Empty(t, bundle.DoorAssignment.UnassignedIDs)
}

func TestDoorAssignmentLeavesFarDoorUnassigned(t *testing.T) {
	cfg := pipeline.DefaultAlgorithmConfig()
	farDoor := doorBlockAt(500, 50+cfg.DoorSnapToleranceMM+500)
	bundle := &pipeline.Bundle{
		LogicF:     &pipeline.LogicFResult{Rectangles: []pipeline.TrimmedRectangle{wallRect()}},
		CleanDedup: &pipeline.CleanDedupResult{DoorWindowBlocks: []pipeline.Block{farDoor}},
	}
	stage := &DoorAssignmentStage{}
	_, err := stage.Run(context.Background(), bundle, cfg)
	require.NoError(t, err)

	assert.Empty(t, bundle.DoorAssignment.Assignments)
	require.Len(t, bundle.DoorAssignment.UnassignedIDs, 1)
	assert.Equal(t, pipeline.EntityID("door1"), bundle.DoorAssignment.UnassignedIDs[0])
}

func TestDoorAssignmentBBoxExpandCatchesDoorJustBeyondWallEnd(t *testing.T) {
	cfg := pipeline.DefaultAlgorithmConfig()
	// the wall rectangle's longitudinal extent ends at X=1000; this door's
	// footprint (half-width 40) starts at X=1110, so it clears the rectangle
	// by 110mm, short of DoorBBoxExpandMM's 200mm catchment.
	justBeyond := doorBlockAt(1150, 50)
	bundle := &pipeline.Bundle{
		LogicF:     &pipeline.LogicFResult{Rectangles: []pipeline.TrimmedRectangle{wallRect()}},
		CleanDedup: &pipeline.CleanDedupResult{DoorWindowBlocks: []pipeline.Block{justBeyond}},
	}
	stage := &DoorAssignmentStage{}
	_, err := stage.Run(context.Background(), bundle, cfg)
	require.NoError(t, err)

	require.Len(t, bundle.DoorAssignment.Assignments, 1)
	assert.Equal(t, 0, bundle.DoorAssignment.Assignments[0].RectangleIndex)
	assert.Empty(t, bundle.DoorAssignment.UnassignedIDs)
}

func TestDoorAssignmentBBoxExpandStillRejectsDoorFarBeyondWallEnd(t *testing.T) {
	cfg := pipeline.DefaultAlgorithmConfig()
	// clears the rectangle by 400mm longitudinally, beyond even the expanded
	// 200mm catchment, so it stays unassigned.
	farBeyond := doorBlockAt(1440, 50)
	bundle := &pipeline.Bundle{
		LogicF:     &pipeline.LogicFResult{Rectangles: []pipeline.TrimmedRectangle{wallRect()}},
		CleanDedup: &pipeline.CleanDedupResult{DoorWindowBlocks: []pipeline.Block{farBeyond}},
	}
	stage := &DoorAssignmentStage{}
	_, err := stage.Run(context.Background(), bundle, cfg)
	require.NoError(t, err)

	assert.Empty(t, bundle.DoorAssignment.Assignments)
	require.Len(t, bundle.DoorAssignment.UnassignedIDs, 1)
}

func TestDoorAssignmentRequiresLogicF(t *testing.T) {
	stage := &DoorAssignmentStage{}
	_, err := stage.Run(context.Background(), &pipeline.Bundle{}, pipeline.DefaultAlgorithmConfig())
	require.Error(t, err)
}
