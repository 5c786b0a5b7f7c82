package stages

import (
	"context"
	"testing"

	"wallgeometry/internal/geometry"
	"wallgeometry/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildOneRectangleBundle(extraLines ...pipeline.Line) *pipeline.Bundle {
	l1 := pipeline.Line{EntityID: "l1", LayerName: "Walls", Segment: geometry.Segment{
		P1: geometry.Point{X: 0, Y: 0}, P2: geometry.Point{X: 1000, Y: 0},
	}}
	l2 := pipeline.Line{EntityID: "l2", LayerName: "Walls", Segment: geometry.Segment{
		P1: geometry.Point{X: 0, Y: 100}, P2: geometry.Point{X: 1000, Y: 100},
	}}
	pair := pipeline.CandidatePair{PairID: "p1", EntityAID: "l1", EntityBID: "l2", PerpendicularDist: 100}

	flat := []pipeline.Entity{l1, l2}
	for _, l := range extraLines {
		flat = append(flat, l)
	}

	bundle := &pipeline.Bundle{
		ParallelNaive: &pipeline.ParallelNaiveResult{
			FlatEntities: flat,
			Pairs:        []pipeline.CandidatePair{pair},
		},
	}
	logicB := &LogicBStage{}
	_, err := logicB.Run(context.Background(), bundle, pipeline.DefaultAlgorithmConfig())
	if err != nil {
		panic(err)
	}
	return bundle
}

func TestLogicCKeepsRectangleWithNoInterveningLine(t *testing.T) {
	bundle := buildOneRectangleBundle()
	stage := &LogicCStage{}
	_, err := stage.Run(context.Background(), bundle, pipeline.DefaultAlgorithmConfig())
	require.NoError(t, err)

	assert.Len(t, bundle.LogicC.Rectangles, 1)
	assert.Equal(t, 0, bundle.LogicC.PrunedCount)
}

func TestLogicCPrunesRectangleWithInterveningLine(t *testing.T) {
	intervening := pipeline.Line{EntityID: "l3", Segment: geometry.Segment{
		P1: geometry.Point{X: 500, Y: -10}, P2: geometry.Point{X: 500, Y: 110},
	}}
	bundle := buildOneRectangleBundle(intervening)
	stage := &LogicCStage{}
	_, err := stage.Run(context.Background(), bundle, pipeline.DefaultAlgorithmConfig())
	require.NoError(t, err)

	assert.Empty(t, bundle.LogicC.Rectangles)
	assert.Equal(t, 1, bundle.LogicC.PrunedCount)
}

func TestLogicCPrunesEvenAVeryShortInterveningLine(t *testing.T) {
	// a 1mm stub is still an intervening line per spec: there is no length
	// threshold below which an interior point stops counting.
	tinyStub := pipeline.Line{EntityID: "l3", Segment: geometry.Segment{
		P1: geometry.Point{X: 500, Y: 40}, P2: geometry.Point{X: 500, Y: 41},
	}}

	bundle := buildOneRectangleBundle(tinyStub)
	stage := &LogicCStage{}
	_, err := stage.Run(context.Background(), bundle, pipeline.DefaultAlgorithmConfig())
	require.NoError(t, err)

	assert.Empty(t, bundle.LogicC.Rectangles)
	assert.Equal(t, 1, bundle.LogicC.PrunedCount)
}

func TestLogicCRequiresLogicB(t *testing.T) {
	stage := &LogicCStage{}
	_, err := stage.Run(context.Background(), &pipeline.Bundle{}, pipeline.DefaultAlgorithmConfig())
	require.Error(t, err)
}
