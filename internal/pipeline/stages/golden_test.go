package stages

import (
	"context"
	"strings"
	"testing"

	"wallgeometry/internal/artifact"
	"wallgeometry/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runGolden parses docJSON, runs every stage over the "Walls" layer (plus
// whatever door/window layers it contains), and returns the finished
// bundle. It mirrors spec section 8's E1-E6 scenarios against the live
// stage pipeline rather than against any one stage in isolation.
func runGolden(t *testing.T, docJSON string) *pipeline.Bundle {
	t.Helper()
	doc, err := ParseDrawingDocument(strings.NewReader(docJSON))
	require.NoError(t, err)

	sink := artifact.NewMemSink()
	executor := pipeline.NewExecutor(All(doc, []string{"Walls"}), sink, pipeline.DefaultAlgorithmConfig())
	bundle, err := executor.Run(context.Background(), "golden-job", &pipeline.Bundle{})
	require.NoError(t, err)
	return bundle
}

// E1 - Single pair, clean.
func TestGoldenE1SinglePairClean(t *testing.T) {
	doc := `{
	  "layers": {
	    "Walls": {
	      "entities": [
	        {"type": "LINE", "start": {"x": 0, "y": 0}, "end": {"x": 1000, "y": 0}},
	        {"type": "LINE", "start": {"x": 0, "y": 100}, "end": {"x": 1000, "y": 100}}
	      ]
	    }
	  }
	}`
	bundle := runGolden(t, doc)

	require.Len(t, bundle.ParallelNaive.Pairs, 1)
	pair := bundle.ParallelNaive.Pairs[0]
	assert.InDelta(t, 100.0, pair.PerpendicularDist, 1e-9)
	assert.InDelta(t, 100.0, pair.OverlapPercentage, 1e-9)
	assert.InDelta(t, 0.0, pair.AngleDeg, 1e-9)
	assert.InDelta(t, 0.0, pair.BoundingRectangle.MinX, 1e-9)
	assert.InDelta(t, 0.0, pair.BoundingRectangle.MinY, 1e-9)
	assert.InDelta(t, 1000.0, pair.BoundingRectangle.MaxX, 1e-9)
	assert.InDelta(t, 100.0, pair.BoundingRectangle.MaxY, 1e-9)

	require.Len(t, bundle.LogicB.Rectangles, 1)
	require.Len(t, bundle.LogicC.Rectangles, 1)
	require.Len(t, bundle.LogicD.Rectangles, 1)
	require.Len(t, bundle.LogicE.Rectangles, 1)
}

// E2 - Rejected by distance.
func TestGoldenE2RejectedByDistance(t *testing.T) {
	doc := `{
	  "layers": {
	    "Walls": {
	      "entities": [
	        {"type": "LINE", "start": {"x": 0, "y": 0}, "end": {"x": 1000, "y": 0}},
	        {"type": "LINE", "start": {"x": 0, "y": 10}, "end": {"x": 1000, "y": 10}}
	      ]
	    }
	  }
	}`
	bundle := runGolden(t, doc)
	assert.Empty(t, bundle.ParallelNaive.Pairs)
	assert.Equal(t, 1, bundle.ParallelNaive.RejectionCounts["distance_out_of_range"])
}

// E3 - Rejected by overlap.
func TestGoldenE3RejectedByOverlap(t *testing.T) {
	doc := `{
	  "layers": {
	    "Walls": {
	      "entities": [
	        {"type": "LINE", "start": {"x": 0, "y": 0}, "end": {"x": 1000, "y": 0}},
	        {"type": "LINE", "start": {"x": 800, "y": 100}, "end": {"x": 1800, "y": 100}}
	      ]
	    }
	  }
	}`
	bundle := runGolden(t, doc)
	assert.Empty(t, bundle.ParallelNaive.Pairs)
	assert.Equal(t, 1, bundle.ParallelNaive.RejectionCounts["overlap_too_short"])
}

// E4 - Intervening line. A third line at y=50 running between the two
// outer walls is itself parallel to, within range of, and fully overlapped
// by each of the three possible pairings among the three lines
// ((y0,y100), (y0,y50), (y50,y100)), so PARALLEL_NAIVE/LOGIC_B produce three
// rectangles, not one. LOGIC_C only prunes the (y0,y100) rectangle, whose
// corridor the y=50 line's midpoint falls inside; the two corridors either
// side of it ((y0,y50) and (y50,y100)) have no third line running through
// their own, narrower span and survive.
func TestGoldenE4InterveningLine(t *testing.T) {
	doc := `{
	  "layers": {
	    "Walls": {
	      "entities": [
	        {"type": "LINE", "start": {"x": 0, "y": 0}, "end": {"x": 1000, "y": 0}},
	        {"type": "LINE", "start": {"x": 0, "y": 100}, "end": {"x": 1000, "y": 100}},
	        {"type": "LINE", "start": {"x": 100, "y": 50}, "end": {"x": 900, "y": 50}}
	      ]
	    }
	  }
	}`
	bundle := runGolden(t, doc)
	require.Len(t, bundle.LogicB.Rectangles, 3)
	require.Len(t, bundle.LogicC.Rectangles, 2)
	assert.Equal(t, 1, bundle.LogicC.PrunedCount)
}

// E5 - Band merge.
func TestGoldenE5BandMerge(t *testing.T) {
	doc := `{
	  "layers": {
	    "Walls": {
	      "entities": [
	        {"type": "LINE", "start": {"x": 0, "y": 0}, "end": {"x": 500, "y": 0}},
	        {"type": "LINE", "start": {"x": 0, "y": 100}, "end": {"x": 500, "y": 100}},
	        {"type": "LINE", "start": {"x": 505, "y": 0}, "end": {"x": 1000, "y": 0}},
	        {"type": "LINE", "start": {"x": 505, "y": 100}, "end": {"x": 1000, "y": 100}}
	      ]
	    }
	  }
	}`
	bundle := runGolden(t, doc)
	require.Len(t, bundle.LogicE.Rectangles, 1)
	merged := bundle.LogicE.Rectangles[0]
	length := merged.QuadCorners[1].Distance(merged.QuadCorners[0])
	assert.InDelta(t, 1000.0, length, 1e-6)
}

// E6 - Door bridge.
func TestGoldenE6DoorBridge(t *testing.T) {
	doc := `{
	  "layers": {
	    "Walls": {
	      "entities": [
	        {"type": "LINE", "start": {"x": 0, "y": 0}, "end": {"x": 2000, "y": 0}},
	        {"type": "LINE", "start": {"x": 0, "y": 100}, "end": {"x": 2000, "y": 100}}
	      ]
	    },
	    "Doors": {
	      "entities": [
	        {"type": "BLOCK", "name": "door1", "position": {"X": 1000, "Y": 50}, "Rotation": 0, "BoundingBox": {"MinPoint": {"X": -100, "Y": -100}, "MaxPoint": {"X": 100, "Y": 100}}}
	      ]
	    }
	  }
	}`
	bundle := runGolden(t, doc)

	require.Len(t, bundle.DoorAssignment.Assignments, 1)
	require.Len(t, bundle.DoorBridge.Bridges, 1)

	bridge := bundle.DoorBridge.Bridges[0].Bridges[0]
	assert.InDelta(t, 890.0, bridge.BridgeRectangle.MinX, 1e-6)
	assert.InDelta(t, 1110.0, bridge.BridgeRectangle.MaxX, 1e-6)
	assert.InDelta(t, 0.0, bridge.BridgeRectangle.MinY, 1e-6)
	assert.InDelta(t, 100.0, bridge.BridgeRectangle.MaxY, 1e-6)
}
