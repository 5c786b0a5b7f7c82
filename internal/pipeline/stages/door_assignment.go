package stages

import (
	"context"
	"math"
	"sort"

	"wallgeometry/internal/geometry"
	"wallgeometry/internal/pipeline"
)

// DoorAssignmentStage snaps each door/window block onto the single LOGIC_F
// wall rectangle it sits in: the rectangle whose band the door's centre
// falls within DoorSnapToleranceMM of, in the normal direction, and whose
// longitudinal extent the door's own projection intersects. Ties are broken
// by centre-to-centre distance.
type DoorAssignmentStage struct{}

func (s *DoorAssignmentStage) Name() string { return "DOOR_RECTANGLE_ASSIGNMENT" }

func (s *DoorAssignmentStage) Run(ctx context.Context, bundle *pipeline.Bundle, cfg pipeline.AlgorithmConfig) (pipeline.StageMetrics, error) {
	if bundle.LogicF == nil || bundle.CleanDedup == nil {
		return pipeline.StageMetrics{}, pipeline.NewStageError(s.Name(), pipeline.KindInvalidInput, errMissingUpstream("LOGIC_F"))
	}

	rects := bundle.LogicF.Rectangles
	doors := bundle.CleanDedup.DoorWindowBlocks

	var assignments []pipeline.DoorAssignment
	var unassigned []pipeline.EntityID

	for _, door := range doors {
		best, bestDist, ok := bestRectangleFor(door, rects, cfg.DoorSnapToleranceMM, cfg.DoorBBoxExpandMM)
		if !ok {
			unassigned = append(unassigned, door.EntityID)
			continue
		}
		assignments = append(assignments, pipeline.DoorAssignment{
			DoorEntityID:   door.EntityID,
			RectangleIndex: best,
			DistanceMM:     bestDist,
			Orientation:    doorOrientation(door, rects[best]),
		})
	}

	sort.Slice(assignments, func(i, j int) bool { return assignments[i].DoorEntityID < assignments[j].DoorEntityID })
	sort.Slice(unassigned, func(i, j int) bool { return unassigned[i] < unassigned[j] })

	bundle.DoorAssignment = &pipeline.DoorAssignmentResult{Assignments: assignments, UnassignedIDs: unassigned}

	return pipeline.StageMetrics{
		Stage:  s.Name(),
		Counts: map[string]int{"assigned": len(assignments), "unassigned": len(unassigned)},
	}, nil
}

// bestRectangleFor returns the index of the best-matching rectangle for
// door, the centre-to-centre distance, and whether any rectangle qualified.
// bboxExpandMM widens the door's longitudinal catchment before the overlap
// test, the same margin the original's door processor applies to the
// door's whole world AABB before testing it against each wall rectangle's
// bounds, so a door whose footprint falls just short of a wall's trimmed
// extent (common right at a corner) still resolves to that wall.
func bestRectangleFor(door pipeline.Block, rects []pipeline.TrimmedRectangle, snapTol, bboxExpandMM float64) (int, float64, bool) {
	quad := door.WorldQuad()
	doorCenter := quad.BBox().Center()

	best := -1
	bestDist := math.Inf(1)

	for i, r := range rects {
		a1 := r.QuadCorners[0]
		u := bandDirection(r)
		n := bandNormal(r, u)
		length := r.QuadCorners[1].Distance(a1)

		rel := doorCenter.Sub(a1)
		norm := rel.Dot(n)

		if math.Abs(norm-r.Thickness/2) > snapTol {
			continue
		}

		doorLo, doorHi := projectQuadOnto(doorAsRect(quad), a1, u)
		doorLo -= bboxExpandMM
		doorHi += bboxExpandMM
		if doorHi < 0 || doorLo > length {
			continue
		}

		rectCenter := a1.Add(u.Scale(length / 2)).Add(n.Scale(r.Thickness / 2))
		dist := doorCenter.Distance(rectCenter)
		if dist < bestDist {
			bestDist = dist
			best = i
		}
	}

	return best, bestDist, best >= 0
}

// doorAsRect adapts a door's world quad into the TrimmedRectangle shape
// projectQuadOnto expects, so the same projection helper can be reused for
// both wall rectangles and door footprints.
func doorAsRect(q geometry.Quad) pipeline.TrimmedRectangle {
	return pipeline.TrimmedRectangle{QuadCorners: q.Corners}
}

// doorOrientation classifies a door by whether its longer world-space edge
// aligns with the wall rectangle's segment-A direction.
func doorOrientation(door pipeline.Block, rect pipeline.TrimmedRectangle) pipeline.Orientation {
	quad := door.WorldQuad()
	e1 := quad.Corners[1].Sub(quad.Corners[0])
	e2 := quad.Corners[2].Sub(quad.Corners[1])

	longEdge := e1
	if e2.Length() > e1.Length() {
		longEdge = e2
	}
	longDir := longEdge.Normalize()

	u := bandDirection(rect)
	if math.Abs(longDir.Dot(u)) >= math.Abs(longDir.Dot(geometry.PerpVector(u))) {
		return pipeline.OrientationAlongA
	}
	return pipeline.OrientationAlongB
}
