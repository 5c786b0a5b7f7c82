package stages

import (
	"context"
	"sort"

	"wallgeometry/internal/geometry"
	"wallgeometry/internal/pipeline"
)

// DoorBridgeStage turns each assigned door into a bridge rectangle: the
// door's longitudinal span on its host wall, extended by BridgeEndCapMM on
// each end, spanning the wall's full thickness in the normal direction. The
// bridge is what downstream consumers subtract from the wall rectangle to
// cut the opening.
type DoorBridgeStage struct{}

func (s *DoorBridgeStage) Name() string { return "DOOR_BRIDGE" }

func (s *DoorBridgeStage) Run(ctx context.Context, bundle *pipeline.Bundle, cfg pipeline.AlgorithmConfig) (pipeline.StageMetrics, error) {
	if bundle.DoorAssignment == nil || bundle.LogicF == nil || bundle.CleanDedup == nil {
		return pipeline.StageMetrics{}, pipeline.NewStageError(s.Name(), pipeline.KindInvalidInput, errMissingUpstream("DOOR_RECTANGLE_ASSIGNMENT"))
	}

	doorByID := make(map[pipeline.EntityID]pipeline.Block, len(bundle.CleanDedup.DoorWindowBlocks))
	for _, d := range bundle.CleanDedup.DoorWindowBlocks {
		doorByID[d.EntityID] = d
	}

	rects := bundle.LogicF.Rectangles
	bridges := make([]pipeline.DoorBridge, 0, len(bundle.DoorAssignment.Assignments))

	for _, a := range bundle.DoorAssignment.Assignments {
		door, ok := doorByID[a.DoorEntityID]
		if !ok {
			continue
		}
		rect := rects[a.RectangleIndex]
		bridge := buildBridge(door, rect, cfg.BridgeEndCapMM)
		bridges = append(bridges, pipeline.DoorBridge{
			DoorEntityID: a.DoorEntityID,
			Bridges:      []pipeline.Bridge{bridge},
		})
	}

	sort.Slice(bridges, func(i, j int) bool { return bridges[i].DoorEntityID < bridges[j].DoorEntityID })

	bundle.DoorBridge = &pipeline.DoorBridgeResult{Bridges: bridges}

	return pipeline.StageMetrics{
		Stage:  s.Name(),
		Counts: map[string]int{"bridges": len(bridges)},
	}, nil
}

// buildBridge projects door's world quad onto rect's longitudinal axis,
// extends the resulting interval by endCapMM on each side, and spans the
// full thickness of rect in the normal direction.
func buildBridge(door pipeline.Block, rect pipeline.TrimmedRectangle, endCapMM float64) pipeline.Bridge {
	a1 := rect.QuadCorners[0]
	u := bandDirection(rect)
	n := bandNormal(rect, u)
	length := rect.QuadCorners[1].Distance(a1)

	quad := door.WorldQuad()
	lo, hi := projectQuadOnto(doorAsRect(quad), a1, u)

	lo -= endCapMM
	hi += endCapMM
	if lo < 0 {
		lo = 0
	}
	if hi > length {
		hi = length
	}

	p1 := a1.Add(u.Scale(lo))
	p2 := a1.Add(u.Scale(hi))
	p3 := p2.Add(n.Scale(rect.Thickness))
	p4 := p1.Add(n.Scale(rect.Thickness))

	corners := [4]geometry.Point{p1, p2, p3, p4}

	return pipeline.Bridge{
		BridgeRectangle: geometry.BBoxFromPoints(corners[:]...),
		QuadCorners:     corners,
		Meta: map[string]any{
			"host_rectangle_source_pair_id": rect.SourcePairID,
			"longitudinal_lo_mm":            lo,
			"longitudinal_hi_mm":            hi,
		},
	}
}
