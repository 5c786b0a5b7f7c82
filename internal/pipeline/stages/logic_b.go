package stages

import (
	"context"
	"fmt"
	"math"

	"wallgeometry/internal/geometry"
	"wallgeometry/internal/pipeline"
)

// LogicBStage trims each candidate pair to its shared longitudinal overlap
// and renders the result as an oriented rectangle whose two long sides are
// trim-matched: they share the same longitudinal extent.
type LogicBStage struct{}

func (s *LogicBStage) Name() string { return "LOGIC_B" }

func (s *LogicBStage) Run(ctx context.Context, bundle *pipeline.Bundle, cfg pipeline.AlgorithmConfig) (pipeline.StageMetrics, error) {
	if bundle.ParallelNaive == nil {
		return pipeline.StageMetrics{}, pipeline.NewStageError(s.Name(), pipeline.KindInvalidInput, errMissingUpstream("PARALLEL_NAIVE"))
	}

	lineByID := indexLinesByID(bundle.ParallelNaive.FlatEntities)

	rects := make([]pipeline.TrimmedRectangle, 0, len(bundle.ParallelNaive.Pairs))
	for _, pair := range bundle.ParallelNaive.Pairs {
		li, okA := lineByID[pair.EntityAID]
		lj, okB := lineByID[pair.EntityBID]
		if !okA || !okB {
			return pipeline.StageMetrics{}, pipeline.NewStageError(s.Name(), pipeline.KindCorruptUpstream,
				errMissingUpstream("PARALLEL_NAIVE entity lookup"))
		}

		rect, ok := trimToOverlap(li, lj, pair)
		if !ok {
			continue
		}
		if !rect.Finite() {
			return pipeline.StageMetrics{}, pipeline.NewStageError(s.Name(), pipeline.KindCorruptUpstream,
				fmt.Errorf("pair %s trimmed to a non-finite rectangle", pair.PairID))
		}
		rects = append(rects, rect)
	}

	bundle.LogicB = &pipeline.LogicBResult{Rectangles: rects}

	return pipeline.StageMetrics{
		Stage:  s.Name(),
		Counts: map[string]int{"rectangles": len(rects)},
	}, nil
}

func indexLinesByID(entities []pipeline.Entity) map[pipeline.EntityID]pipeline.Line {
	out := make(map[pipeline.EntityID]pipeline.Line, len(entities))
	for _, e := range entities {
		if l, ok := e.(pipeline.Line); ok {
			out[l.EntityID] = l
		}
	}
	return out
}

// trimToOverlap projects both lines onto li's direction and trims each to
// the interval the two share. Because the trimmed endpoint is reconstructed
// as P1 + u*(t - P1.dot(u)) for each line independently, the result does
// not depend on which endpoint order each line was stored in: flipping an
// antiparallel line's winding is unnecessary under this parametrization.
func trimToOverlap(li, lj pipeline.Line, pair pipeline.CandidatePair) (pipeline.TrimmedRectangle, bool) {
	u := li.Segment.UnitDirection()

	ai, bi := project(li.Segment, u)
	aj, bj := project(lj.Segment, u)
	tLo := math.Max(ai, aj)
	tHi := math.Min(bi, bj)
	if tHi <= tLo {
		return pipeline.TrimmedRectangle{}, false
	}

	pointAt := func(base geometry.Point, t float64) geometry.Point {
		return base.Add(u.Scale(t - base.Dot(u)))
	}

	a1 := pointAt(li.Segment.P1, tLo)
	a2 := pointAt(li.Segment.P1, tHi)
	b1 := pointAt(lj.Segment.P1, tLo)
	b2 := pointAt(lj.Segment.P1, tHi)

	orientation := pipeline.OrientationHorizontal
	if math.Abs(u.Y) > math.Abs(u.X) {
		orientation = pipeline.OrientationVertical
	}

	return pipeline.TrimmedRectangle{
		SourcePairID: pair.PairID,
		LayerName:    li.LayerName,
		QuadCorners:  [4]geometry.Point{a1, a2, b2, b1},
		Orientation:  orientation,
		Thickness:    pair.PerpendicularDist,
	}, true
}
