package stages

import (
	"context"

	"wallgeometry/internal/pipeline"
)

// LogicCStage removes any LOGIC_B rectangle whose corridor contains a third
// line's midpoint: the two segments making up the rectangle can't be
// opposite faces of one wall if a different line runs through the middle.
type LogicCStage struct{}

func (s *LogicCStage) Name() string { return "LOGIC_C" }

func (s *LogicCStage) Run(ctx context.Context, bundle *pipeline.Bundle, cfg pipeline.AlgorithmConfig) (pipeline.StageMetrics, error) {
	if bundle.LogicB == nil || bundle.ParallelNaive == nil {
		return pipeline.StageMetrics{}, pipeline.NewStageError(s.Name(), pipeline.KindInvalidInput, errMissingUpstream("LOGIC_B"))
	}

	pairByID := make(map[string]pipeline.CandidatePair, len(bundle.ParallelNaive.Pairs))
	for _, p := range bundle.ParallelNaive.Pairs {
		pairByID[p.PairID] = p
	}

	lines := make([]pipeline.Line, 0, len(bundle.ParallelNaive.FlatEntities))
	for _, e := range bundle.ParallelNaive.FlatEntities {
		if l, ok := e.(pipeline.Line); ok {
			lines = append(lines, l)
		}
	}

	kept := make([]pipeline.TrimmedRectangle, 0, len(bundle.LogicB.Rectangles))
	pruned := 0

	for _, rect := range bundle.LogicB.Rectangles {
		pair, ok := pairByID[rect.SourcePairID]
		if !ok {
			kept = append(kept, rect)
			continue
		}
		if corridorHasIntervening(rect, pair, lines) {
			pruned++
			continue
		}
		kept = append(kept, rect)
	}

	bundle.LogicC = &pipeline.LogicCResult{Rectangles: kept, PrunedCount: pruned}

	return pipeline.StageMetrics{
		Stage:  s.Name(),
		Counts: map[string]int{"kept": len(kept), "pruned": pruned},
	}, nil
}

// corridorHasIntervening reports whether any line other than the pair's own
// two sides has its midpoint strictly inside rect's corridor. Every
// candidate line is tested regardless of length: a short stub, tick mark,
// or furniture edge sitting inside the corridor must reject the rectangle
// exactly as a long one would.
func corridorHasIntervening(rect pipeline.TrimmedRectangle, pair pipeline.CandidatePair, lines []pipeline.Line) bool {
	quad := rect.Quad()
	bbox := rect.BBox()

	for _, l := range lines {
		if l.EntityID == pair.EntityAID || l.EntityID == pair.EntityBID {
			continue
		}
		if !l.BBox().Intersects(bbox) {
			continue
		}
		if quad.ContainsPoint(l.Segment.Midpoint()) {
			return true
		}
	}
	return false
}
