package stages

import (
	"context"

	"wallgeometry/internal/geometry"
	"wallgeometry/internal/pipeline"
)

// LogicDStage drops any rectangle fully contained, within a small
// tolerance, inside a larger rectangle. When two rectangles mutually
// contain each other (near-duplicates), the larger-area one survives; ties
// go to the lexicographically lower source_pair_id.
type LogicDStage struct{}

func (s *LogicDStage) Name() string { return "LOGIC_D" }

func (s *LogicDStage) Run(ctx context.Context, bundle *pipeline.Bundle, cfg pipeline.AlgorithmConfig) (pipeline.StageMetrics, error) {
	if bundle.LogicC == nil {
		return pipeline.StageMetrics{}, pipeline.NewStageError(s.Name(), pipeline.KindInvalidInput, errMissingUpstream("LOGIC_C"))
	}

	rects := bundle.LogicC.Rectangles
	drop := make([]bool, len(rects))

	for i := 0; i < len(rects); i++ {
		for j := i + 1; j < len(rects); j++ {
			if drop[i] && drop[j] {
				continue
			}
			iInJ := allCornersInside(rects[i], rects[j], cfg.ContainmentToleranceMM)
			jInI := allCornersInside(rects[j], rects[i], cfg.ContainmentToleranceMM)

			switch {
			case iInJ && jInI:
				if containmentLoser(rects[i], rects[j]) {
					drop[i] = true
				} else {
					drop[j] = true
				}
			case iInJ:
				drop[i] = true
			case jInI:
				drop[j] = true
			}
		}
	}

	kept := make([]pipeline.TrimmedRectangle, 0, len(rects))
	pruned := 0
	for i, r := range rects {
		if drop[i] {
			pruned++
			continue
		}
		kept = append(kept, r)
	}

	bundle.LogicD = &pipeline.LogicDResult{Rectangles: kept, PrunedCount: pruned}

	return pipeline.StageMetrics{
		Stage:  s.Name(),
		Counts: map[string]int{"kept": len(kept), "pruned": pruned},
	}, nil
}

// containmentLoser reports whether a (not b) should be dropped when a and b
// mutually contain one another: the smaller-area rectangle loses, and ties
// go to the lexicographically higher source_pair_id.
func containmentLoser(a, b pipeline.TrimmedRectangle) bool {
	aArea, bArea := a.Area(), b.Area()
	if aArea != bArea {
		return aArea < bArea
	}
	return a.SourcePairID > b.SourcePairID
}

// allCornersInside reports whether every corner of inner lies inside
// outer's oriented rectangle, expanded by tol along both its longitudinal
// and normal axes.
func allCornersInside(inner, outer pipeline.TrimmedRectangle, tol float64) bool {
	a1, a2, _, b1 := outer.QuadCorners[0], outer.QuadCorners[1], outer.QuadCorners[2], outer.QuadCorners[3]
	length := a1.Distance(a2)
	if length == 0 {
		return false
	}
	u := a2.Sub(a1).Normalize()
	n := geometry.PerpVector(u)

	thicknessSigned := b1.Sub(a1).Dot(n)
	if thicknessSigned < 0 {
		n = geometry.Point{X: -n.X, Y: -n.Y}
		thicknessSigned = -thicknessSigned
	}

	for _, c := range inner.QuadCorners {
		rel := c.Sub(a1)
		lon := rel.Dot(u)
		norm := rel.Dot(n)
		if lon < -tol || lon > length+tol {
			return false
		}
		if norm < -tol || norm > thicknessSigned+tol {
			return false
		}
	}
	return true
}
