package stages

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"wallgeometry/internal/geometry"
	"wallgeometry/internal/pipeline"
)

// LogicEStage clusters LOGIC_D rectangles into bands by rounding each
// rectangle's direction angle to a multiple of BandAngleToleranceDeg and its
// A-side normal offset to a multiple of BandNormalToleranceMM; two
// rectangles within those tolerances of each other can still round into
// neighbouring buckets, and are then not merged. It then walks each band
// longitudinally and merges
// neighbours that are within BandGapToleranceMM of each other and whose
// thickness matches within BandThicknessMatchToleranceMM.
type LogicEStage struct{}

func (s *LogicEStage) Name() string { return "LOGIC_E" }

type bandKey struct {
	angleBucket  int
	offsetBucket int
}

type bandMember struct {
	rect pipeline.TrimmedRectangle
	lo   float64
	hi   float64
}

func (s *LogicEStage) Run(ctx context.Context, bundle *pipeline.Bundle, cfg pipeline.AlgorithmConfig) (pipeline.StageMetrics, error) {
	if bundle.LogicD == nil {
		return pipeline.StageMetrics{}, pipeline.NewStageError(s.Name(), pipeline.KindInvalidInput, errMissingUpstream("LOGIC_D"))
	}

	bands := map[bandKey][]int{} // key -> indices into rects, insertion order
	var keys []bandKey
	rects := bundle.LogicD.Rectangles

	for i, r := range rects {
		k := bandKeyOf(r, cfg)
		if _, ok := bands[k]; !ok {
			keys = append(keys, k)
		}
		bands[k] = append(bands[k], i)
	}

	sort.Slice(keys, func(a, b int) bool {
		if keys[a].angleBucket != keys[b].angleBucket {
			return keys[a].angleBucket < keys[b].angleBucket
		}
		return keys[a].offsetBucket < keys[b].offsetBucket
	})

	var merged []pipeline.TrimmedRectangle
	mergedCount := 0

	for _, k := range keys {
		idxs := bands[k]
		seed := rects[idxs[0]]
		u := bandDirection(seed)
		n := bandNormal(seed, u)

		members := make([]bandMember, 0, len(idxs))
		for _, idx := range idxs {
			r := rects[idx]
			lo, hi := projectQuadOnto(r, seed.QuadCorners[0], u)
			members = append(members, bandMember{rect: r, lo: lo, hi: hi})
		}
		sort.Slice(members, func(a, b int) bool { return members[a].lo < members[b].lo })

		groups := mergeAdjacent(members, cfg.BandGapToleranceMM, cfg.BandThicknessMatchToleranceMM)
		for _, g := range groups {
			rect := buildMergedRectangle(g, seed.QuadCorners[0], u, n)
			if !rect.Finite() {
				return pipeline.StageMetrics{}, pipeline.NewStageError(s.Name(), pipeline.KindCorruptUpstream,
					fmt.Errorf("band merge of pair %s produced a non-finite rectangle", rect.SourcePairID))
			}
			merged = append(merged, rect)
			if len(g) > 1 {
				mergedCount += len(g) - 1
			}
		}
	}

	bundle.LogicE = &pipeline.LogicEResult{Rectangles: merged, MergedCount: mergedCount}

	return pipeline.StageMetrics{
		Stage:  s.Name(),
		Counts: map[string]int{"bands": len(keys), "rectangles": len(merged), "merged": mergedCount},
	}, nil
}

// bandDirection returns the rectangle's longitudinal unit direction,
// canonicalized to (-90, 90] degrees so antiparallel rectangles band
// together.
func bandDirection(r pipeline.TrimmedRectangle) geometry.Point {
	u := r.QuadCorners[1].Sub(r.QuadCorners[0]).Normalize()
	if u.X < 0 || (u.X == 0 && u.Y < 0) {
		u = geometry.Point{X: -u.X, Y: -u.Y}
	}
	return u
}

// bandNormal returns the unit normal pointing from segment A toward
// segment B, so the merged rectangle's thickness is measured consistently.
func bandNormal(r pipeline.TrimmedRectangle, u geometry.Point) geometry.Point {
	n := geometry.PerpVector(u)
	if r.QuadCorners[3].Sub(r.QuadCorners[0]).Dot(n) < 0 {
		n = geometry.Point{X: -n.X, Y: -n.Y}
	}
	return n
}

func bandKeyOf(r pipeline.TrimmedRectangle, cfg pipeline.AlgorithmConfig) bandKey {
	u := bandDirection(r)
	angleDeg := math.Atan2(u.Y, u.X) * 180 / math.Pi
	angleBucket := int(math.Round(angleDeg / cfg.BandAngleToleranceDeg))

	n := bandNormal(r, u)
	offset := r.QuadCorners[0].Dot(n)
	offsetBucket := int(math.Round(offset / cfg.BandNormalToleranceMM))

	return bandKey{angleBucket: angleBucket, offsetBucket: offsetBucket}
}

// projectQuadOnto returns the [lo, hi] longitudinal extent of r's four
// corners relative to origin, projected onto u.
func projectQuadOnto(r pipeline.TrimmedRectangle, origin geometry.Point, u geometry.Point) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, c := range r.QuadCorners {
		t := c.Sub(origin).Dot(u)
		lo = math.Min(lo, t)
		hi = math.Max(hi, t)
	}
	return lo, hi
}

// mergeAdjacent walks longitudinally-sorted members and groups runs where
// consecutive members are within gapTol of each other and their thickness
// matches within thicknessTol.
func mergeAdjacent(members []bandMember, gapTol, thicknessTol float64) [][]bandMember {
	var groups [][]bandMember
	if len(members) == 0 {
		return groups
	}

	current := []bandMember{members[0]}
	currentEnd := members[0].hi
	currentThickness := members[0].rect.Thickness

	for _, m := range members[1:] {
		if m.lo <= currentEnd+gapTol && math.Abs(m.rect.Thickness-currentThickness) <= thicknessTol {
			current = append(current, m)
			currentEnd = math.Max(currentEnd, m.hi)
			n := float64(len(current))
			currentThickness = (currentThickness*(n-1) + m.rect.Thickness) / n
			continue
		}
		groups = append(groups, current)
		current = []bandMember{m}
		currentEnd = m.hi
		currentThickness = m.rect.Thickness
	}
	groups = append(groups, current)
	return groups
}

// buildMergedRectangle reconstructs a single rectangle spanning every
// member's longitudinal extent, using the band's seed line and normal so
// the result's two sides remain trim-matched.
func buildMergedRectangle(group []bandMember, origin geometry.Point, u, n geometry.Point) pipeline.TrimmedRectangle {
	lo, hi := math.Inf(1), math.Inf(-1)
	var thicknessSum float64
	pairIDs := make([]string, 0, len(group))
	for _, m := range group {
		lo = math.Min(lo, m.lo)
		hi = math.Max(hi, m.hi)
		thicknessSum += m.rect.Thickness
		pairIDs = append(pairIDs, m.rect.SourcePairID)
	}
	thickness := thicknessSum / float64(len(group))
	sort.Strings(pairIDs)

	a1 := origin.Add(u.Scale(lo))
	a2 := origin.Add(u.Scale(hi))
	b1 := a1.Add(n.Scale(thickness))
	b2 := a2.Add(n.Scale(thickness))

	orientation := pipeline.OrientationHorizontal
	if math.Abs(u.Y) > math.Abs(u.X) {
		orientation = pipeline.OrientationVertical
	}

	rect := pipeline.TrimmedRectangle{
		SourcePairID: pairIDs[0],
		LayerName:    group[0].rect.LayerName,
		QuadCorners:  [4]geometry.Point{a1, a2, b2, b1},
		Orientation:  orientation,
		Thickness:    thickness,
	}
	if len(pairIDs) > 1 {
		rect.MergedFrom = pairIDs
		rect.SourcePairID = strings.Join(pairIDs, ",")
	}
	return rect
}
