package stages

import (
	"context"
	"math"
	"sort"

	"wallgeometry/internal/geometry"
	"wallgeometry/internal/pipeline"
)

// LogicFStage extends LOGIC_E rectangles at L-shaped corners: two
// perpendicular rectangles whose centre lines nearly meet get their near
// ends stretched to the same point, so a wall run that turns a corner closes
// cleanly instead of leaving a gap the size of the thinner wall's half
// thickness. Supplements the distilled spec with a feature present in the
// original worker but never wired into its own executed stage list.
type LogicFStage struct{}

func (s *LogicFStage) Name() string { return "LOGIC_F" }

// wallCenterline is a rectangle's long axis, expressed as the two endpoint
// midpoints between its trimmed sides plus the unit vectors needed to
// reconstruct either end after an extension.
type wallCenterline struct {
	c1, c2 geometry.Point // t=0 and t=L ends (A.p1/B.p1, A.p2/B.p2 midpoints)
	u      geometry.Point // unit direction c1 -> c2
	n      geometry.Point // unit normal; corners[0] (A) lies on the +n side
	length float64
}

func centerlineOf(rect pipeline.TrimmedRectangle) (wallCenterline, bool) {
	a1, a2, b2, b1 := rect.QuadCorners[0], rect.QuadCorners[1], rect.QuadCorners[2], rect.QuadCorners[3]
	c1 := geometry.Point{X: (a1.X + b1.X) / 2, Y: (a1.Y + b1.Y) / 2}
	c2 := geometry.Point{X: (a2.X + b2.X) / 2, Y: (a2.Y + b2.Y) / 2}
	u := c2.Sub(c1).Normalize()
	if u == (geometry.Point{}) {
		return wallCenterline{}, false
	}
	n := geometry.PerpVector(u)
	if a1.Sub(c1).Dot(n) < 0 {
		n = n.Scale(-1)
	}
	return wallCenterline{c1: c1, c2: c2, u: u, n: n, length: c1.Distance(c2)}, true
}

// ljunctionCandidate is one feasible H-V rectangle pairing, scored so the
// greedy acceptance pass below prefers the straightest, shortest, closest
// corner first.
type ljunctionCandidate struct {
	i, j               int
	point              geometry.Point
	extendC1I, extendC1J bool
	score              float64
}

func (s *LogicFStage) Run(ctx context.Context, bundle *pipeline.Bundle, cfg pipeline.AlgorithmConfig) (pipeline.StageMetrics, error) {
	if bundle.LogicE == nil {
		return pipeline.StageMetrics{}, pipeline.NewStageError(s.Name(), pipeline.KindInvalidInput, errMissingUpstream("LOGIC_E"))
	}

	input := bundle.LogicE.Rectangles
	if len(input) == 0 {
		bundle.LogicF = &pipeline.LogicFResult{Rectangles: nil}
		return pipeline.StageMetrics{Stage: s.Name(), Counts: map[string]int{"rectangles": 0}}, nil
	}

	centerlines := make([]wallCenterline, len(input))
	ok := make([]bool, len(input))
	for i, r := range input {
		centerlines[i], ok[i] = centerlineOf(r)
	}

	angleDotTol := math.Sin(cfg.LJunctionAngleToleranceDeg * math.Pi / 180)

	var candidates []ljunctionCandidate
	for i := range input {
		if !ok[i] {
			continue
		}
		for j := i + 1; j < len(input); j++ {
			if !ok[j] {
				continue
			}
			if input[i].Orientation == input[j].Orientation {
				continue
			}
			wi, wj := centerlines[i], centerlines[j]
			if math.Abs(wi.u.Dot(wj.u)) > angleDotTol {
				continue
			}
			point, found := infiniteLineIntersection(wi.c1, wi.u, wj.c1, wj.u)
			if !found {
				continue
			}
			if distancePointToBBox(point, input[i].BBox()) > cfg.LJunctionMaxJunctionDistanceMM ||
				distancePointToBBox(point, input[j].BBox()) > cfg.LJunctionMaxJunctionDistanceMM {
				continue
			}

			extendC1I, extI, okI := extensionFeasibility(wi, point, cfg.LJunctionMaxExtensionMM)
			extendC1J, extJ, okJ := extensionFeasibility(wj, point, cfg.LJunctionMaxExtensionMM)
			if !okI || !okJ {
				continue
			}

			adot := math.Min(1, math.Max(-1, math.Abs(wi.u.Dot(wj.u))))
			angularErr := math.Abs(math.Acos(adot)*180/math.Pi - 90)
			distI := distancePointToBBox(point, input[i].BBox())
			distJ := distancePointToBBox(point, input[j].BBox())

			candidates = append(candidates, ljunctionCandidate{
				i: i, j: j, point: point,
				extendC1I: extendC1I, extendC1J: extendC1J,
				score: angularErr + extI + extJ + distI + distJ,
			})
		}
	}

	sort.SliceStable(candidates, func(a, b int) bool { return candidates[a].score < candidates[b].score })

	locked := make(map[int]bool, len(input))
	output := make([]pipeline.TrimmedRectangle, len(input))
	copy(output, input)
	extended := 0

	for _, c := range candidates {
		if locked[c.i] || locked[c.j] {
			continue
		}
		locked[c.i] = true
		locked[c.j] = true

		applyExtension(&output[c.i], centerlines[c.i], c.extendC1I, c.point)
		applyExtension(&output[c.j], centerlines[c.j], c.extendC1J, c.point)
		extended += 2
	}

	for _, r := range output {
		if !r.Finite() {
			return pipeline.StageMetrics{}, pipeline.NewStageError(s.Name(), pipeline.KindCorruptUpstream, nil)
		}
	}

	bundle.LogicF = &pipeline.LogicFResult{
		Rectangles:     output,
		CandidateCount: len(candidates),
		AcceptedPairs:  len(locked) / 2,
		ExtendedCount:  extended,
	}

	return pipeline.StageMetrics{
		Stage: s.Name(),
		Counts: map[string]int{
			"rectangles": len(output),
			"candidates": len(candidates),
			"accepted":   len(locked) / 2,
			"extended":   extended,
		},
	}, nil
}

// extensionFeasibility reports which end of w is nearer to point along its
// own centre line, the distance that end would have to move, and whether
// that distance is within maxExtension.
func extensionFeasibility(w wallCenterline, point geometry.Point, maxExtension float64) (extendC1 bool, extLen float64, ok bool) {
	t := point.Sub(w.c1).Dot(w.u)
	extToC1 := math.Abs(t)
	extToC2 := math.Abs(t - w.length)
	if extToC1 <= extToC2 {
		extendC1, extLen = true, extToC1
	} else {
		extendC1, extLen = false, extToC2
	}
	return extendC1, extLen, extLen <= maxExtension
}

// applyExtension stretches rect's near end (c1 or c2, per extendC1) so its
// centre line reaches point, keeping both trimmed sides parallel and
// preserving the rectangle's thickness.
func applyExtension(rect *pipeline.TrimmedRectangle, w wallCenterline, extendC1 bool, point geometry.Point) {
	t := point.Sub(w.c1).Dot(w.u)
	newCenter := w.c1.Add(w.u.Scale(t))
	half := rect.Thickness / 2
	aEnd := newCenter.Add(w.n.Scale(half))
	bEnd := newCenter.Sub(w.n.Scale(half))

	jp := newCenter
	rect.Extended = true
	rect.JunctionType = "L"
	rect.JunctionPoint = &jp

	if extendC1 {
		rect.QuadCorners[0] = aEnd
		rect.QuadCorners[3] = bEnd
	} else {
		rect.QuadCorners[1] = aEnd
		rect.QuadCorners[2] = bEnd
	}
}

// infiniteLineIntersection returns the intersection of the infinite lines
// through (p1, u1) and (p2, u2), or false if they're parallel.
func infiniteLineIntersection(p1, u1, p2, u2 geometry.Point) (geometry.Point, bool) {
	denom := u1.Cross(u2)
	if math.Abs(denom) < 1e-12 {
		return geometry.Point{}, false
	}
	t := p2.Sub(p1).Cross(u2) / denom
	return p1.Add(u1.Scale(t)), true
}

// distancePointToBBox returns the shortest distance from p to bbox, zero if
// p lies inside it.
func distancePointToBBox(p geometry.Point, bbox geometry.BBox) float64 {
	dx := math.Max(0, math.Max(bbox.MinX-p.X, p.X-bbox.MaxX))
	dy := math.Max(0, math.Max(bbox.MinY-p.Y, p.Y-bbox.MaxY))
	return math.Sqrt(dx*dx + dy*dy)
}
