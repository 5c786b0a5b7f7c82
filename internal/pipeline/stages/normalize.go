package stages

import (
	"context"
	"math"

	"wallgeometry/internal/geometry"
	"wallgeometry/internal/pipeline"
)

// NormalizeStage snaps every coordinate to cfg.NormalizeEpsilon, explodes
// every Polyline into its constituent Line segments, normalizes block
// rotation into [0, 360) (door/window blocks additionally snapped to the
// nearest right angle), and drops anything degenerate after snapping. No
// Polyline entity survives into the downstream bundle.
type NormalizeStage struct{}

func (s *NormalizeStage) Name() string { return "NORMALIZE" }

func (s *NormalizeStage) Run(ctx context.Context, bundle *pipeline.Bundle, cfg pipeline.AlgorithmConfig) (pipeline.StageMetrics, error) {
	if bundle.Extract == nil {
		return pipeline.StageMetrics{}, pipeline.NewStageError(s.Name(), pipeline.KindInvalidInput, errMissingUpstream("EXTRACT"))
	}

	eps := cfg.NormalizeEpsilon
	dropped := 0
	explodedSegments := 0
	out := make([]pipeline.Entity, 0, len(bundle.Extract.Entities))

	for _, e := range bundle.Extract.Entities {
		switch v := e.(type) {
		case pipeline.Line:
			v.Segment.P1 = snapPoint(v.Segment.P1, eps)
			v.Segment.P2 = snapPoint(v.Segment.P2, eps)
			if v.Segment.Degenerate(eps) {
				dropped++
				continue
			}
			out = append(out, v)

		case pipeline.Polyline:
			verts := make([]geometry.Point, len(v.Vertices))
			for i, p := range v.Vertices {
				verts[i] = snapPoint(p, eps)
			}
			v.Vertices = verts
			for _, seg := range v.Segments() {
				if seg.Segment.Degenerate(eps) {
					dropped++
					continue
				}
				out = append(out, seg)
				explodedSegments++
			}

		case pipeline.Block:
			v.Position = snapPoint(v.Position, eps)
			v.RotationDeg = normalizeRotation(v.RotationDeg)
			out = append(out, v)

		default:
			dropped++
		}
	}

	doorWindowBlocks := make([]pipeline.Block, 0, len(bundle.Extract.DoorWindowBlocks))
	for _, b := range bundle.Extract.DoorWindowBlocks {
		b.Position = snapPoint(b.Position, eps)
		b.RotationDeg = snapDoorRotationTo90(b.RotationDeg)
		doorWindowBlocks = append(doorWindowBlocks, b)
	}

	bundle.Normalize = &pipeline.NormalizeResult{
		Entities:          out,
		DoorWindowBlocks:  doorWindowBlocks,
		DroppedCount:      dropped,
		ExplodedSegments:  explodedSegments,
		ValidationErrs:    map[string]int{"degenerate_geometry": dropped},
	}

	return pipeline.StageMetrics{
		Stage:  s.Name(),
		Counts: map[string]int{"kept": len(out), "dropped": dropped, "exploded_segments": explodedSegments},
	}, nil
}

func snap(v, eps float64) float64 {
	if eps == 0 {
		return v
	}
	return math.Round(v/eps) * eps
}

func snapPoint(p geometry.Point, eps float64) geometry.Point {
	return geometry.Point{X: snap(p.X, eps), Y: snap(p.Y, eps)}
}

// normalizeRotation folds deg into [0, 360).
func normalizeRotation(deg float64) float64 {
	r := math.Mod(deg, 360)
	if r < 0 {
		r += 360
	}
	return r
}

// snapDoorRotationTo90 is the door/window-specific rotation rule door
// assignment and the door bridge rely on for a clean world bbox: some
// exporters record Rotation in a 4000-units-per-circle convention rather
// than degrees, and the canvas viewer only ever draws doors axis-aligned,
// so the true angle is rescaled to degrees (when the magnitude reveals the
// 4000-unit convention) and then snapped to the nearest right angle.
// Ordinary (non-door) blocks keep their exact rotation via normalizeRotation
// above; only door/window blocks get this treatment.
func snapDoorRotationTo90(deg float64) float64 {
	if math.Abs(deg) > 360 && math.Abs(deg) <= 4000 {
		deg = deg * (360.0 / 4000.0)
	}
	deg = normalizeRotation(deg)
	snapped := math.Round(deg/90) * 90
	return normalizeRotation(snapped)
}
