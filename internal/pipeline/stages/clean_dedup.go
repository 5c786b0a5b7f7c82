package stages

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"

	"wallgeometry/internal/geometry"
	"wallgeometry/internal/pipeline"
)

// CleanDedupStage removes exact duplicate entities (same content hash) and
// builds the canvas artifact: per-layer line lists, a deterministic
// per-layer color, and the drawing's overall bounds.
type CleanDedupStage struct{}

func (s *CleanDedupStage) Name() string { return "CLEAN_DEDUP" }

func (s *CleanDedupStage) Run(ctx context.Context, bundle *pipeline.Bundle, cfg pipeline.AlgorithmConfig) (pipeline.StageMetrics, error) {
	if bundle.Normalize == nil {
		return pipeline.StageMetrics{}, pipeline.NewStageError(s.Name(), pipeline.KindInvalidInput, errMissingUpstream("NORMALIZE"))
	}

	seen := map[pipeline.EntityID]bool{}
	kept := make([]pipeline.Entity, 0, len(bundle.Normalize.Entities))
	duplicates := 0

	for _, e := range bundle.Normalize.Entities {
		if seen[e.ID()] {
			duplicates++
			continue
		}
		seen[e.ID()] = true
		kept = append(kept, e)
	}

	doorSeen := map[pipeline.EntityID]bool{}
	doorKept := make([]pipeline.Block, 0, len(bundle.Normalize.DoorWindowBlocks))
	for _, b := range bundle.Normalize.DoorWindowBlocks {
		if doorSeen[b.ID()] {
			duplicates++
			continue
		}
		doorSeen[b.ID()] = true
		doorKept = append(doorKept, b)
	}

	bounds := geometry.EmptyBBox()
	canvasLayers := map[pipeline.LayerName]pipeline.CanvasLayer{}
	colors := map[pipeline.LayerName]string{}
	lineCount := 0

	for _, e := range kept {
		line, ok := e.(pipeline.Line)
		if !ok {
			continue
		}
		bounds = bounds.Union(line.BBox())
		lineCount++

		color, ok := colors[line.LayerName]
		if !ok {
			color = layerColor(line.LayerName)
			colors[line.LayerName] = color
		}
		cl := canvasLayers[line.LayerName]
		cl.Color = color
		cl.Visible = true
		cl.Lines = append(cl.Lines, pipeline.CanvasLine{
			ID:     line.EntityID,
			Start:  line.Segment.P1,
			End:    line.Segment.P2,
			Length: line.Segment.Length(),
		})
		canvasLayers[line.LayerName] = cl
	}

	for layer, cl := range canvasLayers {
		sort.Slice(cl.Lines, func(i, j int) bool { return cl.Lines[i].ID < cl.Lines[j].ID })
		canvasLayers[layer] = cl
	}

	bundle.CleanDedup = &pipeline.CleanDedupResult{
		Entities:          kept,
		DoorWindowBlocks:  doorKept,
		DuplicatesRemoved: duplicates,
		DrawingBounds:     bounds,
		LayerColors:       colors,
		CanvasLayers:      canvasLayers,
		Statistics: map[string]int{
			"lines":      lineCount,
			"layers":     len(canvasLayers),
			"duplicates": duplicates,
		},
	}

	return pipeline.StageMetrics{
		Stage:  s.Name(),
		Counts: map[string]int{"kept": len(kept), "duplicates_removed": duplicates},
	}, nil
}

// layerColor derives a stable "#rrggbb" color from a layer name via
// FNV-1a->HSL, so repeated runs (and runs over drawings with an arbitrary
// number of layers) color the same layer identically, without the
// collisions a fixed palette suffers past its length.
func layerColor(layer pipeline.LayerName) string {
	h := fnv.New32a()
	h.Write([]byte(layer))
	hue := float64(h.Sum32()%360)
	r, g, b := hslToRGB(hue, 0.55, 0.5)
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func hslToRGB(h, sat, light float64) (int, int, int) {
	c := (1 - math.Abs(2*light-1)) * sat
	hp := h / 60
	x := c * (1 - math.Abs(math.Mod(hp, 2)-1))
	m := light - c/2

	var r, g, b float64
	switch {
	case hp < 1:
		r, g, b = c, x, 0
	case hp < 2:
		r, g, b = x, c, 0
	case hp < 3:
		r, g, b = 0, c, x
	case hp < 4:
		r, g, b = 0, x, c
	case hp < 5:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return int(math.Round((r + m) * 255)), int(math.Round((g + m) * 255)), int(math.Round((b + m) * 255))
}
