// Package stages implements the pipeline's ordered stage list.
package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"wallgeometry/internal/geometry"
	"wallgeometry/internal/pipeline"
)

// DrawingDocument is the external JSON input document shape: a map of layer
// name to the entities found on it, per spec section 6.
type DrawingDocument struct {
	Layers map[string]DrawingLayer `json:"layers"`
}

// DrawingLayer is one layer's raw entities as they appear in the source
// document, before EXTRACT assigns content-hash ids.
type DrawingLayer struct {
	Entities []json.RawMessage `json:"entities"`
}

// wirePointLower is the {x,y,z?} shape LINE/POLYLINE entities use.
type wirePointLower struct {
	X float64  `json:"x"`
	Y float64  `json:"y"`
	Z *float64 `json:"z,omitempty"`
}

// wirePointUpper is the {X,Y,Z?} shape BLOCK position/bbox corners use. CAD
// exporters disagree on case between the line-ish entities and block
// metadata; the wire shape preserves that rather than normalizing it away.
type wirePointUpper struct {
	X float64  `json:"X"`
	Y float64  `json:"Y"`
	Z *float64 `json:"Z,omitempty"`
}

type wireBBox struct {
	MinPoint wirePointUpper `json:"MinPoint"`
	MaxPoint wirePointUpper `json:"MaxPoint"`
}

// drawingEntityEnvelope is decoded first to read Type, then the matching
// typed payload is decoded from the same raw bytes.
type drawingEntityEnvelope struct {
	Type string `json:"type"`
}

type lineWire struct {
	Start *wirePointLower `json:"start"`
	End   *wirePointLower `json:"end"`
}

type polylineWire struct {
	Vertices []wirePointLower `json:"vertices"`
	Closed   bool             `json:"closed"`
}

type blockWire struct {
	Name        string    `json:"name"`
	Position    *wirePointUpper `json:"position"`
	Rotation    *float64  `json:"Rotation"`
	BoundingBox *wireBBox `json:"BoundingBox"`
}

// ParseDrawingDocument decodes the JSON input document from r.
func ParseDrawingDocument(r io.Reader) (*DrawingDocument, error) {
	var doc DrawingDocument
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ExtractStage reads a DrawingDocument restricted to Layers and assigns
// each entity a content-hash EntityID. An empty Layers set is INVALID_INPUT
// per spec, not "select everything" — callers must name the layers they
// want. Door/window blocks are collected separately by a case-insensitive
// substring match of cfg.DoorWindowLayerPatterns against every layer name
// in the document, independent of which layers were selected for wall
// detection.
type ExtractStage struct {
	Document *DrawingDocument
	Layers   []string
}

func (s *ExtractStage) Name() string { return "EXTRACT" }

func (s *ExtractStage) Run(ctx context.Context, bundle *pipeline.Bundle, cfg pipeline.AlgorithmConfig) (pipeline.StageMetrics, error) {
	if s.Document == nil {
		return pipeline.StageMetrics{}, pipeline.NewStageError(s.Name(), pipeline.KindInvalidInput, fmt.Errorf("no drawing document provided"))
	}
	if len(s.Layers) == 0 {
		return pipeline.StageMetrics{}, pipeline.NewStageError(s.Name(), pipeline.KindInvalidInput, fmt.Errorf("selected-layer set is empty"))
	}

	wanted := map[string]bool{}
	for _, l := range s.Layers {
		wanted[l] = true
	}

	layerNames := make([]string, 0, len(s.Document.Layers))
	for name := range s.Document.Layers {
		layerNames = append(layerNames, name)
	}
	sort.Strings(layerNames)

	var entities []pipeline.Entity
	var doorWindowBlocks []pipeline.Block
	stats := map[pipeline.LayerName]pipeline.LayerStats{}
	total := 0
	unknownTypeCount := 0
	missingFieldCount := 0

	for _, layerName := range layerNames {
		layer := s.Document.Layers[layerName]
		ln := pipeline.LayerName(layerName)
		isDoorWindowLayer := matchesAnyPattern(layerName, cfg.DoorWindowLayerPatterns)
		selected := wanted[layerName]
		if !selected && !isDoorWindowLayer {
			continue
		}

		st := pipeline.LayerStats{}
		for _, raw := range layer.Entities {
			entity, err := toEntity(ln, raw)
			if err != nil {
				missingFieldCount++
				continue
			}
			if entity == nil {
				unknownTypeCount++
				continue
			}

			if selected {
				entities = append(entities, entity)
				total++
				switch entity.Kind() {
				case pipeline.KindLine:
					st.LinesCount++
				case pipeline.KindPolyline:
					st.PolylinesCount++
				case pipeline.KindBlock:
					st.BlocksCount++
				}
			}
			if isDoorWindowLayer {
				if b, ok := entity.(pipeline.Block); ok {
					doorWindowBlocks = append(doorWindowBlocks, b)
				}
			}
		}
		if selected {
			stats[ln] = st
		}
	}

	if total > cfg.MaxEntities {
		return pipeline.StageMetrics{}, pipeline.NewStageError(s.Name(), pipeline.KindOversizedInput,
			fmt.Errorf("entity count %d exceeds max %d", total, cfg.MaxEntities))
	}

	bundle.Extract = &pipeline.ExtractResult{
		Entities:         entities,
		DoorWindowBlocks: doorWindowBlocks,
		LayerStats:       stats,
	}

	return pipeline.StageMetrics{
		Stage: s.Name(),
		Counts: map[string]int{
			"entities":           total,
			"layers":             len(stats),
			"door_window_blocks": len(doorWindowBlocks),
			"unknown_type":       unknownTypeCount,
			"missing_fields":     missingFieldCount,
		},
	}, nil
}

func matchesAnyPattern(layerName string, patterns []string) bool {
	lower := strings.ToLower(layerName)
	for _, p := range patterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// toEntity decodes one raw entity. A nil, nil return means the entity type
// is unknown and should be dropped with a counter increment, never an
// error; a non-nil error means a required field was missing and the entity
// should likewise be dropped and counted, not raised.
func toEntity(layer pipeline.LayerName, raw json.RawMessage) (pipeline.Entity, error) {
	var env drawingEntityEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed entity on layer %s: %w", layer, err)
	}

	switch env.Type {
	case "LINE":
		var w lineWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		if w.Start == nil || w.End == nil {
			return nil, fmt.Errorf("line entity missing start/end on layer %s", layer)
		}
		seg := geometry.Segment{
			P1: geometry.Point{X: w.Start.X, Y: w.Start.Y},
			P2: geometry.Point{X: w.End.X, Y: w.End.Y},
		}
		id := pipeline.EntityID(geometry.ContentHash(string(layer), "LINE", geometry.CanonicalSegmentEndpoints(seg)))
		return pipeline.Line{EntityID: id, LayerName: layer, Segment: seg}, nil

	case "POLYLINE":
		var w polylineWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		if len(w.Vertices) < 2 {
			return nil, fmt.Errorf("polyline entity needs at least 2 vertices on layer %s", layer)
		}
		verts := make([]geometry.Point, len(w.Vertices))
		for i, v := range w.Vertices {
			verts[i] = geometry.Point{X: v.X, Y: v.Y}
		}
		id := pipeline.EntityID(geometry.ContentHash(string(layer), "POLYLINE", canonicalVertices(verts), boolStr(w.Closed)))
		return pipeline.Polyline{EntityID: id, LayerName: layer, Vertices: verts, Closed: w.Closed}, nil

	case "BLOCK":
		var w blockWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		if w.Position == nil || w.BoundingBox == nil {
			return nil, fmt.Errorf("block entity missing position/BoundingBox on layer %s", layer)
		}
		pos := geometry.Point{X: w.Position.X, Y: w.Position.Y}
		rotation := 0.0
		if w.Rotation != nil {
			rotation = *w.Rotation
		}
		localBBox := geometry.BBox{
			MinX: w.BoundingBox.MinPoint.X, MinY: w.BoundingBox.MinPoint.Y,
			MaxX: w.BoundingBox.MaxPoint.X, MaxY: w.BoundingBox.MaxPoint.Y,
		}
		id := pipeline.EntityID(geometry.ContentHash(string(layer), "BLOCK", w.Name, geometry.CanonicalPoint(pos), geometry.CanonicalCoord(rotation)))
		return pipeline.Block{
			EntityID:    id,
			LayerName:   layer,
			BlockName:   w.Name,
			Position:    pos,
			RotationDeg: rotation,
			LocalBBox:   localBBox,
		}, nil

	default:
		return nil, nil
	}
}

func canonicalVertices(pts []geometry.Point) string {
	out := ""
	for i, p := range pts {
		if i > 0 {
			out += ";"
		}
		out += geometry.CanonicalPoint(p)
	}
	return out
}

func boolStr(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
