package pipeline

import "wallgeometry/internal/geometry"

// CandidatePair is the PARALLEL_NAIVE detector's output: two line-like
// entities judged parallel, within distance range, and overlapping enough
// longitudinally to be opposite faces of one wall.
type CandidatePair struct {
	PairID             string         `json:"pair_id"` // deterministic UUIDv5
	EntityAID          EntityID       `json:"entity_a_id"`
	EntityBID          EntityID       `json:"entity_b_id"`
	LayerName          LayerName      `json:"layer"`
	PerpendicularDist  float64        `json:"perpendicular_distance_mm"`
	AngleDeg           float64        `json:"angle_deg"`
	OverlapPercentage  float64        `json:"overlap_percentage"`
	AverageLength      float64        `json:"average_length"`
	BoundingRectangle  geometry.BBox  `json:"bounding_rectangle"`
}

// Finite reports whether every numeric field the detector computed is
// finite. A pair that fails this check did not come from a valid geometric
// relationship and must be treated as CORRUPT_UPSTREAM rather than a
// silently-accepted candidate.
func (p CandidatePair) Finite() bool {
	return geometry.FiniteFloat(p.PerpendicularDist) &&
		geometry.FiniteFloat(p.AngleDeg) &&
		geometry.FiniteFloat(p.OverlapPercentage) &&
		geometry.FiniteFloat(p.AverageLength) &&
		geometry.FiniteFloat(p.BoundingRectangle.MinX) && geometry.FiniteFloat(p.BoundingRectangle.MinY) &&
		geometry.FiniteFloat(p.BoundingRectangle.MaxX) && geometry.FiniteFloat(p.BoundingRectangle.MaxY)
}

// TrimmedRectangle is the oriented wall rectangle derived from a
// CandidatePair (or, after LOGIC_E, from a merged run of them) once its two
// source segments are trimmed to their shared longitudinal overlap.
type TrimmedRectangle struct {
	SourcePairID string          `json:"source_pair_id"`
	LayerName    LayerName       `json:"layer"`
	QuadCorners  [4]geometry.Point `json:"quad_corners"`
	Orientation  Orientation     `json:"orientation"`
	Thickness    float64         `json:"thickness_mm"`
	// MergedFrom lists the source_pair_ids absorbed into this rectangle by
	// LOGIC_E's band merge; empty for a rectangle that was never merged.
	MergedFrom []string `json:"merged_from,omitempty"`

	// Extended, JunctionType and JunctionPoint are set by LOGIC_F when this
	// rectangle's near end was stretched to close an L-shaped corner against
	// a perpendicular neighbour. JunctionPoint is nil unless Extended is true.
	Extended     bool            `json:"extended"`
	JunctionType string          `json:"junction_type,omitempty"`
	JunctionPoint *geometry.Point `json:"junction_point,omitempty"`
}

// Orientation classifies a trimmed rectangle as running mostly along the X
// axis or mostly along the Y axis (set by LOGIC_B and LOGIC_E); LOGIC_F pairs
// only rectangles of opposite orientation. The same type carries door
// assignment's ALONG_A / ALONG_B result.
type Orientation string

const (
	OrientationHorizontal Orientation = "H"
	OrientationVertical   Orientation = "V"

	// Door/window orientations, relative to the host wall rectangle's two
	// trimmed sides rather than the world X/Y axes.
	OrientationAlongA Orientation = "ALONG_A"
	OrientationAlongB Orientation = "ALONG_B"
)

// Quad returns the rectangle's corners as an orderable geometry.Quad.
func (r TrimmedRectangle) Quad() geometry.Quad {
	return geometry.Quad{Corners: r.QuadCorners}
}

// BBox returns the rectangle's axis-aligned bounding box.
func (r TrimmedRectangle) BBox() geometry.BBox {
	return geometry.BBoxFromPoints(r.QuadCorners[:]...)
}

// Area returns the rectangle's area.
func (r TrimmedRectangle) Area() float64 {
	return r.Quad().Area()
}

// Finite reports whether every corner and the thickness are finite. Any
// stage that builds a TrimmedRectangle from arithmetic (trimming, merging,
// extension) must check this before handing the rectangle downstream.
func (r TrimmedRectangle) Finite() bool {
	if !geometry.FiniteFloat(r.Thickness) {
		return false
	}
	for _, c := range r.QuadCorners {
		if !c.Finite() {
			return false
		}
	}
	return true
}

// DoorAssignment binds a door/window block to the single wall rectangle it
// sits in, within DoorSnapToleranceMM, chosen by nearest centroid distance.
type DoorAssignment struct {
	DoorEntityID    EntityID    `json:"door_entity_id"`
	RectangleIndex  int         `json:"rectangle_index"`
	DistanceMM      float64     `json:"distance_mm"`
	Orientation     Orientation `json:"orientation"` // ALONG_A / ALONG_B in rectangle-local terms, reused as H/V
}

// Bridge is a single opening-spanning rectangle, extended past the door's
// own footprint by BridgeEndCapMM on each side along the wall's direction
// and covering the wall's full thickness in the normal direction.
type Bridge struct {
	BridgeRectangle geometry.BBox     `json:"bridge_rectangle"`
	QuadCorners     [4]geometry.Point `json:"quad_corners"`
	Meta            map[string]any    `json:"meta,omitempty"`
}

// DoorBridge is one door's set of bridge rectangles (ordinarily exactly
// one, per spec section 4.12).
type DoorBridge struct {
	DoorEntityID EntityID `json:"door_id"`
	Bridges      []Bridge `json:"bridges"`
}
