package pipeline

import "wallgeometry/internal/geometry"

// EntityID is the content-hash identifier assigned to every entity during
// EXTRACT (a segment exploded from a polyline gets its own in NORMALIZE).
// It never changes once assigned, so every stage can cite it in
// CandidatePair, TrimmedRectangle and the artifacts without re-deriving it.
type EntityID string

// LayerName is a CAD layer name as it appeared in the source document.
type LayerName string

// EntityKind distinguishes the three entity variants a layer can contain.
type EntityKind string

const (
	KindLine     EntityKind = "LINE"
	KindPolyline EntityKind = "POLYLINE"
	KindBlock    EntityKind = "BLOCK"
)

// Entity is implemented by Line, Polyline and Block. Stage code dispatches
// on Kind() or on a type assertion to the concrete variant; the compiler
// does not check either for exhaustiveness, so a new entity variant is not
// flagged where it isn't handled.
type Entity interface {
	ID() EntityID
	Layer() LayerName
	Kind() EntityKind
	BBox() geometry.BBox
}

// Line is a single straight segment on a layer.
type Line struct {
	EntityID  EntityID         `json:"id"`
	LayerName LayerName        `json:"layer"`
	Segment   geometry.Segment `json:"segment"`
}

func (l Line) ID() EntityID          { return l.EntityID }
func (l Line) Layer() LayerName      { return l.LayerName }
func (l Line) Kind() EntityKind      { return KindLine }
func (l Line) BBox() geometry.BBox {
	return geometry.BBoxFromPoints(l.Segment.P1, l.Segment.P2)
}

// Polyline is an ordered chain of vertices on a layer. NORMALIZE and later
// stages that need line-like segments call Segments() to flatten it.
type Polyline struct {
	EntityID  EntityID          `json:"id"`
	LayerName LayerName         `json:"layer"`
	Vertices  []geometry.Point  `json:"vertices"`
	Closed    bool              `json:"closed"`
}

func (p Polyline) ID() EntityID     { return p.EntityID }
func (p Polyline) Layer() LayerName { return p.LayerName }
func (p Polyline) Kind() EntityKind { return KindPolyline }
func (p Polyline) BBox() geometry.BBox {
	return geometry.BBoxFromPoints(p.Vertices...)
}

// Segments flattens the polyline into its constituent line segments. Each
// segment's id is the same content hash a directly-drawn LINE with
// identical (layer, geometry) would get, not a derived "{polylineID}_seg_{i}"
// suffix: two entities with identical (layer, entity_type, canonical
// geometry) must share an id regardless of which entity type produced them,
// so CLEAN_DEDUP can recognize a polyline-exploded segment as a duplicate of
// an overlapping directly-drawn line.
func (p Polyline) Segments() []Line {
	n := len(p.Vertices)
	if n < 2 {
		return nil
	}
	segCount := n - 1
	if p.Closed {
		segCount = n
	}
	out := make([]Line, 0, segCount)
	for i := 0; i < segCount; i++ {
		j := (i + 1) % n
		seg := geometry.Segment{P1: p.Vertices[i], P2: p.Vertices[j]}
		id := EntityID(geometry.ContentHash(string(p.LayerName), "LINE", geometry.CanonicalSegmentEndpoints(seg)))
		out = append(out, Line{
			EntityID:  id,
			LayerName: p.LayerName,
			Segment:   seg,
		})
	}
	return out
}

// Block is a placed instance (door, window, fixture, ...) with a local
// footprint bbox, a world position and a rotation in degrees.
type Block struct {
	EntityID     EntityID        `json:"id"`
	LayerName    LayerName       `json:"layer"`
	BlockName    string          `json:"block_name"`
	Position     geometry.Point  `json:"position"`
	RotationDeg  float64         `json:"rotation_deg"`
	LocalBBox    geometry.BBox   `json:"local_bbox"`
}

func (b Block) ID() EntityID     { return b.EntityID }
func (b Block) Layer() LayerName { return b.LayerName }
func (b Block) Kind() EntityKind { return KindBlock }

// BBox returns the block's world-space bounding box after rotating its local
// footprint about its own center and translating to Position.
func (b Block) BBox() geometry.BBox {
	return b.WorldQuad().BBox()
}

// WorldQuad rotates the block's local bbox corners about the bbox center by
// RotationDeg and translates the result by Position, producing the oriented
// quad the door stages test for intersection and containment.
func (b Block) WorldQuad() geometry.Quad {
	local := b.LocalBBox
	center := local.Center()
	corners := [4]geometry.Point{
		{X: local.MinX, Y: local.MinY},
		{X: local.MaxX, Y: local.MinY},
		{X: local.MaxX, Y: local.MaxY},
		{X: local.MinX, Y: local.MaxY},
	}
	theta := b.RotationDeg * degToRad
	cosT, sinT := cos(theta), sin(theta)
	for i, c := range corners {
		dx, dy := c.X-center.X, c.Y-center.Y
		rx := dx*cosT - dy*sinT
		ry := dx*sinT + dy*cosT
		corners[i] = geometry.Point{
			X: b.Position.X + center.X + rx,
			Y: b.Position.Y + center.Y + ry,
		}
	}
	return geometry.OrderedByAngle(corners)
}

const degToRad = 3.14159265358979323846 / 180
