// Package geometry holds the 2D primitives the pipeline stages operate on.
package geometry

import "math"

// FiniteFloat reports whether v is neither NaN nor +/-Inf. The wall-candidate
// detector (PARALLEL_NAIVE) and the rectangle-building stages LOGIC_B,
// LOGIC_E and LOGIC_F check their outputs with it and fail with
// CORRUPT_UPSTREAM on a non-finite value; the door assignment and door
// bridge stages do not check the distances and corners they derive.
func FiniteFloat(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Point is a 2D point in drawing units (millimetres).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns p - other.
func (p Point) Sub(other Point) Point {
	return Point{X: p.X - other.X, Y: p.Y - other.Y}
}

// Add returns p + other.
func (p Point) Add(other Point) Point {
	return Point{X: p.X + other.X, Y: p.Y + other.Y}
}

// Scale returns p scaled by k.
func (p Point) Scale(k float64) Point {
	return Point{X: p.X * k, Y: p.Y * k}
}

// Dot returns the dot product of p and other treated as vectors.
func (p Point) Dot(other Point) float64 {
	return p.X*other.X + p.Y*other.Y
}

// Cross returns the 2D cross product (scalar) of p and other.
func (p Point) Cross(other Point) float64 {
	return p.X*other.Y - p.Y*other.X
}

// Length returns the Euclidean norm of p treated as a vector.
func (p Point) Length() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y)
}

// Distance returns the Euclidean distance between p and other.
func (p Point) Distance(other Point) float64 {
	return p.Sub(other).Length()
}

// Finite reports whether both of p's coordinates are finite (neither NaN
// nor +/-Inf).
func (p Point) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// Normalize returns p scaled to unit length. Returns the zero vector for a
// zero-length input rather than dividing by zero.
func (p Point) Normalize() Point {
	l := p.Length()
	if l == 0 {
		return Point{}
	}
	return Point{X: p.X / l, Y: p.Y / l}
}

// Segment is a directed line segment between two endpoints.
type Segment struct {
	P1 Point `json:"p1"`
	P2 Point `json:"p2"`
}

// Vector returns the direction vector from P1 to P2.
func (s Segment) Vector() Point {
	return s.P2.Sub(s.P1)
}

// Length returns the segment's length.
func (s Segment) Length() float64 {
	return s.P1.Distance(s.P2)
}

// Degenerate reports whether the segment's length is at or below tol.
func (s Segment) Degenerate(tol float64) bool {
	return s.Length() <= tol
}

// Midpoint returns the segment's midpoint.
func (s Segment) Midpoint() Point {
	return Point{X: (s.P1.X + s.P2.X) / 2, Y: (s.P1.Y + s.P2.Y) / 2}
}

// UnitDirection returns the normalized direction vector from P1 to P2.
func (s Segment) UnitDirection() Point {
	return s.Vector().Normalize()
}

// BBox is an axis-aligned bounding box.
type BBox struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// EmptyBBox returns a bbox that Union'd with anything yields the other box.
func EmptyBBox() BBox {
	return BBox{
		MinX: math.Inf(1), MinY: math.Inf(1),
		MaxX: math.Inf(-1), MaxY: math.Inf(-1),
	}
}

// BBoxFromPoints returns the tightest bbox enclosing pts. Returns
// EmptyBBox() for an empty slice.
func BBoxFromPoints(pts ...Point) BBox {
	b := EmptyBBox()
	for _, p := range pts {
		b = b.ExpandPoint(p)
	}
	return b
}

// ExpandPoint grows b to include p.
func (b BBox) ExpandPoint(p Point) BBox {
	return BBox{
		MinX: math.Min(b.MinX, p.X),
		MinY: math.Min(b.MinY, p.Y),
		MaxX: math.Max(b.MaxX, p.X),
		MaxY: math.Max(b.MaxY, p.Y),
	}
}

// Union returns the smallest bbox enclosing both b and other.
func (b BBox) Union(other BBox) BBox {
	return BBox{
		MinX: math.Min(b.MinX, other.MinX),
		MinY: math.Min(b.MinY, other.MinY),
		MaxX: math.Max(b.MaxX, other.MaxX),
		MaxY: math.Max(b.MaxY, other.MaxY),
	}
}

// Width returns the bbox width.
func (b BBox) Width() float64 { return b.MaxX - b.MinX }

// Height returns the bbox height.
func (b BBox) Height() float64 { return b.MaxY - b.MinY }

// ContainsPoint reports whether p lies within b, inclusive of the boundary.
func (b BBox) ContainsPoint(p Point) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

// Intersects reports whether b and other overlap, inclusive of touching edges.
func (b BBox) Intersects(other BBox) bool {
	return b.MinX <= other.MaxX && b.MaxX >= other.MinX &&
		b.MinY <= other.MaxY && b.MaxY >= other.MinY
}

// Expand grows b by margin on all sides.
func (b BBox) Expand(margin float64) BBox {
	return BBox{
		MinX: b.MinX - margin, MinY: b.MinY - margin,
		MaxX: b.MaxX + margin, MaxY: b.MaxY + margin,
	}
}

// Center returns the bbox's centroid.
func (b BBox) Center() Point {
	return Point{X: (b.MinX + b.MaxX) / 2, Y: (b.MinY + b.MaxY) / 2}
}

// Quad is an oriented quadrilateral described by its four corners, in
// consistent winding order.
type Quad struct {
	Corners [4]Point
}

// OrderedByAngle returns a Quad with pts reordered counter-clockwise around
// their centroid. Used to turn an unordered set of four corners (e.g. from a
// rotated door bbox) into a polygon ray-casting can walk.
func OrderedByAngle(pts [4]Point) Quad {
	cx, cy := 0.0, 0.0
	for _, p := range pts {
		cx += p.X
		cy += p.Y
	}
	cx /= 4
	cy /= 4

	ordered := pts
	angle := func(p Point) float64 { return math.Atan2(p.Y-cy, p.X-cx) }
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && angle(ordered[j-1]) > angle(ordered[j]); j-- {
			ordered[j-1], ordered[j] = ordered[j], ordered[j-1]
		}
	}
	return Quad{Corners: ordered}
}

// ContainsPoint runs a standard ray-casting point-in-polygon test against
// the quad's corners.
func (q Quad) ContainsPoint(p Point) bool {
	inside := false
	c := q.Corners
	for i, j := 0, 3; i < 4; j, i = i, i+1 {
		a, b := c[i], c[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			xcross := a.X + (p.Y-a.Y)/(b.Y-a.Y)*(b.X-a.X)
			if p.X < xcross {
				inside = !inside
			}
		}
	}
	return inside
}

// BBox returns the axis-aligned bounding box enclosing the quad's corners.
func (q Quad) BBox() BBox {
	return BBoxFromPoints(q.Corners[:]...)
}

// Area returns the quad's area via the shoelace formula.
func (q Quad) Area() float64 {
	c := q.Corners
	sum := 0.0
	for i := 0; i < 4; i++ {
		j := (i + 1) % 4
		sum += c[i].X*c[j].Y - c[j].X*c[i].Y
	}
	return math.Abs(sum) / 2
}

// PerpVector returns a vector perpendicular to dir (rotated +90 degrees),
// unit length if dir was unit length.
func PerpVector(dir Point) Point {
	return Point{X: -dir.Y, Y: dir.X}
}

// ClosestPointOnSegment returns the point on segment s nearest to p, and the
// parametric t in [0,1] along s at which it occurs.
func ClosestPointOnSegment(p Point, s Segment) (Point, float64) {
	v := s.Vector()
	vlen2 := v.Dot(v)
	if vlen2 == 0 {
		return s.P1, 0
	}
	t := p.Sub(s.P1).Dot(v) / vlen2
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return s.P1.Add(v.Scale(t)), t
}

// DistanceToSegment returns the minimum distance from p to segment s.
func DistanceToSegment(p Point, s Segment) float64 {
	closest, _ := ClosestPointOnSegment(p, s)
	return p.Distance(closest)
}
