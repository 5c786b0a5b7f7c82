package geometry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
)

// CanonicalEpsilon is the rounding granularity applied before a coordinate
// enters a content hash, so that values differing only in float noise below
// this scale hash identically.
const CanonicalEpsilon = 1e-6

// CanonicalCoord rounds v to the nearest multiple of CanonicalEpsilon and
// renders it with a fixed number of decimals, so the same geometric value
// always produces the same byte string regardless of how it was computed.
func CanonicalCoord(v float64) string {
	rounded := math.Round(v/CanonicalEpsilon) * CanonicalEpsilon
	if rounded == 0 {
		rounded = 0 // normalize -0
	}
	return fmt.Sprintf("%.6f", rounded)
}

// CanonicalPoint renders a point's coordinates canonically.
func CanonicalPoint(p Point) string {
	return CanonicalCoord(p.X) + "," + CanonicalCoord(p.Y)
}

// CanonicalSegmentEndpoints renders a segment's two endpoints in a fixed
// order: the lexicographically smaller endpoint first, so a segment and its
// reverse hash identically.
func CanonicalSegmentEndpoints(s Segment) string {
	a, b := CanonicalPoint(s.P1), CanonicalPoint(s.P2)
	if a <= b {
		return a + "|" + b
	}
	return b + "|" + a
}

// ContentHash returns the 64-hex SHA-256 digest of data, in the form used
// throughout the pipeline for EntityID and deterministic identifiers derived
// from structural content rather than upstream-assigned ids.
func ContentHash(parts ...string) string {
	h := sha256.New()
	for i, part := range parts {
		if i > 0 {
			h.Write([]byte("|"))
		}
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}
