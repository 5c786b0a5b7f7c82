package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalCoordRoundsSubEpsilonNoise(t *testing.T) {
	assert.Equal(t, CanonicalCoord(1.0), CanonicalCoord(1.0+1e-9))
	assert.Equal(t, "0.000000", CanonicalCoord(-0.0))
}

func TestCanonicalSegmentEndpointsIsOrderIndependent(t *testing.T) {
	s := Segment{P1: Point{X: 0, Y: 0}, P2: Point{X: 10, Y: 5}}
	reversed := Segment{P1: s.P2, P2: s.P1}
	assert.Equal(t, CanonicalSegmentEndpoints(s), CanonicalSegmentEndpoints(reversed))
}

func TestContentHashDeterministicAndSensitive(t *testing.T) {
	h1 := ContentHash("LINE", "layer-a", "0.000000,0.000000|10.000000,0.000000")
	h2 := ContentHash("LINE", "layer-a", "0.000000,0.000000|10.000000,0.000000")
	h3 := ContentHash("LINE", "layer-b", "0.000000,0.000000|10.000000,0.000000")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
}
