package pipeline

// AlgorithmConfig collects every tunable constant the pipeline's stages use.
// Stages are pure functions of (bundle, config) so a run is fully
// reproducible given its input document and this config.
type AlgorithmConfig struct {
	// NORMALIZE
	NormalizeEpsilon float64 // coordinate snap grid, mm

	// CLEAN_DEDUP
	DedupOverlapPrecisionMM float64

	// PARALLEL_NAIVE wall-candidate detector
	AngularToleranceDeg  float64
	MinDistanceMM        float64
	MaxDistanceMM        float64
	MinOverlapPercentage float64 // of the shorter segment

	// LOGIC_D containment pruning
	ContainmentToleranceMM float64

	// LOGIC_E adjacent-band merge
	BandAngleToleranceDeg      float64
	BandNormalToleranceMM      float64
	BandGapToleranceMM         float64
	BandThicknessMatchToleranceMM float64

	// LOGIC_F L-junction extension: rectangles of opposite orientation
	// (H vs V) whose centre lines are within LJunctionAngleToleranceDeg of
	// perpendicular are candidates for closing an L-shaped corner gap.
	LJunctionAngleToleranceDeg     float64
	LJunctionMaxExtensionMM        float64
	LJunctionMaxJunctionDistanceMM float64

	// DOOR_RECTANGLE_ASSIGNMENT / DOOR_BRIDGE
	DoorSnapToleranceMM float64
	DoorBBoxExpandMM    float64
	BridgeEndCapMM      float64

	// Layer-name substrings (case-insensitive) identifying door/window
	// blocks. Configurable per spec's door/window layer pattern open
	// question.
	DoorWindowLayerPatterns []string

	// UseSpatialGrid enables the bucketed O(n) acceleration for the
	// wall-candidate detector once entity count crosses
	// SpatialGridThreshold; below it plain O(n^2) pairing runs, and both
	// paths must produce identical candidate sets.
	UseSpatialGrid      bool
	SpatialGridThreshold int

	// MaxEntities bounds input size; above it EXTRACT fails with
	// KindOversizedInput rather than letting the detector stage blow up, and
	// PARALLEL_NAIVE applies the same cap to its own line count.
	MaxEntities int
}

// DefaultAlgorithmConfig returns the constants named by the specification.
func DefaultAlgorithmConfig() AlgorithmConfig {
	return AlgorithmConfig{
		NormalizeEpsilon:        1e-6,
		DedupOverlapPrecisionMM: 0.1,

		AngularToleranceDeg:  5.0,
		MinDistanceMM:        20.0,
		MaxDistanceMM:        450.0,
		MinOverlapPercentage: 60.0,

		ContainmentToleranceMM: 1.0,

		BandAngleToleranceDeg:         1.0,
		BandNormalToleranceMM:         2.0,
		BandGapToleranceMM:            5.0,
		BandThicknessMatchToleranceMM: 5.0,

		LJunctionAngleToleranceDeg:     25.0,
		LJunctionMaxExtensionMM:        300.0,
		LJunctionMaxJunctionDistanceMM: 300.0,

		DoorSnapToleranceMM: 300.0,
		DoorBBoxExpandMM:    200.0,
		BridgeEndCapMM:      10.0,

		DoorWindowLayerPatterns: []string{
			"door", "window", "דלת", "חלון",
		},

		UseSpatialGrid:       true,
		SpatialGridThreshold: 2000,

		MaxEntities: 500000,
	}
}
