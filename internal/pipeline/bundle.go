package pipeline

import "wallgeometry/internal/geometry"

// LayerStats carries the per-layer entity counts EXTRACT records, kept for
// debugging a drawing that yields far fewer walls than expected.
type LayerStats struct {
	LinesCount     int `json:"lines_count"`
	PolylinesCount int `json:"polylines_count"`
	BlocksCount    int `json:"blocks_count"`
}

// ExtractResult is EXTRACT's output: every entity found on every requested
// layer, plus per-layer counts.
type ExtractResult struct {
	Entities         []Entity
	DoorWindowBlocks []Block
	LayerStats       map[LayerName]LayerStats
}

// NormalizeResult is NORMALIZE's output: the same entities with coordinates
// snapped to NormalizeEpsilon and degenerate entities dropped.
type NormalizeResult struct {
	Entities         []Entity
	DoorWindowBlocks []Block
	DroppedCount     int
	ExplodedSegments int
	ValidationErrs   map[string]int // error kind -> count
}

// CanvasLine is one deduplicated line as the canvas artifact's viewer wants
// it: a flat id/start/end/length record rather than the tagged Entity union.
type CanvasLine struct {
	ID     EntityID       `json:"id"`
	Start  geometry.Point `json:"start"`
	End    geometry.Point `json:"end"`
	Length float64        `json:"length"`
}

// CanvasLayer is one layer's worth of canvas-artifact data.
type CanvasLayer struct {
	Lines   []CanvasLine `json:"lines"`
	Color   string       `json:"color"`
	Visible bool         `json:"visible"`
}

// CleanDedupResult is CLEAN_DEDUP's output: entities deduplicated by content
// hash, plus the canvas/statistics artifact data.
type CleanDedupResult struct {
	Entities          []Entity
	DoorWindowBlocks  []Block
	DuplicatesRemoved int
	DrawingBounds     geometry.BBox
	LayerColors       map[LayerName]string // "#rrggbb"
	CanvasLayers      map[LayerName]CanvasLayer
	Statistics        map[string]int
}

// ParallelNaiveResult is PARALLEL_NAIVE's output: the per-layer bboxes and
// flattened entity list the stage's name describes, plus every candidate
// wall pair found by the O(n^2)/grid-accelerated detector that runs in the
// same stage.
type ParallelNaiveResult struct {
	LayerBBoxes  map[LayerName]geometry.BBox
	FlatEntities []Entity

	Pairs             []CandidatePair
	UnpairedEntityIDs []EntityID
	// RejectionCounts tallies "not_parallel", "distance_out_of_range", and
	// "overlap_too_short" for every pair actually evaluated. The accepted
	// Pairs always agree between the grid and brute-force detectors, but the
	// grid path only evaluates pairs sharing a 3x3 bucket neighborhood, so
	// these totals are smaller above cfg.SpatialGridThreshold than they
	// would be for the same drawing scanned with UseSpatialGrid off: a pair
	// the grid never visits is never counted here, accepted or rejected.
	RejectionCounts map[string]int
}

// LogicBResult is LOGIC_B's output: each candidate pair trimmed to its
// longitudinal overlap and rendered as an oriented rectangle.
type LogicBResult struct {
	Rectangles []TrimmedRectangle
}

// LogicCResult is LOGIC_C's output: rectangles whose span is blocked by an
// intervening line removed.
type LogicCResult struct {
	Rectangles []TrimmedRectangle
	PrunedCount int
}

// LogicDResult is LOGIC_D's output: rectangles wholly contained in a larger
// rectangle removed.
type LogicDResult struct {
	Rectangles []TrimmedRectangle
	PrunedCount int
}

// LogicEResult is LOGIC_E's output: collinear adjacent rectangles merged
// into single runs.
type LogicEResult struct {
	Rectangles []TrimmedRectangle
	MergedCount int
}

// LogicFResult is LOGIC_F's output: LOGIC_E rectangles with perpendicular
// L-shaped corners extended to meet, closing the gap a band merge alone
// leaves at a turn in the wall run.
type LogicFResult struct {
	Rectangles       []TrimmedRectangle
	CandidateCount   int
	AcceptedPairs    int
	ExtendedCount    int
}

// DoorAssignmentResult is DOOR_RECTANGLE_ASSIGNMENT's output.
type DoorAssignmentResult struct {
	Assignments   []DoorAssignment
	UnassignedIDs []EntityID
}

// DoorBridgeResult is DOOR_BRIDGE's output.
type DoorBridgeResult struct {
	Bridges []DoorBridge
}

// PlaceholderResult is WALL_CANDIDATES_PLACEHOLDER's output. Per spec this
// stage carries no detection logic of its own: it copies the wall-candidate
// detector's (PARALLEL_NAIVE's) output verbatim, a stand-in for a future
// replacement stage.
type PlaceholderResult struct {
	Pairs []CandidatePair
}

// Bundle is the append-only, typed carrier threaded through every stage.
// Each stage writes exactly one named field and never mutates a field
// written by an earlier stage. Accessing a stage's output before it has run
// yields a nil pointer rather than a silently-missing map key.
type Bundle struct {
	JobID string

	Extract         *ExtractResult
	Normalize       *NormalizeResult
	CleanDedup      *CleanDedupResult
	ParallelNaive   *ParallelNaiveResult
	LogicB          *LogicBResult
	LogicC          *LogicCResult
	LogicD          *LogicDResult
	LogicE          *LogicEResult
	LogicF          *LogicFResult
	DoorAssignment  *DoorAssignmentResult
	DoorBridge      *DoorBridgeResult
	Placeholder     *PlaceholderResult
}

// StageStatus is a stage invocation's outcome as recorded in the persisted
// step_metrics artifact, per spec section 4.1.
type StageStatus string

const (
	StatusCompleted StageStatus = "completed"
	StatusFailed    StageStatus = "failed"
	StatusSkipped   StageStatus = "skipped"
)

// StageMetrics is the per-stage metrics record serialised into the
// step_metrics artifact. A stage the executor never reached because an
// earlier one failed is still recorded, with Status StatusSkipped and a
// zero DurationMS, so a caller reading the artifact can tell "never
// reached" apart from "ran and succeeded".
type StageMetrics struct {
	Stage      string         `json:"stage"`
	Status     StageStatus    `json:"status"`
	DurationMS int64          `json:"duration_ms"`
	Counts     map[string]int `json:"counts,omitempty"`
}
