package stages

import "wallgeometry/internal/pipeline"

// All returns the pipeline's stages in their fixed execution order, wired
// with the per-run inputs (the parsed document and the caller's non-empty
// selected layer set) that EXTRACT needs and every later stage reads off
// the bundle. PARALLEL_NAIVE covers both the layering/flattening step and
// the wall-candidate detector itself, and LOGIC_F supplements the
// distilled pipeline with the original worker's L-junction extension, so
// the ten conceptual components named by the specification surface as
// twelve named stages here.
func All(doc *DrawingDocument, layers []string) []pipeline.Stage {
	return []pipeline.Stage{
		&ExtractStage{Document: doc, Layers: layers},
		&NormalizeStage{},
		&CleanDedupStage{},
		&ParallelNaiveStage{},
		&LogicBStage{},
		&LogicCStage{},
		&LogicDStage{},
		&LogicEStage{},
		&LogicFStage{},
		&DoorAssignmentStage{},
		&DoorBridgeStage{},
		&PlaceholderStage{},
	}
}
