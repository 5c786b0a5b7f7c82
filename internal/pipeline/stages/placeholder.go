package stages

import (
	"context"

	"wallgeometry/internal/pipeline"
)

// PlaceholderStage stands in for a future wall-candidate algorithm. It
// carries no detection logic of its own: it copies PARALLEL_NAIVE's
// candidate pairs through verbatim, so downstream artifact consumers have a
// stable name to read regardless of which detector produced the pairs.
type PlaceholderStage struct{}

func (s *PlaceholderStage) Name() string { return "WALL_CANDIDATES_PLACEHOLDER" }

func (s *PlaceholderStage) Run(ctx context.Context, bundle *pipeline.Bundle, cfg pipeline.AlgorithmConfig) (pipeline.StageMetrics, error) {
	if bundle.ParallelNaive == nil {
		return pipeline.StageMetrics{}, pipeline.NewStageError(s.Name(), pipeline.KindInvalidInput, errMissingUpstream("PARALLEL_NAIVE"))
	}

	bundle.Placeholder = &pipeline.PlaceholderResult{Pairs: bundle.ParallelNaive.Pairs}

	return pipeline.StageMetrics{
		Stage:  s.Name(),
		Counts: map[string]int{"pairs": len(bundle.Placeholder.Pairs)},
	}, nil
}
