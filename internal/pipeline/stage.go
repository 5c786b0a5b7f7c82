package pipeline

import "context"

// Stage is the contract every pipeline step implements: given the bundle
// accumulated so far and the run's algorithm config, mutate the bundle's own
// field for this stage and return metrics. A stage never reads a bundle
// field no earlier stage has written.
type Stage interface {
	Name() string
	Run(ctx context.Context, bundle *Bundle, cfg AlgorithmConfig) (StageMetrics, error)
}

// StageFunc adapts a plain function to the Stage interface, the same way
// http.HandlerFunc adapts a function to http.Handler.
type StageFunc struct {
	StageName string
	Fn        func(ctx context.Context, bundle *Bundle, cfg AlgorithmConfig) (StageMetrics, error)
}

func (f StageFunc) Name() string { return f.StageName }

func (f StageFunc) Run(ctx context.Context, bundle *Bundle, cfg AlgorithmConfig) (StageMetrics, error) {
	return f.Fn(ctx, bundle, cfg)
}
