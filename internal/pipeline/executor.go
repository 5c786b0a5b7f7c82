package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"wallgeometry/internal/artifact"
)

// artifactName maps a stage to the artifact name its result is persisted
// under, matching the named artifact list the pipeline's external interface
// promises.
var artifactName = map[string]string{
	"EXTRACT":                    "extracted_entities.json",
	"NORMALIZE":                  "normalized_entities.json",
	"CLEAN_DEDUP":                "canvas_data.json",
	"PARALLEL_NAIVE":             "wall_candidate_pairs.json",
	"LOGIC_B":                    "logic_b_pairs.json",
	"LOGIC_C":                    "logic_c_pairs.json",
	"LOGIC_D":                    "logic_d_rectangles.json",
	"LOGIC_E":                    "logic_e_rectangles.json",
	"LOGIC_F":                    "logic_f_rectangles.json",
	"DOOR_RECTANGLE_ASSIGNMENT":  "door_rectangle_assignments.json",
	"DOOR_BRIDGE":                "door_bridges.json",
	"WALL_CANDIDATES_PLACEHOLDER": "wall_candidates_placeholder_results.json",
}

// Executor runs an ordered list of stages against a Bundle, persisting each
// stage's artifact and metrics. Artifact writes retry with exponential
// backoff on sink failure; a stage error, or a sink failure that survives
// every retry, aborts the run and marks every remaining stage skipped.
type Executor struct {
	Stages []Stage
	Sink    artifact.Sink
	Config  AlgorithmConfig
}

// NewExecutor returns an Executor running stages, in the order given, with
// artifacts persisted to sink. Callers pass stages.All() (package stages)
// for the full pipeline, or a shorter slice in tests that only care about a
// prefix of it.
func NewExecutor(stages []Stage, sink artifact.Sink, cfg AlgorithmConfig) *Executor {
	return &Executor{
		Stages: stages,
		Sink:   sink,
		Config: cfg,
	}
}

const (
	maxRetries  = 3
	retryBaseMS = 50
)

// Run executes every stage in order against jobID's bundle, returning the
// final bundle and the first unrecoverable error, if any. A stage that runs
// to completion but whose artifact the sink refuses to accept (even after
// persistStageArtifact's retries) is itself recorded as failed: the spec's
// determinism contract is about persisted artifacts, not in-memory bundle
// state, so a stage whose output never reached the sink never completed.
func (e *Executor) Run(ctx context.Context, jobID string, bundle *Bundle) (*Bundle, error) {
	bundle.JobID = jobID
	var allMetrics []StageMetrics

	for i, stage := range e.Stages {
		if err := ctx.Err(); err != nil {
			log.Printf("[PIPELINE] job=%s stage=%s status=cancelled", jobID, stage.Name())
			allMetrics = append(allMetrics, StageMetrics{Stage: stage.Name(), Status: StatusFailed})
			allMetrics = append(allMetrics, skippedMetrics(e.Stages[i+1:])...)
			e.persistMetrics(ctx, jobID, allMetrics)
			return bundle, NewStageError(stage.Name(), KindCancelled, err)
		}

		log.Printf("[PIPELINE] job=%s stage=%s status=starting", jobID, stage.Name())
		start := time.Now()

		metrics, err := stage.Run(ctx, bundle, e.Config)
		metrics.DurationMS = time.Since(start).Milliseconds()

		if err != nil {
			metrics.Stage = stage.Name()
			metrics.Status = StatusFailed
			allMetrics = append(allMetrics, metrics)
			allMetrics = append(allMetrics, skippedMetrics(e.Stages[i+1:])...)
			log.Printf("[PIPELINE] job=%s stage=%s status=failed err=%v", jobID, stage.Name(), err)
			e.persistMetrics(ctx, jobID, allMetrics)
			return bundle, err
		}

		metrics.Status = StatusCompleted
		log.Printf("[PIPELINE] job=%s stage=%s status=completed duration_ms=%d", jobID, stage.Name(), metrics.DurationMS)

		if putErr := e.persistStageArtifact(ctx, jobID, stage.Name(), bundle, metrics); putErr != nil {
			metrics.Status = StatusFailed
			allMetrics = append(allMetrics, metrics)
			allMetrics = append(allMetrics, skippedMetrics(e.Stages[i+1:])...)
			log.Printf("[PIPELINE] job=%s stage=%s status=failed err=%v", jobID, stage.Name(), putErr)
			e.persistMetrics(ctx, jobID, allMetrics)
			return bundle, putErr
		}

		allMetrics = append(allMetrics, metrics)
	}

	e.persistMetrics(ctx, jobID, allMetrics)
	return bundle, nil
}

// skippedMetrics records every stage the executor never reached because an
// earlier one failed or the run was cancelled.
func skippedMetrics(stages []Stage) []StageMetrics {
	out := make([]StageMetrics, 0, len(stages))
	for _, s := range stages {
		out = append(out, StageMetrics{Stage: s.Name(), Status: StatusSkipped})
	}
	return out
}

// putWithRetry calls e.Sink.Put, making up to maxRetries attempts in all
// with exponential backoff after each failure. It is the one place SINK_UNAVAILABLE is
// actually produced: per spec section 7, a sink failure is retried up to
// three attempts before the stage that owns the artifact is marked failed.
func (e *Executor) putWithRetry(ctx context.Context, jobID, stageName, name, artifactType string, body []byte) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := e.Sink.Put(ctx, jobID, name, artifactType, body)
		if err == nil {
			return nil
		}

		lastErr = err
		backoff := time.Duration(retryBaseMS*(1<<attempt)) * time.Millisecond
		log.Printf("[PIPELINE] job=%s stage=%s artifact=%s status=retrying attempt=%d backoff=%s err=%v",
			jobID, stageName, name, attempt+1, backoff, err)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return NewStageError(stageName, KindCancelled, ctx.Err())
		}
	}
	return NewStageError(stageName, KindSinkUnavailable, fmt.Errorf("artifact %s: %w", name, lastErr))
}

// persistStageArtifact marshals stageName's bundle output into its artifact
// envelope and writes it through putWithRetry. A marshal error indicates a
// stage produced a value that can't round-trip through JSON, which is a
// programming error rather than a sink failure, so it is logged and
// swallowed rather than failing the run; a Put failure that survives every
// retry is returned so the caller can fail the stage.
func (e *Executor) persistStageArtifact(ctx context.Context, jobID, stageName string, bundle *Bundle, metrics StageMetrics) error {
	name, ok := artifactName[stageName]
	if !ok {
		return nil
	}
	envelope, err := withEnvelope(stagePayload(stageName, bundle), e.Config, metrics.Counts)
	if err != nil {
		log.Printf("[PIPELINE] job=%s stage=%s artifact_marshal_error=%v", jobID, stageName, err)
		return nil
	}
	body, err := canonicalJSON(envelope)
	if err != nil {
		log.Printf("[PIPELINE] job=%s stage=%s artifact_marshal_error=%v", jobID, stageName, err)
		return nil
	}
	return e.putWithRetry(ctx, jobID, stageName, name, "application/json", body)
}

// withEnvelope flattens a stage's result struct into a map and adds the two
// fields every artifact body carries per the determinism contract:
// algorithm_config (for traceability) and totals (the stage's own counters).
func withEnvelope(payload any, cfg AlgorithmConfig, totals map[string]int) (map[string]any, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	m["algorithm_config"] = cfg
	m["totals"] = totals
	return m, nil
}

// persistMetrics writes the run's step_metrics.json. It is the terminal
// write on every code path (success, stage failure, or artifact-persist
// failure), so there is no further stage left to fail if the sink keeps
// rejecting it after retries; that outcome is logged, not returned.
func (e *Executor) persistMetrics(ctx context.Context, jobID string, metrics []StageMetrics) {
	body, err := canonicalJSON(metrics)
	if err != nil {
		log.Printf("[PIPELINE] job=%s metrics_marshal_error=%v", jobID, err)
		return
	}
	if err := e.putWithRetry(ctx, jobID, "EXECUTOR", "step_metrics.json", "application/json", body); err != nil {
		log.Printf("[PIPELINE] job=%s metrics_put_error=%v", jobID, err)
	}
}

// stagePayload returns the bundle field a given stage wrote, so the executor
// doesn't need a type switch duplicated at every call site.
func stagePayload(stageName string, bundle *Bundle) any {
	switch stageName {
	case "EXTRACT":
		return bundle.Extract
	case "NORMALIZE":
		return bundle.Normalize
	case "CLEAN_DEDUP":
		return bundle.CleanDedup
	case "PARALLEL_NAIVE":
		return bundle.ParallelNaive
	case "LOGIC_B":
		return bundle.LogicB
	case "LOGIC_C":
		return bundle.LogicC
	case "LOGIC_D":
		return bundle.LogicD
	case "LOGIC_E":
		return bundle.LogicE
	case "LOGIC_F":
		return bundle.LogicF
	case "DOOR_RECTANGLE_ASSIGNMENT":
		return bundle.DoorAssignment
	case "DOOR_BRIDGE":
		return bundle.DoorBridge
	case "WALL_CANDIDATES_PLACEHOLDER":
		return bundle.Placeholder
	default:
		return nil
	}
}

// canonicalJSON marshals v with sorted map keys and two-space indentation, so
// two runs over the same input produce byte-identical artifacts.
func canonicalJSON(v any) ([]byte, error) {
	// encoding/json already sorts map[string]T keys; the explicit Marshal
	// (rather than an Encoder with SetEscapeHTML(false)) is fine here since
	// artifact bodies never carry user-facing HTML.
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var buf []byte
	buf, err = json.MarshalIndent(json.RawMessage(raw), "", "  ")
	if err != nil {
		return raw, nil
	}
	return buf, nil
}
