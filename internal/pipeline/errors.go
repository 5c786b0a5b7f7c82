package pipeline

import "fmt"

// Kind is the pipeline's error taxonomy. Stages never return a bare error;
// they wrap it in a *StageError so the executor can decide whether to retry,
// count-and-continue, or abort the job.
type Kind string

const (
	KindInvalidInput      Kind = "INVALID_INPUT"
	KindDegenerateGeometry Kind = "DEGENERATE_GEOMETRY"
	KindOversizedInput    Kind = "OVERSIZED_INPUT"
	KindCorruptUpstream   Kind = "CORRUPT_UPSTREAM"
	KindSinkUnavailable   Kind = "SINK_UNAVAILABLE"
	KindCancelled         Kind = "CANCELLED"
)

// Retryable reports whether a stage (or artifact persist) that failed with
// this kind is expected to succeed on a later attempt rather than needing
// different input. Only SINK_UNAVAILABLE qualifies; the executor's own
// retry loop lives at the artifact-sink Put, the one place this kind is
// actually produced.
func (k Kind) Retryable() bool {
	return k == KindSinkUnavailable
}

// StageError is the error type every stage and the executor itself return.
// Stage carries the name of the stage that produced it so the job-record and
// step-metrics artifacts can both cite it without re-deriving it from a
// call stack.
type StageError struct {
	Stage string
	Kind  Kind
	Err   error
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Kind)
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError builds a StageError. Kept as a constructor (rather than a
// bare struct literal at every call site) so a change to the wrapping
// convention only has to happen here.
func NewStageError(stage string, kind Kind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}
