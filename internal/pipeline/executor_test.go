package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"wallgeometry/internal/artifact"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readMetrics fetches and decodes the step_metrics.json artifact a run
// persisted for jobID.
func readMetrics(t *testing.T, sink artifact.Sink, jobID string) []StageMetrics {
	t.Helper()
	body, err := sink.Get(context.Background(), jobID, "step_metrics.json")
	require.NoError(t, err)
	var metrics []StageMetrics
	require.NoError(t, json.Unmarshal(body, &metrics))
	return metrics
}

func TestExecutorRunsStagesInOrderAndPersistsArtifacts(t *testing.T) {
	var order []string
	sink := artifact.NewMemSink()

	stages := []Stage{
		StageFunc{StageName: "A", Fn: func(ctx context.Context, b *Bundle, cfg AlgorithmConfig) (StageMetrics, error) {
			order = append(order, "A")
			return StageMetrics{Stage: "A", Counts: map[string]int{"n": 1}}, nil
		}},
		StageFunc{StageName: "B", Fn: func(ctx context.Context, b *Bundle, cfg AlgorithmConfig) (StageMetrics, error) {
			order = append(order, "B")
			return StageMetrics{Stage: "B"}, nil
		}},
	}
	artifactName["A"] = "a.json"
	artifactName["B"] = "b.json"
	defer func() {
		delete(artifactName, "A")
		delete(artifactName, "B")
	}()
	exec := NewExecutor(stages, sink, DefaultAlgorithmConfig())
	bundle, err := exec.Run(context.Background(), "job-1", &Bundle{})

	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, order)
	assert.Equal(t, "job-1", bundle.JobID)

	names, err := sink.List(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Contains(t, names, "step_metrics.json")

	metrics := readMetrics(t, sink, "job-1")
	require.Len(t, metrics, 2)
	assert.Equal(t, "A", metrics[0].Stage)
	assert.Equal(t, StatusCompleted, metrics[0].Status)
	assert.Equal(t, "B", metrics[1].Stage)
	assert.Equal(t, StatusCompleted, metrics[1].Status)
}

func TestExecutorAbortsOnNonRetryableError(t *testing.T) {
	var ranSecond bool
	sink := artifact.NewMemSink()

	stages := []Stage{
		StageFunc{StageName: "FAILS", Fn: func(ctx context.Context, b *Bundle, cfg AlgorithmConfig) (StageMetrics, error) {
			return StageMetrics{}, NewStageError("FAILS", KindInvalidInput, errors.New("boom"))
		}},
		StageFunc{StageName: "NEVER", Fn: func(ctx context.Context, b *Bundle, cfg AlgorithmConfig) (StageMetrics, error) {
			ranSecond = true
			return StageMetrics{}, nil
		}},
	}

	exec := NewExecutor(stages, sink, DefaultAlgorithmConfig())
	_, err := exec.Run(context.Background(), "job-2", &Bundle{})

	require.Error(t, err)
	assert.False(t, ranSecond)

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, KindInvalidInput, stageErr.Kind)

	metrics := readMetrics(t, sink, "job-2")
	require.Len(t, metrics, 2)
	assert.Equal(t, "FAILS", metrics[0].Stage)
	assert.Equal(t, StatusFailed, metrics[0].Status)
	assert.Equal(t, "NEVER", metrics[1].Stage)
	assert.Equal(t, StatusSkipped, metrics[1].Status)
}

// flakySink wraps a Sink and fails the first failUntil calls to Put with a
// sink-unavailable-style error before delegating to the inner sink.
type flakySink struct {
	artifact.Sink
	attempts  int
	failUntil int
}

func (f *flakySink) Put(ctx context.Context, jobID, name, artifactType string, body []byte) error {
	f.attempts++
	if f.attempts <= f.failUntil {
		return errors.New("sink down")
	}
	return f.Sink.Put(ctx, jobID, name, artifactType, body)
}

func TestExecutorRetriesSinkUnavailableThenSucceeds(t *testing.T) {
	sink := &flakySink{Sink: artifact.NewMemSink(), failUntil: 1}

	stages := []Stage{
		StageFunc{StageName: "FLAKY", Fn: func(ctx context.Context, b *Bundle, cfg AlgorithmConfig) (StageMetrics, error) {
			return StageMetrics{Stage: "FLAKY"}, nil
		}},
	}
	artifactName["FLAKY"] = "flaky.json"
	defer delete(artifactName, "FLAKY")

	exec := NewExecutor(stages, sink, DefaultAlgorithmConfig())
	_, err := exec.Run(context.Background(), "job-3", &Bundle{})

	require.NoError(t, err)
	// 2 Put attempts to land FLAKY's own artifact (1 failure + 1 success),
	// plus 1 more for the run's step_metrics.json persist.
	assert.Equal(t, 3, sink.attempts)

	metrics := readMetrics(t, sink, "job-3")
	require.Len(t, metrics, 1)
	assert.Equal(t, StatusCompleted, metrics[0].Status)
}

func TestExecutorFailsStageWhenSinkNeverRecovers(t *testing.T) {
	sink := &flakySink{Sink: artifact.NewMemSink(), failUntil: 100}

	stages := []Stage{
		StageFunc{StageName: "FLAKY", Fn: func(ctx context.Context, b *Bundle, cfg AlgorithmConfig) (StageMetrics, error) {
			return StageMetrics{Stage: "FLAKY"}, nil
		}},
		StageFunc{StageName: "NEVER", Fn: func(ctx context.Context, b *Bundle, cfg AlgorithmConfig) (StageMetrics, error) {
			t.Fatal("NEVER should not run once FLAKY's artifact persist exhausts its retries")
			return StageMetrics{}, nil
		}},
	}
	artifactName["FLAKY"] = "flaky.json"
	defer delete(artifactName, "FLAKY")

	exec := NewExecutor(stages, sink, DefaultAlgorithmConfig())
	_, err := exec.Run(context.Background(), "job-3b", &Bundle{})

	require.Error(t, err)
	// FLAKY's artifact exhausts maxRetries attempts, then the run's own
	// step_metrics.json persist (also always failing here) exhausts
	// maxRetries more.
	assert.Equal(t, 2*maxRetries, sink.attempts)

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, KindSinkUnavailable, stageErr.Kind)
}

func TestExecutorCancelledContextStopsBeforeNextStage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran bool
	sink := artifact.NewMemSink()
	stages := []Stage{
		StageFunc{StageName: "UNREACHED", Fn: func(ctx context.Context, b *Bundle, cfg AlgorithmConfig) (StageMetrics, error) {
			ran = true
			return StageMetrics{}, nil
		}},
	}

	exec := NewExecutor(stages, sink, DefaultAlgorithmConfig())
	_, err := exec.Run(ctx, "job-4", &Bundle{})

	require.Error(t, err)
	assert.False(t, ran)

	metrics := readMetrics(t, sink, "job-4")
	require.Len(t, metrics, 1)
	assert.Equal(t, "UNREACHED", metrics[0].Stage)
	assert.Equal(t, StatusFailed, metrics[0].Status)
}
