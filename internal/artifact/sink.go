// Package artifact defines the pipeline's artifact sink interface and its
// concrete adapters (in-memory, filesystem, sqlite).
package artifact

import "context"

// Sink persists named JSON (or other) blobs produced during a pipeline run.
// Put is idempotent: calling it twice with the same (jobID, name) and body
// must not produce two distinct records.
type Sink interface {
	Put(ctx context.Context, jobID, name, artifactType string, body []byte) error
	Get(ctx context.Context, jobID, name string) ([]byte, error)
	List(ctx context.Context, jobID string) ([]string, error)
}

// Record is one stored artifact, returned by sinks that expose listing.
type Record struct {
	JobID        string
	Name         string
	ArtifactType string
	Body         []byte
}
