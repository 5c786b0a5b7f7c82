package artifact

import (
	"context"
	"fmt"
	"sync"
)

// MemSink is an in-process artifact sink backed by a map, used by tests and
// by library callers that want the bundle's artifacts without touching disk.
type MemSink struct {
	mu   sync.Mutex
	data map[string]Record // key: jobID + "/" + name
}

// NewMemSink returns an empty MemSink.
func NewMemSink() *MemSink {
	return &MemSink{data: make(map[string]Record)}
}

func key(jobID, name string) string { return jobID + "/" + name }

func (s *MemSink) Put(ctx context.Context, jobID, name, artifactType string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key(jobID, name)] = Record{JobID: jobID, Name: name, ArtifactType: artifactType, Body: body}
	return nil
}

func (s *MemSink) Get(ctx context.Context, jobID, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.data[key(jobID, name)]
	if !ok {
		return nil, fmt.Errorf("artifact not found: job=%s name=%s", jobID, name)
	}
	return rec.Body, nil
}

func (s *MemSink) List(ctx context.Context, jobID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	prefix := jobID + "/"
	for k, rec := range s.data {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			names = append(names, rec.Name)
		}
	}
	return names, nil
}
