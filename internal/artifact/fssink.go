package artifact

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// FSSink writes one file per (jobID, artifactName) under a base directory,
// mirroring the per-job directory layout of the worker this pipeline
// replaces: BaseDir/<jobID>/<sanitized artifact name>.
type FSSink struct {
	BaseDir string
}

// NewFSSink returns a sink rooted at baseDir. The directory is created lazily
// on first Put, not here.
func NewFSSink(baseDir string) *FSSink {
	return &FSSink{BaseDir: baseDir}
}

func sanitizeArtifactName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	sanitized := b.String()
	if len(sanitized) > 200 {
		ext := filepath.Ext(sanitized)
		sanitized = sanitized[:190-len(ext)] + ext
	}
	return sanitized
}

func (s *FSSink) jobDir(jobID string) string {
	return filepath.Join(s.BaseDir, jobID)
}

func (s *FSSink) filePath(jobID, name string) string {
	return filepath.Join(s.jobDir(jobID), sanitizeArtifactName(name))
}

func (s *FSSink) Put(ctx context.Context, jobID, name, artifactType string, body []byte) error {
	dir := s.jobDir(jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.filePath(jobID, name), body, 0o644)
}

func (s *FSSink) Get(ctx context.Context, jobID, name string) ([]byte, error) {
	return os.ReadFile(s.filePath(jobID, name))
}

func (s *FSSink) List(ctx context.Context, jobID string) ([]string, error) {
	entries, err := os.ReadDir(s.jobDir(jobID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
