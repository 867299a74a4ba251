package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Local keeps documents as files in a scratch directory, one per job.
// This is the default store; a single-host deployment needs nothing more.
type Local struct {
	dir string
}

func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir %s: %w", dir, err)
	}
	return &Local{dir: dir}, nil
}

func (l *Local) Put(_ context.Context, jobID, _ string, data []byte) (string, error) {
	path := filepath.Join(l.dir, jobID+".pdf")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write blob for job %s: %w", jobID, err)
	}
	return path, nil
}

func (l *Local) Get(_ context.Context, location string) ([]byte, error) {
	data, err := os.ReadFile(location)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", location, err)
	}
	return data, nil
}

func (l *Local) Delete(_ context.Context, location string) error {
	if err := os.Remove(location); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove blob %s: %w", location, err)
	}
	return nil
}
