// Package persist snapshots the store to durable artifacts on a fixed
// schedule and rebuilds it from them at startup.
package persist

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Artifact is one named, fully replaced blob of snapshot data.
type Artifact interface {
	Name() string
	// Load returns the stored payload, or empty content when nothing was saved yet.
	Load(ctx context.Context) ([]byte, error)
	// Save replaces the stored payload.
	Save(ctx context.Context, payload []byte) error
}

// FileArtifact stores its payload in a single file, replaced atomically.
type FileArtifact struct {
	path string
}

// NewFileArtifact returns an artifact backed by path.
func NewFileArtifact(path string) *FileArtifact {
	return &FileArtifact{path: path}
}

func (f *FileArtifact) Name() string {
	return filepath.Base(f.path)
}

// Path returns the backing file.
func (f *FileArtifact) Path() string {
	return f.path
}

func (f *FileArtifact) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}
	return data, nil
}

func (f *FileArtifact) Save(_ context.Context, payload []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// MemoryArtifact keeps its payload in memory. Useful for tests and for
// running without durable storage.
type MemoryArtifact struct {
	name string

	mu      sync.Mutex
	payload []byte
	saves   int
	failErr error
}

// NewMemoryArtifact returns an empty in-memory artifact.
func NewMemoryArtifact(name string) *MemoryArtifact {
	return &MemoryArtifact{name: name}
}

func (m *MemoryArtifact) Name() string {
	return m.name
}

func (m *MemoryArtifact) Load(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	return append([]byte(nil), m.payload...), nil
}

func (m *MemoryArtifact) Save(_ context.Context, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.payload = append([]byte(nil), payload...)
	m.saves++
	return nil
}

// Set replaces the payload without counting a save.
func (m *MemoryArtifact) Set(payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payload = append([]byte(nil), payload...)
}

// Saves returns how many times Save succeeded.
func (m *MemoryArtifact) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// FailWith makes Load and Save return err until called with nil.
func (m *MemoryArtifact) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}
