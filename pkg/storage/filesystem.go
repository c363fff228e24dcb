package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore persists evidence and export files on disk under a base
// directory. The service treats stored content as opaque bytes.
type LocalStore struct {
	baseDir string
}

// NewLocalStore ensures the base directory exists and returns a handle.
func NewLocalStore(baseDir string) (*LocalStore, error) {
	if baseDir == "" {
		baseDir = "./evidence"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &LocalStore{baseDir: baseDir}, nil
}

// Save writes the given bytes to the provided relative path under the base dir.
func (s *LocalStore) Save(filename string, data []byte) (string, error) {
	path := s.resolve(filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare storage directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return filename, nil
}

// SaveStream copies from reader into the target file path.
func (s *LocalStore) SaveStream(filename string, r io.Reader) (string, error) {
	path := s.resolve(filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare storage directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer file.Close() //nolint:errcheck
	if _, err := io.Copy(file, r); err != nil {
		return "", fmt.Errorf("write stream: %w", err)
	}
	return filename, nil
}

// Open returns a read-only handle for the stored file.
func (s *LocalStore) Open(filename string) (*os.File, error) {
	file, err := os.Open(s.resolve(filename))
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return file, nil
}

// Delete removes a stored file if present.
func (s *LocalStore) Delete(filename string) error {
	if err := os.Remove(s.resolve(filename)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// Path exposes the underlying absolute path (useful for debugging).
func (s *LocalStore) Path(filename string) string {
	return s.resolve(filename)
}

func (s *LocalStore) resolve(filename string) string {
	if filepath.IsAbs(filename) {
		return filename
	}
	return filepath.Join(s.baseDir, filename)
}
