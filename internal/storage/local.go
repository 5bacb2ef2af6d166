// Package storage stores submission uploads on the local filesystem.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStore saves files under a single directory with uuid-prefixed names
// so stored names never collide and never escape the directory.
type LocalStore struct {
	dir string
}

// NewLocalStore creates the upload directory if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

// Save writes r to disk and returns the stored name.
func (s *LocalStore) Save(filename string, r io.Reader) (string, error) {
	stored := uuid.NewString() + "_" + sanitizeFilename(filename)
	f, err := os.Create(filepath.Join(s.dir, stored))
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write upload file: %w", err)
	}
	return stored, nil
}

// Open returns a reader for a previously stored name.
func (s *LocalStore) Open(stored string) (io.ReadCloser, error) {
	if stored != sanitizeFilename(stored) {
		return nil, fmt.Errorf("invalid stored name")
	}
	f, err := os.Open(filepath.Join(s.dir, stored))
	if err != nil {
		return nil, fmt.Errorf("open upload file: %w", err)
	}
	return f, nil
}

// sanitizeFilename strips path components and characters outside a safe set.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		out = "file"
	}
	return out
}
