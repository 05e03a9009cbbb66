// Package scratch owns the temporary files of a single composition.
package scratch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Arena is a per-composition directory for intermediate assets. Everything
// created through it is removed by Close.
type Arena struct {
	ID  string
	dir string

	mu      sync.Mutex
	tracked []string
	closed  bool
}

// New creates an arena below root. An empty root uses os.TempDir.
func New(root string) (*Arena, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch root: %w", err)
	}

	id := uuid.NewString()
	dir, err := os.MkdirTemp(root, "composition-"+id+"-")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &Arena{ID: id, dir: dir}, nil
}

// Dir returns the arena directory.
func (a *Arena) Dir() string {
	return a.dir
}

// Path returns the location of name inside the arena without creating it.
func (a *Arena) Path(name string) string {
	return filepath.Join(a.dir, filepath.Base(name))
}

// Write stores data under name and returns its path.
func (a *Arena) Write(name string, data []byte) (string, error) {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return "", fmt.Errorf("scratch arena %s is closed", a.ID)
	}

	path := a.Path(name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write scratch file %s: %w", name, err)
	}
	return path, nil
}

// Track registers a file living outside the arena directory for removal on Close.
func (a *Arena) Track(path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tracked = append(a.tracked, path)
}

// Close removes the arena directory and every tracked file. It is safe to
// call more than once.
func (a *Arena) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true

	var firstErr error
	for _, path := range a.tracked {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	a.tracked = nil

	if err := os.RemoveAll(a.dir); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
