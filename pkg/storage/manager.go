package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"flico/pkg/models"
)

// Manager owns the metadata directory holding one store per institution.
type Manager struct {
	root string
}

// NewManager creates a new storage manager rooted at dir
func NewManager(dir string) (*Manager, error) {
	if dir == "" {
		return nil, fmt.Errorf("metadata directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create metadata directory: %w", err)
	}
	return &Manager{root: dir}, nil
}

// Root returns the metadata directory path
func (m *Manager) Root() string {
	return m.root
}

// PathFor returns the store path for an institution, or "" when its name
// has no usable filename.
func (m *Manager) PathFor(inst models.Institution) string {
	name := inst.Filename()
	if name == "" {
		return ""
	}
	return filepath.Join(m.root, name)
}

// Store returns the store for an institution. The file is not touched.
func (m *Manager) Store(inst models.Institution) (*Store, error) {
	path := m.PathFor(inst)
	if path == "" {
		return nil, fmt.Errorf("institution %s (%q) has no usable filename", inst.ID, inst.Name)
	}
	return Open(path), nil
}

// List returns the store files present in the metadata directory, sorted.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if filepath.Ext(entry.Name()) == ".csv" {
			paths = append(paths, filepath.Join(m.root, entry.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
