package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// UnitGraphExt is the file extension of a serialized graph.
const UnitGraphExt = ".lg.json"

// Storage handles reading and writing per-unit graphs in a cache directory.
type Storage interface {
	// Load loads the graph of a unit. A missing file is an error.
	Load(unit string) (*Graph, error)

	// Save saves a graph under its unit name using atomic write pattern.
	Save(g *Graph) error

	// Exists checks if a unit's graph file exists.
	Exists(unit string) bool

	// Delete removes a unit's graph. A missing file is not an error.
	Delete(unit string) error

	// Path returns the file a unit's graph is stored in.
	Path(unit string) string

	// List returns the names of all stored units, sorted.
	List() ([]string, error)

	// Clear removes every stored unit graph.
	Clear() error

	// Dir returns the cache directory.
	Dir() string
}

// storage implements Storage with atomic write support.
type storage struct {
	dir string // Directory containing unit graph files
}

// NewStorage creates a new graph storage rooted at dir.
func NewStorage(dir string) (Storage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create graph directory: %w", err)
	}
	return &storage{dir: dir}, nil
}

func (s *storage) Dir() string { return s.dir }

// Load loads a unit's graph from disk.
func (s *storage) Load(unit string) (*Graph, error) {
	if err := checkUnitName(unit); err != nil {
		return nil, err
	}
	return ReadFile(s.path(unit))
}

// Save saves a unit's graph to disk.
func (s *storage) Save(g *Graph) error {
	if err := checkUnitName(g.Unit()); err != nil {
		return err
	}
	return WriteFile(s.path(g.Unit()), g)
}

// Exists checks if a unit's graph file exists.
func (s *storage) Exists(unit string) bool {
	_, err := os.Stat(s.path(unit))
	return err == nil
}

// Delete removes a unit's graph file.
func (s *storage) Delete(unit string) error {
	if err := checkUnitName(unit); err != nil {
		return err
	}
	if err := os.Remove(s.path(unit)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove graph of %s: %w", unit, err)
	}
	return nil
}

func (s *storage) Path(unit string) string { return s.path(unit) }

// List returns the stored unit names.
func (s *storage) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph directory: %w", err)
	}
	var units []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), UnitGraphExt) {
			continue
		}
		units = append(units, strings.TrimSuffix(entry.Name(), UnitGraphExt))
	}
	sort.Strings(units)
	return units, nil
}

// Clear removes every unit graph and any leftover temp files.
func (s *storage) Clear() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read graph directory: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, UnitGraphExt) || strings.HasSuffix(name, UnitGraphExt+".tmp") {
			if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
				return fmt.Errorf("failed to remove %s: %w", name, err)
			}
		}
	}
	return nil
}

func (s *storage) path(unit string) string {
	return filepath.Join(s.dir, unit+UnitGraphExt)
}

func checkUnitName(unit string) error {
	if unit == "" || strings.ContainsAny(unit, `/\`) || unit == "." || unit == ".." {
		return fmt.Errorf("invalid unit name %q", unit)
	}
	return nil
}

// ReadFile loads a serialized graph.
func ReadFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}
	g := New("")
	if err := json.Unmarshal(data, g); err != nil {
		return nil, fmt.Errorf("failed to parse graph %s: %w", filepath.Base(path), err)
	}
	return g, nil
}

// WriteFile writes a graph to path. The data is written to a temp file in the
// same directory and renamed over the destination.
func WriteFile(path string, g *Graph) error {
	jsonData, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create graph directory: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write temp graph file: %w", err)
	}

	// Atomic rename (POSIX guarantees atomicity)
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp graph file: %w", err)
	}
	return nil
}
