package analysis

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// FileFilter restricts analysis to functions defined in matching source files.
// A nil filter matches everything.
type FileFilter struct {
	pattern    string
	glob       glob.Glob
	simplified glob.Glob // pattern without a leading "**/", for root-level files
}

// NewFileFilter compiles pattern. An empty pattern yields a nil filter.
func NewFileFilter(pattern string) (*FileFilter, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil, nil
	}

	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, fmt.Errorf("invalid file filter %q: %w", pattern, err)
	}
	f := &FileFilter{pattern: pattern, glob: g}

	if rest, ok := strings.CutPrefix(pattern, "**/"); ok {
		if s, err := glob.Compile(rest, '/'); err == nil {
			f.simplified = s
		}
	}
	return f, nil
}

// Pattern returns the source pattern.
func (f *FileFilter) Pattern() string {
	if f == nil {
		return ""
	}
	return f.pattern
}

// Match reports whether file passes the filter.
func (f *FileFilter) Match(file string) bool {
	if f == nil {
		return true
	}
	if file == "" {
		return false
	}
	file = filepath.ToSlash(file)
	if f.glob.Match(file) {
		return true
	}
	return f.simplified != nil && !strings.Contains(file, "/") && f.simplified.Match(file)
}
