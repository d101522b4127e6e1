package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/phrazzld/dayreport/internal/domain"
	"github.com/spf13/afero"
)

// taskDirPrefix names per-task directories under the data root.
const taskDirPrefix = "task_"

// Store writes artifacts under a single data root and vets paths handed
// back by callers against it.
type Store struct {
	fs   afero.Fs
	root string
}

// NewStore creates a Store rooted at root.
func NewStore(fsys afero.Fs, root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve data root: %w", err)
	}
	return &Store{fs: fsys, root: abs}, nil
}

// Root returns the absolute data root.
func (s *Store) Root() string {
	return s.root
}

// TaskDir returns the directory holding a task's artifacts.
func (s *Store) TaskDir(taskID string) string {
	return filepath.Join(s.root, taskDirPrefix+taskID)
}

// Write stores one day's artifact as <day>.<ext> in the task directory and
// returns its path.
func (s *Store) Write(taskID, day, ext string, data []byte) (string, error) {
	for _, part := range []string{taskID, day, ext} {
		if !safeName(part) {
			return "", domain.Invalidf("unsafe artifact name component %q", part)
		}
	}

	dir := s.TaskDir(taskID)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create task directory: %v", domain.ErrPersistence, err)
	}

	path := filepath.Join(dir, day+"."+ext)
	if err := afero.WriteFile(s.fs, path, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: write artifact %s: %v", domain.ErrPersistence, filepath.Base(path), err)
	}
	return path, nil
}

// Stat reports on a path previously returned by ResolveInside.
func (s *Store) Stat(path string) (os.FileInfo, error) {
	return s.fs.Stat(path)
}

// ResolveInside validates a caller-supplied path and returns its cleaned
// absolute form. Relative paths are taken relative to the data root. Empty
// paths, traversal segments and anything not strictly below the root are
// rejected with domain.ErrValidation.
func (s *Store) ResolveInside(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", domain.Invalidf("file path is required")
	}
	if strings.ContainsRune(p, 0) {
		return "", domain.Invalidf("file path contains invalid characters")
	}
	for _, seg := range strings.FieldsFunc(p, isSeparator) {
		if seg == ".." {
			return "", domain.Invalidf("path traversal is not allowed")
		}
	}

	if !filepath.IsAbs(p) {
		p = filepath.Join(s.root, p)
	}
	clean := filepath.Clean(p)
	if !within(s.root, clean) {
		return "", domain.Invalidf("file path is outside the data directory")
	}

	// On the real filesystem a symlink inside the root could point out of it.
	if _, ok := s.fs.(*afero.OsFs); ok {
		realRoot, err := filepath.EvalSymlinks(s.root)
		if err != nil {
			return "", domain.Invalidf("data directory is not accessible")
		}
		if real, err := filepath.EvalSymlinks(clean); err == nil && !within(realRoot, real) {
			return "", domain.Invalidf("file path is outside the data directory")
		}
	}
	return clean, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func isSeparator(r rune) bool {
	return r == '/' || r == '\\'
}

func safeName(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, "/\\\x00")
}
