package quota

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/phrazzld/dayreport/internal/domain"
	"github.com/spf13/afero"
)

// CounterFileName is the name of the counter file under the config root.
const CounterFileName = "file-counter.json"

// Counter is the persisted daily artifact count.
type Counter struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Store persists the single process-wide Counter.
type Store interface {
	// Load returns the stored counter. A store with nothing saved yet
	// returns the zero Counter.
	Load(ctx context.Context) (Counter, error)
	// Save replaces the stored counter.
	Save(ctx context.Context, c Counter) error
}

// FileStore keeps the counter as a small JSON document.
type FileStore struct {
	fs   afero.Fs
	path string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore writing CounterFileName inside dir.
func NewFileStore(fsys afero.Fs, dir string) *FileStore {
	return &FileStore{fs: fsys, path: filepath.Join(dir, CounterFileName)}
}

// Path returns the location of the counter file.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the counter. A missing or unreadable document reads as the
// zero Counter, which the ledger then rolls over to today.
func (s *FileStore) Load(_ context.Context) (Counter, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Counter{}, nil
		}
		return Counter{}, fmt.Errorf("%w: read quota counter: %v", domain.ErrPersistence, err)
	}

	var c Counter
	if err := json.Unmarshal(data, &c); err != nil || c.Count < 0 {
		return Counter{}, nil
	}
	return c, nil
}

// Save writes the counter through a temporary file and a rename so a crash
// never leaves a half-written document behind.
func (s *FileStore) Save(_ context.Context, c Counter) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode quota counter: %v", domain.ErrPersistence, err)
	}

	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("%w: create quota directory: %v", domain.ErrPersistence, err)
	}

	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: write quota counter: %v", domain.ErrPersistence, err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("%w: replace quota counter: %v", domain.ErrPersistence, err)
	}
	return nil
}
