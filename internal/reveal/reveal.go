// Package reveal locates generated artifacts for a client and, when enabled,
// shows them in the operating system's file manager.
package reveal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/phrazzld/dayreport/internal/domain"
)

// Locator confines caller-supplied paths to the artifact root.
type Locator interface {
	ResolveInside(p string) (string, error)
	Stat(path string) (os.FileInfo, error)
}

// Opener shows a path to the local user.
type Opener interface {
	Open(ctx context.Context, path string, isDir bool) error
}

// Result describes a revealed path.
type Result struct {
	Path   string `json:"path"`
	IsDir  bool   `json:"isDir"`
	Opened bool   `json:"opened"`
}

// Service validates reveal requests.
type Service struct {
	locator Locator
	opener  Opener
	logger  *slog.Logger
}

// New creates a Service. A nil opener only validates and reports.
func New(locator Locator, opener Opener, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		locator: locator,
		opener:  opener,
		logger:  logger.With("component", "reveal"),
	}
}

// Reveal resolves p inside the artifact root and opens it when an opener is
// configured. Paths outside the root or that do not exist fail with
// domain.ErrValidation before anything is launched.
func (s *Service) Reveal(ctx context.Context, p string) (Result, error) {
	path, err := s.locator.ResolveInside(p)
	if err != nil {
		s.logger.Warn("rejected reveal path", "error", err)
		return Result{}, err
	}

	info, err := s.locator.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return Result{}, domain.Invalidf("file does not exist")
	}
	if err != nil {
		return Result{}, fmt.Errorf("%w: stat %s: %w", domain.ErrPersistence, path, err)
	}

	res := Result{Path: path, IsDir: info.IsDir()}
	if s.opener == nil {
		return res, nil
	}
	if err := s.opener.Open(ctx, path, res.IsDir); err != nil {
		return res, fmt.Errorf("open file location: %w", err)
	}
	res.Opened = true
	s.logger.Info("revealed path", "path", path, "is_dir", res.IsDir)
	return res, nil
}
