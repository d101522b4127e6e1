package reveal

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ExecOpener launches the platform file manager.
type ExecOpener struct {
	logger *slog.Logger
}

// NewExecOpener creates an ExecOpener.
func NewExecOpener(logger *slog.Logger) *ExecOpener {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecOpener{logger: logger.With("component", "reveal_opener")}
}

// Open starts the file manager without waiting for it to exit.
func (o *ExecOpener) Open(ctx context.Context, path string, isDir bool) error {
	name, args := command(runtime.GOOS, path, isDir)
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			o.logger.Debug("file manager exited with error", "command", name, "error", err)
		}
	}()
	return nil
}

// command returns the file manager invocation for goos. Files are selected
// in their folder where the platform supports it.
func command(goos, path string, isDir bool) (string, []string) {
	switch goos {
	case "darwin":
		if isDir {
			return "open", []string{path}
		}
		return "open", []string{"-R", path}
	case "windows":
		if isDir {
			return "explorer", []string{path}
		}
		return "explorer", []string{"/select," + path}
	default:
		if isDir {
			return "xdg-open", []string{path}
		}
		return "xdg-open", []string{filepath.Dir(path)}
	}
}
