// Package cleanup releases scratch files and staged objects. Per-task
// cleanup is best effort and never fails a caller; the operator wipe is the
// only path that reports errors.
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"callscribe/internal/logging"
)

// scratchPatterns are the file name shapes the pipeline leaves in the
// staging directory.
var scratchPatterns = []string{"task-*", "bundle-*", "transcript-*.txt", "export-*"}

// stagingPrefixes are the durable-store namespaces the pipeline writes to.
var stagingPrefixes = []string{"queue/", "archives/"}

// ObjectRemover deletes staged objects by prefix.
type ObjectRemover interface {
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// Manager removes pipeline leftovers from the staging directory and the
// object store.
type Manager struct {
	store      ObjectRemover
	stagingDir string
	logger     *slog.Logger
}

// NewManager builds a cleanup manager. logger may be nil.
func NewManager(store ObjectRemover, stagingDir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{store: store, stagingDir: stagingDir, logger: logger}
}

// RemoveFile deletes a single scratch file. Failures are logged, never
// returned; a missing file is not a failure.
func (m *Manager) RemoveFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		m.logger.Warn("scratch file removal failed",
			logging.String("path", path),
			logging.Error(err))
	}
}

// RemoveDir deletes a scratch directory tree. Failures are logged, never
// returned.
func (m *Manager) RemoveDir(path string) {
	if path == "" {
		return
	}
	if err := os.RemoveAll(path); err != nil {
		m.logger.Warn("scratch directory removal failed",
			logging.String("path", path),
			logging.Error(err))
	}
}

// WipeReport summarizes an operator wipe.
type WipeReport struct {
	ObjectsRemoved int
	FilesRemoved   int
}

// Wipe deletes every staged object under the pipeline prefixes and every
// local file matching the scratch patterns. Task state is untouched.
func (m *Manager) Wipe(ctx context.Context) (WipeReport, error) {
	var report WipeReport

	for _, prefix := range stagingPrefixes {
		removed, err := m.store.DeletePrefix(ctx, prefix)
		report.ObjectsRemoved += removed
		if err != nil {
			return report, fmt.Errorf("cleanup wipe: %w", err)
		}
		m.logger.Info("staged objects removed",
			logging.String("prefix", prefix),
			logging.Int("count", removed))
	}

	for _, pattern := range scratchPatterns {
		matches, err := filepath.Glob(filepath.Join(m.stagingDir, pattern))
		if err != nil {
			return report, fmt.Errorf("cleanup wipe: glob %s: %w", pattern, err)
		}
		for _, match := range matches {
			if err := os.RemoveAll(match); err != nil {
				return report, fmt.Errorf("cleanup wipe: remove %s: %w", match, err)
			}
			report.FilesRemoved++
		}
	}

	m.logger.Info("wipe finished",
		logging.Int("objects", report.ObjectsRemoved),
		logging.Int("files", report.FilesRemoved))
	return report, nil
}
