// Package archive fans a zip bundle out into independent subtasks, one per
// audio file found inside.
package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"callscribe/internal/cleanup"
	"callscribe/internal/logging"
	"callscribe/internal/notifications"
	"callscribe/internal/pipeline"
	"callscribe/internal/queue"
	"callscribe/internal/services"
)

// audioExtensions are the recording formats extracted from a bundle.
// Anything else inside the archive is ignored.
var audioExtensions = map[string]struct{}{
	".mp3":  {},
	".ogg":  {},
	".wav":  {},
	".m4a":  {},
	".opus": {},
}

// Expander processes archive tasks.
type Expander struct {
	store      *queue.Store
	objects    pipeline.ObjectStore
	fetcher    pipeline.Fetcher
	notifier   notifications.Service
	cleaner    *cleanup.Manager
	stagingDir string
	logger     *slog.Logger
}

// NewExpander wires an archive expander. logger may be nil.
func NewExpander(
	store *queue.Store,
	objects pipeline.ObjectStore,
	fetcher pipeline.Fetcher,
	notifier notifications.Service,
	cleaner *cleanup.Manager,
	stagingDir string,
	logger *slog.Logger,
) *Expander {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Expander{
		store:      store,
		objects:    objects,
		fetcher:    fetcher,
		notifier:   notifier,
		cleaner:    cleaner,
		stagingDir: stagingDir,
		logger:     logger,
	}
}

// Process fetches the bundle, stages every audio file it contains, and
// enqueues a subtask per file. The parent task completes with a count-only
// summary; subtasks succeed or fail on their own. Bundle and extraction
// directory are removed on all paths.
func (e *Expander) Process(ctx context.Context, task *queue.Task) error {
	bundle := filepath.Join(e.stagingDir, fmt.Sprintf("bundle-%d.zip", task.ID))
	extractDir := filepath.Join(e.stagingDir, fmt.Sprintf("bundle-extract-%d", task.ID))
	defer e.cleaner.RemoveFile(bundle)
	defer e.cleaner.RemoveDir(extractDir)

	if err := e.fetcher.Fetch(ctx, task.SourceLocator, bundle); err != nil {
		return services.Wrap(services.ErrTransient, "expand", "fetch", "archive not retrieved", err)
	}
	if err := extractZip(bundle, extractDir); err != nil {
		return services.Wrap(services.ErrTransient, "expand", "extract", "archive extraction failed", err)
	}

	count := 0
	walkErr := filepath.WalkDir(extractDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		name := entry.Name()
		if _, ok := audioExtensions[strings.ToLower(filepath.Ext(name))]; !ok {
			return nil
		}

		objectName := fmt.Sprintf("archives/%d/%s", task.ID, name)
		url, err := e.objects.Upload(ctx, path, objectName)
		if err != nil {
			return fmt.Errorf("stage %s: %w", name, err)
		}
		subtask, err := e.store.Enqueue(ctx, task.OwnerID, queue.KindSubtask, url, name)
		if err != nil {
			return fmt.Errorf("enqueue %s: %w", name, err)
		}
		e.logger.Info("subtask enqueued",
			logging.Int64(logging.FieldTaskID, task.ID),
			logging.Int64("subtask_id", subtask.ID),
			logging.String("file", name))
		count++
		return nil
	})
	if walkErr != nil {
		return services.Wrap(services.ErrTransient, "expand", "walk", "archive fan-out failed", walkErr)
	}

	result := queue.Result{
		Summary:    fmt.Sprintf("Распаковано файлов: %d", count),
		Sentiment:  "N/A",
		Transcript: "Archive processed",
	}
	if err := e.store.Complete(ctx, task.ID, result); err != nil {
		return services.Wrap(services.ErrTransient, "persist", "complete", "archive completion not recorded", err)
	}

	if err := e.notifier.NotifyArchiveExpanded(ctx, task.OwnerID, task.ID, count); err != nil {
		e.logger.Warn("archive notification failed",
			logging.Int64(logging.FieldTaskID, task.ID),
			logging.Error(err))
	}
	return nil
}

// extractZip unpacks src into destDir, refusing entries that would escape
// the destination.
func extractZip(src, destDir string) error {
	reader, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer reader.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	for _, file := range reader.File {
		target := filepath.Join(destDir, filepath.Clean(file.Name))
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("entry %q escapes extraction directory", file.Name)
		}
		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := extractFile(file, target); err != nil {
			return fmt.Errorf("extract %s: %w", file.Name, err)
		}
	}
	return nil
}

func extractFile(file *zip.File, target string) error {
	in, err := file.Open()
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
