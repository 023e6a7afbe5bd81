package archive_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"callscribe/internal/archive"
	"callscribe/internal/cleanup"
	"callscribe/internal/fileutil"
	"callscribe/internal/logging"
	"callscribe/internal/notifications"
	"callscribe/internal/queue"
	"callscribe/internal/testsupport"
)

type fakeObjects struct {
	uploads []string
	err     error
}

func (f *fakeObjects) Upload(_ context.Context, localPath, objectName string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if _, err := os.Stat(localPath); err != nil {
		return "", fmt.Errorf("upload source missing: %w", err)
	}
	f.uploads = append(f.uploads, objectName)
	return "https://storage.example.test/bucket/" + objectName, nil
}

func (f *fakeObjects) Delete(context.Context, string) error { return nil }

type copyFetcher struct {
	err error
}

func (f copyFetcher) Fetch(_ context.Context, src, dest string) error {
	if f.err != nil {
		return f.err
	}
	return fileutil.CopyFile(src, dest)
}

type countingNotifier struct {
	archiveCounts []int
}

func (n *countingNotifier) NotifyTaskCompleted(context.Context, int64, int64, string) error {
	return nil
}

func (n *countingNotifier) NotifyArchiveExpanded(_ context.Context, _, _ int64, count int) error {
	n.archiveCounts = append(n.archiveCounts, count)
	return nil
}

func (n *countingNotifier) SendReport(context.Context, notifications.Report) error { return nil }

func (n *countingNotifier) TestNotification(context.Context) error { return nil }

type fixture struct {
	store      *queue.Store
	objects    *fakeObjects
	notifier   *countingNotifier
	expander   *archive.Expander
	stagingDir string
	sourceZip  string
}

func newFixture(t *testing.T, fetchErr error, entries ...string) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	sourceZip := filepath.Join(t.TempDir(), "batch.zip")
	testsupport.WriteZip(t, sourceZip, entries...)

	f := &fixture{
		store:      store,
		objects:    &fakeObjects{},
		notifier:   &countingNotifier{},
		stagingDir: cfg.Paths.StagingDir,
		sourceZip:  sourceZip,
	}
	f.expander = archive.NewExpander(store, f.objects, copyFetcher{err: fetchErr}, f.notifier,
		cleanup.NewManager(nil, cfg.Paths.StagingDir, logging.NewNop()), cfg.Paths.StagingDir, logging.NewNop())
	return f
}

func (f *fixture) claim(t *testing.T) *queue.Task {
	t.Helper()
	if _, err := f.store.Enqueue(context.Background(), 1, queue.KindArchive, f.sourceZip, "batch.zip"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	task, err := f.store.ClaimNext(context.Background())
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if task == nil {
		t.Fatal("expected claimed task")
	}
	return task
}

func TestProcessFansOutAudioFiles(t *testing.T) {
	f := newFixture(t, nil,
		"call1.mp3", "nested/call2.OGG", "call3.wav", "readme.txt", "cover.jpg")
	task := f.claim(t)

	if err := f.expander.Process(context.Background(), task); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if len(f.objects.uploads) != 3 {
		t.Fatalf("expected 3 staged files, got %v", f.objects.uploads)
	}
	for _, object := range f.objects.uploads {
		if !strings.HasPrefix(object, fmt.Sprintf("archives/%d/", task.ID)) {
			t.Fatalf("unexpected object name %q", object)
		}
	}

	subtasks, err := f.store.List(context.Background(), queue.StatusQueued)
	if err != nil {
		t.Fatal(err)
	}
	if len(subtasks) != 3 {
		t.Fatalf("expected 3 subtasks, got %d", len(subtasks))
	}
	for _, sub := range subtasks {
		if sub.Kind != queue.KindSubtask {
			t.Fatalf("unexpected kind %q", sub.Kind)
		}
		if !strings.HasPrefix(sub.SourceLocator, "https://") {
			t.Fatalf("expected staged URL locator, got %q", sub.SourceLocator)
		}
	}

	parent, err := f.store.GetByID(context.Background(), task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if parent.Status != queue.StatusCompleted {
		t.Fatalf("unexpected parent status %q", parent.Status)
	}
	if parent.Summary != "Распаковано файлов: 3" {
		t.Fatalf("unexpected parent summary %q", parent.Summary)
	}

	if len(f.notifier.archiveCounts) != 1 || f.notifier.archiveCounts[0] != 3 {
		t.Fatalf("unexpected notifications %v", f.notifier.archiveCounts)
	}

	// Bundle and extraction directory removed.
	leftovers, _ := filepath.Glob(filepath.Join(f.stagingDir, "bundle-*"))
	if len(leftovers) != 0 {
		t.Fatalf("expected scratch removed, found %v", leftovers)
	}
}

func TestProcessEmptyArchiveCompletesWithZero(t *testing.T) {
	f := newFixture(t, nil, "notes.txt")
	task := f.claim(t)

	if err := f.expander.Process(context.Background(), task); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	parent, err := f.store.GetByID(context.Background(), task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if parent.Summary != "Распаковано файлов: 0" {
		t.Fatalf("unexpected summary %q", parent.Summary)
	}
	subtasks, err := f.store.List(context.Background(), queue.StatusQueued)
	if err != nil {
		t.Fatal(err)
	}
	if len(subtasks) != 0 {
		t.Fatalf("expected no subtasks, got %d", len(subtasks))
	}
}

func TestProcessFailsOnFetchError(t *testing.T) {
	f := newFixture(t, errors.New("file_id expired"), "call1.mp3")
	task := f.claim(t)

	if err := f.expander.Process(context.Background(), task); err == nil {
		t.Fatal("expected fetch error")
	}
	leftovers, _ := filepath.Glob(filepath.Join(f.stagingDir, "bundle-*"))
	if len(leftovers) != 0 {
		t.Fatalf("expected scratch removed on failure, found %v", leftovers)
	}
}

func TestProcessFailsOnStagingError(t *testing.T) {
	f := newFixture(t, nil, "call1.mp3")
	f.objects.err = errors.New("bucket unavailable")
	task := f.claim(t)

	if err := f.expander.Process(context.Background(), task); err == nil {
		t.Fatal("expected staging error")
	}
	parent, err := f.store.GetByID(context.Background(), task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if parent.Status != queue.StatusProcessing {
		t.Fatalf("expected parent left processing for the worker to fail, got %q", parent.Status)
	}
}
