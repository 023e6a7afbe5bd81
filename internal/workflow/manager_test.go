package workflow_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"callscribe/internal/config"
	"callscribe/internal/logging"
	"callscribe/internal/queue"
	"callscribe/internal/services"
	"callscribe/internal/testsupport"
	"callscribe/internal/workflow"
)

type stubProcessor struct {
	store *queue.Store
	err   error

	mu    sync.Mutex
	tasks []*queue.Task
	ctxOK bool
}

func (p *stubProcessor) Process(ctx context.Context, task *queue.Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = append(p.tasks, task)
	if _, ok := services.RequestIDFromContext(ctx); ok {
		if id, ok := services.TaskIDFromContext(ctx); ok && id == task.ID {
			p.ctxOK = true
		}
	}
	if p.err != nil {
		return p.err
	}
	return p.store.Complete(ctx, task.ID, queue.Result{Summary: "ok"})
}

func (p *stubProcessor) processed() []*queue.Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*queue.Task(nil), p.tasks...)
}

func newManager(t *testing.T, audio, archive workflow.Processor) (*workflow.Manager, *queue.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.ErrorRetryInterval = 1
	store := testsupport.MustOpenStore(t, cfg)
	return workflow.NewManager(cfg, store, audio, archive, logging.NewNop()), store, cfg
}

func waitFor(t *testing.T, timeout time.Duration, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached before timeout")
}

func TestManagerDispatchesByKind(t *testing.T) {
	audio := &stubProcessor{}
	archive := &stubProcessor{}
	manager, store, _ := newManager(t, audio, archive)
	audio.store = store
	archive.store = store

	testsupport.Enqueue(t, store, queue.KindAudio, "telegram-file-1", "call.mp3")
	testsupport.Enqueue(t, store, queue.KindArchive, "telegram-file-2", "batch.zip")
	testsupport.Enqueue(t, store, queue.KindSubtask, "https://storage.example.test/b/archives/2/a.mp3", "a.mp3")

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer manager.Stop()

	waitFor(t, 5*time.Second, func() bool {
		return len(audio.processed())+len(archive.processed()) == 3
	})

	if got := len(audio.processed()); got != 2 {
		t.Fatalf("expected 2 audio dispatches, got %d", got)
	}
	if got := len(archive.processed()); got != 1 {
		t.Fatalf("expected 1 archive dispatch, got %d", got)
	}
	if !audio.ctxOK {
		t.Fatal("expected correlation and task id in processing context")
	}

	waitFor(t, 5*time.Second, func() bool {
		stats, err := store.Stats(context.Background())
		if err != nil {
			return false
		}
		return stats[queue.StatusCompleted] == 3
	})
}

func TestManagerFailsTaskOnProcessorError(t *testing.T) {
	audio := &stubProcessor{err: errors.New("transient failure: transcribe: submit: recognition request rejected")}
	manager, store, _ := newManager(t, audio, &stubProcessor{})

	task := testsupport.Enqueue(t, store, queue.KindAudio, "telegram-file-1", "call.mp3")

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer manager.Stop()

	waitFor(t, 5*time.Second, func() bool {
		stored, err := store.GetByID(context.Background(), task.ID)
		return err == nil && stored != nil && stored.Status == queue.StatusError
	})

	stored, err := store.GetByID(context.Background(), task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.ErrorMessage != audio.err.Error() {
		t.Fatalf("unexpected error message %q", stored.ErrorMessage)
	}
}

func TestManagerKeepsRunningAfterFailure(t *testing.T) {
	audio := &stubProcessor{err: errors.New("boom")}
	manager, store, _ := newManager(t, audio, &stubProcessor{})

	testsupport.Enqueue(t, store, queue.KindAudio, "telegram-file-1", "a.mp3")
	testsupport.Enqueue(t, store, queue.KindAudio, "telegram-file-2", "b.mp3")

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer manager.Stop()

	waitFor(t, 5*time.Second, func() bool {
		stats, err := store.Stats(context.Background())
		if err != nil {
			return false
		}
		return stats[queue.StatusError] == 2
	})
}

func TestManagerStartTwiceFails(t *testing.T) {
	manager, _, _ := newManager(t, &stubProcessor{}, &stubProcessor{})
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer manager.Stop()
	if err := manager.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}
}

func TestManagerStopIsIdempotent(t *testing.T) {
	manager, _, _ := newManager(t, &stubProcessor{}, &stubProcessor{})
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	manager.Stop()
	manager.Stop()
}
