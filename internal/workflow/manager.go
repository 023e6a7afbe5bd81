// Package workflow runs the single queue consumer that drives claimed tasks
// to a terminal state.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"callscribe/internal/config"
	"callscribe/internal/logging"
	"callscribe/internal/queue"
	"callscribe/internal/services"
)

// Processor handles one claimed task. A returned error fails the task with
// the error text; nil means the processor drove it to a terminal state.
type Processor interface {
	Process(ctx context.Context, task *queue.Task) error
}

// Manager owns the worker goroutine. One task at a time; ordering and
// crash-safety come from the store, not from here.
type Manager struct {
	store        *queue.Store
	audio        Processor
	archive      Processor
	logger       *slog.Logger
	pollInterval time.Duration
	errorRetry   time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager constructs a workflow manager. logger may be nil.
func NewManager(cfg *config.Config, store *queue.Store, audio, archive Processor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		store:        store,
		audio:        audio,
		archive:      archive,
		logger:       logger,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		errorRetry:   time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
	}
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	go m.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for the in-flight task to
// reach a terminal state.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()
	m.logger.Info("worker started")

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("worker stopped")
			return
		default:
		}

		task, err := m.store.ClaimNext(ctx)
		if err != nil {
			m.logger.Error("failed to claim next task", logging.Error(err))
			m.sleep(ctx, m.errorRetry)
			continue
		}
		if task == nil {
			m.sleep(ctx, m.pollInterval)
			continue
		}

		m.dispatch(ctx, task)
	}
}

// dispatch routes the task to its processor and translates any error into a
// failed terminal state. A claimed task always runs to completion, so the
// processing context survives shutdown cancellation.
func (m *Manager) dispatch(ctx context.Context, task *queue.Task) {
	correlationID := uuid.NewString()
	taskCtx := services.WithRequestID(context.WithoutCancel(ctx), correlationID)
	taskCtx = services.WithTaskID(taskCtx, task.ID)

	logger := m.logger.With(
		logging.Int64(logging.FieldTaskID, task.ID),
		logging.String(logging.FieldCorrelationID, correlationID),
		logging.String("kind", string(task.Kind)))
	logger.Info("task claimed", logging.String("file", task.DisplayName))

	var processor Processor
	switch task.Kind {
	case queue.KindArchive:
		processor = m.archive
	case queue.KindAudio, queue.KindSubtask:
		processor = m.audio
	}
	if processor == nil {
		m.fail(taskCtx, logger, task.ID, "no processor for task kind "+string(task.Kind))
		return
	}

	if err := processor.Process(taskCtx, task); err != nil {
		logger.Error("task failed", logging.Error(err))
		m.fail(taskCtx, logger, task.ID, err.Error())
		return
	}
	logger.Info("task finished")
}

func (m *Manager) fail(ctx context.Context, logger *slog.Logger, taskID int64, message string) {
	if err := m.store.Fail(ctx, taskID, message); err != nil {
		logger.Error("failed to record task failure", logging.Error(err))
	}
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
