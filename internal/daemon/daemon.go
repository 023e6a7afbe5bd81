// Package daemon assembles the store, external service clients, and the
// worker loop into a single lifecycle with flock-based locking to prevent
// multiple concurrent instances.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"callscribe/internal/archive"
	"callscribe/internal/cleanup"
	"callscribe/internal/config"
	"callscribe/internal/logging"
	"callscribe/internal/notifications"
	"callscribe/internal/pipeline"
	"callscribe/internal/queue"
	"callscribe/internal/services/objstore"
	"callscribe/internal/services/speechkit"
	"callscribe/internal/services/telegram"
	"callscribe/internal/services/yandexgpt"
	"callscribe/internal/workflow"
)

// Daemon owns the worker loop and the queue database connection.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	cleaner  *cleanup.Manager
	notifier notifications.Service

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// New builds a fully wired daemon. The queue database is opened here; Close
// releases it.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires configuration")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open queue store: %w", err)
	}

	objects, err := objstore.New(cfg.Storage)
	if err != nil {
		store.Close()
		return nil, err
	}

	transcriber := speechkit.NewClient(cfg.SpeechKit.APIKey,
		speechkit.WithRecognizeURL(cfg.SpeechKit.RecognizeURL),
		speechkit.WithOperationURL(cfg.SpeechKit.OperationURL),
		speechkit.WithLanguage(cfg.SpeechKit.Language),
		speechkit.WithPollInterval(time.Duration(cfg.SpeechKit.PollInterval)*time.Second))

	analyzer := yandexgpt.NewClient(cfg.Analysis.APIKey, cfg.Analysis.FolderID,
		yandexgpt.WithBaseURL(cfg.Analysis.BaseURL),
		yandexgpt.WithModel(cfg.Analysis.Model),
		yandexgpt.WithTemperature(cfg.Analysis.Temperature),
		yandexgpt.WithMaxTokens(cfg.Analysis.MaxTokens),
		yandexgpt.WithTimeout(time.Duration(cfg.Analysis.TimeoutSeconds)*time.Second))

	notifier := notifications.NewService(cfg)

	fetcher := &sourceFetcher{}
	if cfg.TelegramEnabled() {
		fetcher.bot = telegram.NewClient(cfg.Telegram.BotToken)
	}

	cleaner := cleanup.NewManager(objects, cfg.Paths.StagingDir, logging.NewComponentLogger(logger, "cleanup"))
	audio := pipeline.New(store, objects, transcriber, analyzer, fetcher, notifier,
		cleaner, cfg.Paths.StagingDir, logging.NewComponentLogger(logger, "pipeline"))
	expander := archive.NewExpander(store, objects, fetcher, notifier,
		cleaner, cfg.Paths.StagingDir, logging.NewComponentLogger(logger, "archive"))
	manager := workflow.NewManager(cfg, store, audio, expander, logging.NewComponentLogger(logger, "workflow"))

	lockPath := filepath.Join(cfg.Paths.LogDir, "callscribed.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		workflow: manager,
		cleaner:  cleaner,
		notifier: notifier,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock, fails over any tasks interrupted by a
// previous crash, and launches the worker loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another callscribe daemon instance is already running")
	}

	// Tasks left processing by a crash are failed, never silently rerun;
	// the operator decides whether to resubmit.
	recovered, err := d.store.FailStuckProcessing(ctx, "")
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("recover interrupted tasks: %w", err)
	}
	if recovered > 0 {
		d.logger.Warn("interrupted tasks failed at startup", logging.Int64("count", recovered))
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("callscribe daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts the worker loop and releases the instance lock. The in-flight
// task, if any, runs to a terminal state first.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("callscribe daemon stopped")
}

// Close stops the daemon and closes the queue database.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Running reports whether the worker loop is active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Enqueue adds a task through the daemon's store.
func (d *Daemon) Enqueue(ctx context.Context, ownerID int64, kind queue.Kind, sourceLocator, displayName string) (*queue.Task, error) {
	return d.store.Enqueue(ctx, ownerID, kind, sourceLocator, displayName)
}

// ListQueue returns tasks filtered by optional statuses.
func (d *Daemon) ListQueue(ctx context.Context, statuses ...queue.Status) ([]*queue.Task, error) {
	return d.store.List(ctx, statuses...)
}

// ClearQueue removes all tasks.
func (d *Daemon) ClearQueue(ctx context.Context) (int64, error) {
	return d.store.Clear(ctx)
}

// ClearCompleted removes completed tasks.
func (d *Daemon) ClearCompleted(ctx context.Context) (int64, error) {
	return d.store.ClearCompleted(ctx)
}

// ClearFailed removes errored tasks.
func (d *Daemon) ClearFailed(ctx context.Context) (int64, error) {
	return d.store.ClearFailed(ctx)
}

// FailStuck fails every processing task with the restart marker.
func (d *Daemon) FailStuck(ctx context.Context) (int64, error) {
	return d.store.FailStuckProcessing(ctx, "")
}

// QueueHealth returns aggregate queue counts.
func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	return d.store.Health(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	return d.store.CheckHealth(ctx)
}

// Wipe removes every staged object and local scratch file.
func (d *Daemon) Wipe(ctx context.Context) (cleanup.WipeReport, error) {
	return d.cleaner.Wipe(ctx)
}

// TestNotification exercises the notification path with the current
// configuration.
func (d *Daemon) TestNotification(ctx context.Context) error {
	return d.notifier.TestNotification(ctx)
}
