// Package pipeline runs a claimed audio task through staging, transcription,
// analysis, and persistence. Stages are sequential with no retries; any
// stage error fails the task at the worker boundary.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"callscribe/internal/analysis"
	"callscribe/internal/cleanup"
	"callscribe/internal/logging"
	"callscribe/internal/notifications"
	"callscribe/internal/queue"
	"callscribe/internal/services"
	"callscribe/internal/transcript"
)

// ObjectStore stages local files into durable storage addressable by URL.
type ObjectStore interface {
	Upload(ctx context.Context, localPath, objectName string) (string, error)
	Delete(ctx context.Context, objectName string) error
}

// Transcriber drives asynchronous speech recognition.
type Transcriber interface {
	Submit(ctx context.Context, audioURL string) (string, error)
	WaitForCompletion(ctx context.Context, operationID string) (string, error)
}

// Analyzer turns a transcript into a raw analysis response.
type Analyzer interface {
	Analyze(ctx context.Context, transcript string) (string, error)
}

// Fetcher materializes a task's origin reference as a local file.
type Fetcher interface {
	Fetch(ctx context.Context, sourceLocator, destPath string) error
}

// AudioPipeline processes audio and subtask tasks.
type AudioPipeline struct {
	store       *queue.Store
	objects     ObjectStore
	transcriber Transcriber
	analyzer    Analyzer
	fetcher     Fetcher
	notifier    notifications.Service
	cleaner     *cleanup.Manager
	stagingDir  string
	logger      *slog.Logger
}

// New wires an audio pipeline. logger may be nil.
func New(
	store *queue.Store,
	objects ObjectStore,
	transcriber Transcriber,
	analyzer Analyzer,
	fetcher Fetcher,
	notifier notifications.Service,
	cleaner *cleanup.Manager,
	stagingDir string,
	logger *slog.Logger,
) *AudioPipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &AudioPipeline{
		store:       store,
		objects:     objects,
		transcriber: transcriber,
		analyzer:    analyzer,
		fetcher:     fetcher,
		notifier:    notifier,
		cleaner:     cleaner,
		stagingDir:  stagingDir,
		logger:      logger,
	}
}

// Process runs one task to a terminal state. A returned error means the
// caller must fail the task; nil means the task was completed.
func (p *AudioPipeline) Process(ctx context.Context, task *queue.Task) error {
	audioURL, stagedObject, err := p.acquire(ctx, task)
	if err != nil {
		return err
	}
	if stagedObject != "" {
		// Objects this run staged are removed whether the task completes
		// or fails. Pre-staged subtask URLs stay until an operator wipe.
		defer func() {
			if err := p.objects.Delete(ctx, stagedObject); err != nil {
				p.logger.Warn("staged object cleanup failed",
					logging.String("object", stagedObject),
					logging.Error(err))
			}
		}()
	}

	operationID, err := p.transcriber.Submit(ctx, audioURL)
	if err != nil {
		return services.Wrap(services.ErrTransient, "transcribe", "submit", "recognition request rejected", err)
	}
	p.logger.Info("recognition started",
		logging.Int64(logging.FieldTaskID, task.ID),
		logging.String("operation_id", operationID))

	text, err := p.transcriber.WaitForCompletion(ctx, operationID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "transcribe", "wait", "recognition did not complete", err)
	}
	if strings.TrimSpace(text) == "" {
		return services.Wrap(services.ErrEmptyResult, "transcribe", "result", "recognition returned no text", nil)
	}

	cleaned := transcript.StripBoilerplate(text)

	raw, err := p.analyzer.Analyze(ctx, cleaned)
	if err != nil {
		return services.Wrap(services.ErrTransient, "analyze", "completion", "analysis request failed", err)
	}

	outcome := analysis.Parse(raw, cleaned)
	if outcome.Degraded {
		p.logger.Warn("analysis response was not valid JSON, storing degraded record",
			logging.Int64(logging.FieldTaskID, task.ID))
	}

	if err := p.store.Complete(ctx, task.ID, outcome.Result); err != nil {
		return services.Wrap(services.ErrTransient, "persist", "complete", "task completion not recorded", err)
	}

	p.notify(ctx, task, outcome)
	return nil
}

// acquire resolves the task's audio to a URL the recognition service can
// fetch. Locators that are already staged URLs pass through untouched; the
// returned object name is non-empty only when this run staged the audio.
func (p *AudioPipeline) acquire(ctx context.Context, task *queue.Task) (audioURL, stagedObject string, err error) {
	if strings.HasPrefix(task.SourceLocator, "http") {
		return task.SourceLocator, "", nil
	}

	name := displayName(task)
	scratch := filepath.Join(p.stagingDir, fmt.Sprintf("task-%d-%s", task.ID, name))
	defer p.cleaner.RemoveFile(scratch)

	if err := p.fetcher.Fetch(ctx, task.SourceLocator, scratch); err != nil {
		return "", "", services.Wrap(services.ErrTransient, "stage", "fetch", "source audio not retrieved", err)
	}

	objectName := fmt.Sprintf("queue/%d/%s", task.ID, name)
	url, err := p.objects.Upload(ctx, scratch, objectName)
	if err != nil {
		return "", "", services.Wrap(services.ErrTransient, "stage", "upload", "staging upload failed", err)
	}
	p.cleaner.RemoveFile(scratch)
	return url, objectName, nil
}

// notify delivers the owner message and the chat report. Failures here are
// logged only; the task already reached its terminal state.
func (p *AudioPipeline) notify(ctx context.Context, task *queue.Task, outcome analysis.Outcome) {
	if err := p.notifier.NotifyTaskCompleted(ctx, task.OwnerID, task.ID, displayName(task)); err != nil {
		p.logger.Warn("owner notification failed",
			logging.Int64(logging.FieldTaskID, task.ID),
			logging.Error(err))
	}

	report := notifications.Report{
		TaskID:     task.ID,
		FileName:   displayName(task),
		Summary:    outcome.Result.Summary,
		Sentiment:  outcome.Result.Sentiment,
		Address:    outcome.Result.Address,
		DialogType: outcome.Result.DialogType,
		Markers:    outcome.Markers,
		Transcript: outcome.Result.Transcript,
	}
	if err := p.notifier.SendReport(ctx, report); err != nil {
		p.logger.Warn("report delivery failed",
			logging.Int64(logging.FieldTaskID, task.ID),
			logging.Error(err))
	}
}

// displayName reduces the task's name to a bare file name. Display names are
// operator input and may carry path separators that would otherwise escape
// the staging directory.
func displayName(task *queue.Task) string {
	name := task.DisplayName
	if name == "" {
		name = task.SourceLocator
	}
	return filepath.Base(name)
}
