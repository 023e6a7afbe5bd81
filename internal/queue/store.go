package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"callscribe/internal/config"
)

// ErrNotProcessing is returned by guarded transitions that found the task
// outside the processing status. It always indicates a logic fault in the
// caller, never an environmental condition.
var ErrNotProcessing = errors.New("task is not in processing status")

// Store manages queue persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// storedTimeLayout is fixed width: RFC3339Nano trims trailing fractional
// zeros, which makes lexicographic ORDER BY created_at disagree with
// chronological order at exact-second timestamps.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z"

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Open initializes or connects to the queue database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.Paths.DatabasePath)
}

// OpenPath initializes or connects to a queue database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Enqueue inserts a new task in the queued status.
func (s *Store) Enqueue(ctx context.Context, ownerID int64, kind Kind, sourceLocator, displayName string) (*Task, error) {
	if strings.TrimSpace(sourceLocator) == "" {
		return nil, errors.New("source locator is required")
	}
	timestamp := time.Now().UTC().Format(storedTimeLayout)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO tasks (owner_id, kind, source_locator, display_name, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ownerID,
		kind,
		sourceLocator,
		nullableString(displayName),
		StatusQueued,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a task by identifier. Missing tasks return nil, nil.
func (s *Store) GetByID(ctx context.Context, id int64) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// ClaimNext atomically moves the oldest queued task to processing and
// returns it. The check and the transition are a single conditional UPDATE
// so concurrent claimers can never obtain the same task. Returns nil, nil
// when the queue is empty.
func (s *Store) ClaimNext(ctx context.Context) (*Task, error) {
	ctx = ensureContext(ctx)
	timestamp := time.Now().UTC().Format(storedTimeLayout)

	query := `UPDATE tasks SET status = ?, updated_at = ?
        WHERE id = (
            SELECT id FROM tasks WHERE status = ? ORDER BY created_at, id LIMIT 1
        )
        RETURNING ` + taskColumns

	var (
		task    *Task
		scanErr error
	)
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx, query, StatusProcessing, timestamp, StatusQueued)
		task, scanErr = scanTask(row)
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim next task: %w", err)
	}
	return task, nil
}

// Complete transitions a processing task to completed and persists the
// analysis result. The transition is guarded on the current status; a task
// found outside processing returns ErrNotProcessing.
func (s *Store) Complete(ctx context.Context, id int64, result Result) error {
	timestamp := time.Now().UTC().Format(storedTimeLayout)

	res, err := s.execWithRetry(
		ctx,
		`UPDATE tasks SET
            status = ?, summary = ?, sentiment = ?, transcript = ?, address = ?,
            dialog_type = ?, markers_summary = ?, is_relevant = ?, refusal_deadline = ?,
            no_brigade = ?, long_duration = ?, redirect_other_org = ?, street = ?,
            house = ?, resident_phrase = ?, problem_duration = ?, error_message = NULL,
            updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusCompleted,
		nullableString(result.Summary),
		nullableString(result.Sentiment),
		nullableString(result.Transcript),
		nullableString(result.Address),
		nullableString(result.DialogType),
		nullableString(result.MarkersSummary),
		boolToInt(result.IsRelevant),
		boolToInt(result.RefusalDeadline),
		boolToInt(result.NoBrigade),
		boolToInt(result.LongDuration),
		boolToInt(result.RedirectOtherOrg),
		nullableString(result.Street),
		nullableString(result.House),
		nullableString(result.ResidentPhrase),
		nullableString(result.ProblemDuration),
		timestamp,
		id,
		StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("complete task %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("complete task %d: %w", id, ErrNotProcessing)
	}
	return nil
}

// Fail transitions a processing task to error with a diagnostic message.
// Guarded the same way as Complete.
func (s *Store) Fail(ctx context.Context, id int64, message string) error {
	timestamp := time.Now().UTC().Format(storedTimeLayout)

	res, err := s.execWithRetry(
		ctx,
		`UPDATE tasks SET status = ?, error_message = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusError,
		nullableString(message),
		timestamp,
		id,
		StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("fail task %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("fail task %d: %w", id, ErrNotProcessing)
	}
	return nil
}

// List returns tasks filtered by status set (or all tasks when no status is
// provided), in creation order.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Task, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + taskColumns + ` FROM tasks`
	orderClause := ` ORDER BY created_at, id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// ListRange returns tasks created inside the half-open interval [from, to),
// in creation order. Zero time values leave the corresponding bound open.
func (s *Store) ListRange(ctx context.Context, from, to time.Time) ([]*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var (
		clauses []string
		args    []any
	)
	if !from.IsZero() {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, from.UTC().Format(storedTimeLayout))
	}
	if !to.IsZero() {
		clauses = append(clauses, "created_at < ?")
		args = append(args, to.UTC().Format(storedTimeLayout))
	}
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks by range: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// FailStuckProcessing marks tasks stranded in processing as errored. Called
// at daemon startup: a processing task with no running worker can only be a
// leftover from a crash, and the lifecycle never returns a task to queued.
func (s *Store) FailStuckProcessing(ctx context.Context, message string) (int64, error) {
	if strings.TrimSpace(message) == "" {
		message = RestartInterruptedReason
	}
	timestamp := time.Now().UTC().Format(storedTimeLayout)

	res, err := s.execWithRetry(
		ctx,
		`UPDATE tasks SET status = ?, error_message = ?, updated_at = ? WHERE status = ?`,
		StatusError,
		message,
		timestamp,
		StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("fail stuck tasks: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all tasks from the queue.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM tasks`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

// ClearCompleted removes only completed tasks from the queue.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM tasks WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes only errored tasks from the queue.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM tasks WHERE status = ?`, StatusError)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of tasks grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates queue state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusQueued:
			health.Queued += count
		case StatusProcessing:
			health.Processing += count
		case StatusCompleted:
			health.Completed += count
		case StatusError:
			health.Errored += count
		}
	}
	return health, nil
}
