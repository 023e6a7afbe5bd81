package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a task.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Kind partitions tasks by how they are processed.
type Kind string

const (
	// KindAudio is a single recording submitted directly.
	KindAudio Kind = "audio"
	// KindArchive is a zip bundle that fans out into subtasks.
	KindArchive Kind = "archive"
	// KindSubtask is a recording extracted from an archive; its source
	// locator is always a staged object URL.
	KindSubtask Kind = "subtask"
)

// RestartInterruptedReason is the error message set on tasks stranded in
// processing when the daemon starts after a crash.
const RestartInterruptedReason = "interrupted by daemon restart"

var allStatuses = []Status{
	StatusQueued,
	StatusProcessing,
	StatusCompleted,
	StatusError,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// ParseKind converts a string into a known Kind.
func ParseKind(value string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case KindAudio:
		return KindAudio, true
	case KindArchive:
		return KindArchive, true
	case KindSubtask:
		return KindSubtask, true
	default:
		return "", false
	}
}

// Task represents a queued recording or archive persisted in SQLite.
type Task struct {
	ID            int64
	OwnerID       int64
	Kind          Kind
	SourceLocator string
	DisplayName   string
	Status        Status

	Summary          string
	Sentiment        string
	Transcript       string
	Address          string
	DialogType       string
	MarkersSummary   string
	IsRelevant       bool
	RefusalDeadline  bool
	NoBrigade        bool
	LongDuration     bool
	RedirectOtherOrg bool
	Street           string
	House            string
	ResidentPhrase   string
	ProblemDuration  string

	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsTerminal reports whether the task reached a final state.
func (t Task) IsTerminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusError
}

// Result carries the normalized analysis fields persisted on completion.
type Result struct {
	Summary          string
	Sentiment        string
	Transcript       string
	Address          string
	DialogType       string
	MarkersSummary   string
	IsRelevant       bool
	RefusalDeadline  bool
	NoBrigade        bool
	LongDuration     bool
	RedirectOtherOrg bool
	Street           string
	House            string
	ResidentPhrase   string
	ProblemDuration  string
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalTasks       int
	Error            string
}

// HealthSummary describes aggregated queue counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Queued     int
	Processing int
	Completed  int
	Errored    int
}
