package store

import (
	"github.com/mainite/videoslim/internal/jobs"
)

// Store defines the persistence interface for task history and settings.
// Implementations must be safe for concurrent use.
type Store interface {
	// SaveTask persists a task summary. If the task already exists (by ID),
	// its row is updated and its file results are kept.
	SaveTask(task *jobs.TaskSummary) error

	// SaveResult persists one file outcome of a task.
	SaveResult(taskID string, result jobs.FileResult) error

	// GetTask retrieves a task and its file results by ID.
	// Returns nil if not found.
	GetTask(id string) (*jobs.TaskSummary, error)

	// ListTasks returns up to limit tasks, newest first. A limit <= 0
	// returns every task.
	ListTasks(limit int) ([]*jobs.TaskSummary, error)

	// DeleteTask removes a task and its results.
	// Returns nil if the task doesn't exist.
	DeleteTask(id string) error

	// MarkInterrupted changes all tasks still marked "processing" to
	// "failed". Used on startup to recover from crashes.
	// Returns the number of tasks changed.
	MarkInterrupted() (int, error)

	// Stats returns aggregate history statistics.
	Stats() (Stats, error)

	// GetSetting returns a UI setting. ok is false when the key is unset.
	GetSetting(key string) (value string, ok bool, err error)

	// SetSettings stores UI settings in a single transaction.
	SetSettings(values map[string]string) error

	// Settings returns every UI setting.
	Settings() (map[string]string, error)

	// Close closes the store and releases resources.
	Close() error
}

// Stats holds history statistics.
type Stats struct {
	Tasks       int   `json:"tasks"`
	Files       int   `json:"files"`
	Succeeded   int   `json:"succeeded"`
	Failed      int   `json:"failed"`
	InputBytes  int64 `json:"input_bytes"`
	OutputBytes int64 `json:"output_bytes"`
	SavedBytes  int64 `json:"saved_bytes"` // over successful files only
}

var _ Store = (*SQLiteStore)(nil)
var _ jobs.Recorder = (*SQLiteStore)(nil)
