package jobs

import (
	"os"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mainite/videoslim/internal/browse"
	"github.com/mainite/videoslim/internal/logger"
)

// Status represents the current state of a task
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
)

// IsTerminal returns true if the task has finished
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// TaskOptions is the user's compression request.
type TaskOptions struct {
	Targets      []string `json:"targets"`
	Profile      string   `json:"profile"`
	DeleteAudio  bool     `json:"delete_audio"`
	DeleteSource bool     `json:"delete_source"`
	Recursive    bool     `json:"recursive"`
}

// SkippedTarget is a target that did not resolve to a video file.
type SkippedTarget struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// FileResult is the outcome of one file in a task.
type FileResult struct {
	Index         int           `json:"index"` // 1-based
	Path          string        `json:"path"`
	OutputPath    string        `json:"output_path"`
	Status        Status        `json:"status"`
	Error         string        `json:"error,omitempty"`
	StageCount    int           `json:"stage_count"`
	InputSize     int64         `json:"input_size"`
	OutputSize    int64         `json:"output_size,omitempty"`
	SourceDeleted bool          `json:"source_deleted,omitempty"`
	Elapsed       time.Duration `json:"elapsed"`
}

// Task is one batch compression request. Status, Current and Results are
// written only by the Orchestrator; read them through Summary.
type Task struct {
	ID      string
	Options TaskOptions
	Files   []*VideoFile
	Skipped []SkippedTarget

	mu         sync.RWMutex
	status     Status
	current    int
	results    []FileResult
	createdAt  time.Time
	finishedAt time.Time
}

// TaskSummary is a point-in-time copy of a task's state.
type TaskSummary struct {
	ID         string          `json:"id"`
	Options    TaskOptions     `json:"options"`
	Files      []string        `json:"files"`
	Skipped    []SkippedTarget `json:"skipped,omitempty"`
	Status     Status          `json:"status"`
	Current    int             `json:"current"`
	Results    []FileResult    `json:"results"`
	CreatedAt  time.Time       `json:"created_at"`
	FinishedAt time.Time       `json:"finished_at,omitempty"`
}

// NewTask resolves opts.Targets into files, in target order. Targets that
// are missing or unsupported are logged and skipped; a task with no files
// is still returned.
func NewTask(opts TaskOptions, exts []string) *Task {
	opts.Targets = slices.Clone(opts.Targets)

	t := &Task{
		ID:        uuid.NewString(),
		Options:   opts,
		status:    StatusPending,
		createdAt: time.Now(),
	}

	for _, target := range opts.Targets {
		info, err := os.Stat(target)
		if err != nil {
			logger.Warn("Target does not exist", "path", target)
			t.Skipped = append(t.Skipped, SkippedTarget{Path: target, Reason: "not found"})
			continue
		}

		if info.IsDir() && opts.Recursive {
			for _, path := range browse.Scan(target, exts) {
				t.add(path, exts)
			}
			continue
		}
		t.add(target, exts)
	}

	return t
}

func (t *Task) add(path string, exts []string) {
	file, err := NewVideoFile(path, exts)
	if err != nil {
		logger.Warn("Skipping file", "path", path, "error", err)
		t.Skipped = append(t.Skipped, SkippedTarget{Path: path, Reason: err.Error()})
		return
	}
	t.Files = append(t.Files, file)
}

// Status returns the current task status.
func (t *Task) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Summary returns a copy of the task state.
func (t *Task) Summary() *TaskSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	files := make([]string, len(t.Files))
	for i, f := range t.Files {
		files[i] = f.Path()
	}
	return &TaskSummary{
		ID:         t.ID,
		Options:    t.Options,
		Files:      files,
		Skipped:    slices.Clone(t.Skipped),
		Status:     t.status,
		Current:    t.current,
		Results:    slices.Clone(t.results),
		CreatedAt:  t.createdAt,
		FinishedAt: t.finishedAt,
	}
}

func (t *Task) setStatus(s Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = s
	if s.IsTerminal() {
		t.finishedAt = time.Now()
	}
}

func (t *Task) setCurrent(i int) {
	t.mu.Lock()
	t.current = i
	t.mu.Unlock()
}

func (t *Task) addResult(r FileResult) {
	t.mu.Lock()
	t.results = append(t.results, r)
	t.mu.Unlock()
}

// batchStatus is failed when nothing ran or any file failed.
func batchStatus(results []FileResult) Status {
	if len(results) == 0 {
		return StatusFailed
	}
	for _, r := range results {
		if r.Status != StatusSuccess {
			return StatusFailed
		}
	}
	return StatusSuccess
}
