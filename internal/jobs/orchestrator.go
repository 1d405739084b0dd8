package jobs

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mainite/videoslim/internal/bus"
	"github.com/mainite/videoslim/internal/encoder"
	"github.com/mainite/videoslim/internal/logger"
	"github.com/mainite/videoslim/internal/profile"
)

// Prober reads the media metadata that shapes a pipeline.
type Prober interface {
	Probe(ctx context.Context, path string) (*encoder.MediaInfo, error)
}

// Runner executes one pipeline stage.
type Runner interface {
	Run(ctx context.Context, stage encoder.Stage) (encoder.Result, error)
}

// Resolver looks up encoding profiles by name.
type Resolver interface {
	Resolve(name string) (profile.Profile, bool)
}

// Publisher receives progress messages.
type Publisher interface {
	Send(msg bus.Message)
}

// Recorder persists task history. This interface is implemented by
// internal/store.SQLiteStore.
type Recorder interface {
	SaveTask(task *TaskSummary) error
	SaveResult(taskID string, result FileResult) error
}

// CacheInvalidator is called with every path a task rewrote or removed.
type CacheInvalidator func(path string)

// Options configures an Orchestrator. Zero values are valid.
type Options struct {
	Builder         encoder.Builder
	ProbeTimeout    time.Duration
	Recorder        Recorder
	InvalidateCache CacheInvalidator
}

const defaultProbeTimeout = 30 * time.Second

// Orchestrator runs tasks one file at a time. Only one task may run at
// once because every pipeline shares the same temp files.
type Orchestrator struct {
	prober   Prober
	runner   Runner
	profiles Resolver
	pub      Publisher
	opts     Options

	mu      sync.Mutex // held for the whole of a run
	running atomic.Bool
	wg      sync.WaitGroup
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(prober Prober, runner Runner, profiles Resolver, pub Publisher, opts Options) *Orchestrator {
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = defaultProbeTimeout
	}
	return &Orchestrator{
		prober:   prober,
		runner:   runner,
		profiles: profiles,
		pub:      pub,
		opts:     opts,
	}
}

// Running reports whether a task is in progress.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// Process runs task to completion on the calling goroutine. It returns
// ErrBusy without emitting anything when another task is running, and
// ErrEmptyBatch when the task has no files. Per-file failures are reported
// as messages and never returned.
func (o *Orchestrator) Process(task *Task) error {
	if !o.mu.TryLock() {
		return ErrBusy
	}
	defer o.mu.Unlock()

	o.running.Store(true)
	defer o.running.Store(false)

	return o.process(task)
}

// Start runs task on its own goroutine. The busy check happens before
// Start returns.
func (o *Orchestrator) Start(task *Task) error {
	if !o.mu.TryLock() {
		return ErrBusy
	}
	o.running.Store(true)
	o.wg.Add(1)

	go func() {
		defer o.wg.Done()
		defer o.mu.Unlock()
		defer o.running.Store(false)
		_ = o.process(task)
	}()
	return nil
}

// Wait blocks until every task launched with Start has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) process(task *Task) error {
	task.setStatus(StatusProcessing)
	o.record(task)

	total := len(task.Files)
	if total == 0 {
		logger.Warn("Task has no files", "task_id", task.ID, "skipped", len(task.Skipped))
		o.pub.Send(bus.CompressionError{Title: "Error", Text: ErrEmptyBatch.Error()})
		task.setStatus(StatusFailed)
		o.record(task)
		return ErrEmptyBatch
	}

	logger.Info("Task started", "task_id", task.ID, "files", total, "profile", task.Options.Profile)
	o.pub.Send(bus.CompressionStarted{FileCount: total})

	for i, file := range task.Files {
		index := i + 1
		task.setCurrent(index)
		o.pub.Send(bus.FileProgress{FileIndex: index, FileCount: total, File: file.Path()})

		result := o.processFile(task, index, file)
		task.addResult(result)
		if o.opts.Recorder != nil {
			if err := o.opts.Recorder.SaveResult(task.ID, result); err != nil {
				logger.Warn("Failed to record file result", "task_id", task.ID, "path", file.Path(), "error", err)
			}
		}

		if result.Status == StatusFailed {
			o.pub.Send(bus.CompressionError{
				Title: "Error",
				Text:  fmt.Sprintf("failed to process %s: %s", file.Path(), result.Error),
			})
		}
	}

	summary := task.Summary()
	status := batchStatus(summary.Results)
	task.setStatus(status)
	o.record(task)

	logger.Info("Task finished", "task_id", task.ID, "status", status, "files", total)
	o.pub.Send(bus.CompressionFinished{ProcessedCount: total})
	return nil
}

// processFile compresses one file. Temp files are cleared before and after,
// whatever the outcome.
func (o *Orchestrator) processFile(task *Task, index int, file *VideoFile) FileResult {
	start := time.Now()
	result := FileResult{
		Index:      index,
		Path:       file.Path(),
		OutputPath: file.OutputPath(),
	}
	if info, err := os.Stat(file.Path()); err == nil {
		result.InputSize = info.Size()
	}

	encoder.CleanTempFiles(o.opts.Builder.Temp)
	err := o.encode(task, file, &result)
	encoder.CleanTempFiles(o.opts.Builder.Temp)

	result.Elapsed = time.Since(start)
	if err != nil {
		result.Status = StatusFailed
		result.Error = err.Error()
		logger.Error("File failed", "task_id", task.ID, "path", file.Path(), "error", err)
		return result
	}

	result.Status = StatusSuccess
	logger.Info("File compressed",
		"task_id", task.ID,
		"path", file.Path(),
		"output", result.OutputPath,
		"input_size", humanize.Bytes(uint64(result.InputSize)),
		"output_size", humanize.Bytes(uint64(result.OutputSize)),
		"elapsed", result.Elapsed.Round(time.Second),
	)
	return result
}

func (o *Orchestrator) encode(task *Task, file *VideoFile, result *FileResult) error {
	prof, ok := o.profiles.Resolve(task.Options.Profile)
	if !ok {
		return profileNotFoundError(task.Options.Profile)
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.opts.ProbeTimeout)
	info, err := o.prober.Probe(ctx, file.Path())
	cancel()
	if err != nil {
		return probeError(err)
	}

	pipeline := o.opts.Builder.Build(file.Path(), file.OutputPath(), prof.X264, task.Options.DeleteAudio, info)
	result.StageCount = len(pipeline)
	logger.Debug("Pipeline built", "path", file.Path(), "stages", len(pipeline), "rotated", info.Rotated, "audio", info.HasAudio())

	for k, stage := range pipeline {
		o.pub.Send(bus.StageProgress{File: file.Path(), StageIndex: k + 1, StageCount: len(pipeline)})
		if _, err := o.runner.Run(context.Background(), stage); err != nil {
			return err
		}
	}

	out, err := os.Stat(file.OutputPath())
	if err == nil {
		result.OutputSize = out.Size()
	}
	o.invalidate(file.OutputPath())

	if task.Options.DeleteSource && err == nil {
		if err := os.Remove(file.Path()); err != nil {
			return fmt.Errorf("failed to delete source: %w", err)
		}
		result.SourceDeleted = true
		o.invalidate(file.Path())
		logger.Info("Source deleted", "path", file.Path())
	}
	return nil
}

func (o *Orchestrator) invalidate(path string) {
	if o.opts.InvalidateCache != nil {
		o.opts.InvalidateCache(path)
	}
}

func (o *Orchestrator) record(task *Task) {
	if o.opts.Recorder == nil {
		return
	}
	if err := o.opts.Recorder.SaveTask(task.Summary()); err != nil {
		logger.Warn("Failed to record task", "task_id", task.ID, "error", err)
	}
}
