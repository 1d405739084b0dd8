package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/mainite/videoslim/internal/logger"
)

// ErrStageFailed matches every StageError.
var ErrStageFailed = errors.New("stage failed")

// Result is the outcome of one stage invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Elapsed  time.Duration
}

// StageError reports a stage that exited non-zero or could not be started.
// ExitCode is -1 when the process never ran.
type StageError struct {
	Stage    Stage
	ExitCode int
	Stderr   string // last lines of stderr
	Err      error
}

func (e *StageError) Error() string {
	msg := fmt.Sprintf("%s (%s) failed with exit code %d", e.Stage.Description, e.Stage.Program, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StageError) Unwrap() []error {
	return []error{ErrStageFailed, e.Err}
}

// waitDelay bounds how long Run waits for output pipes after the context
// is done and the process has been killed.
const waitDelay = time.Second

// Executor runs stages as child processes.
type Executor struct{}

// NewExecutor creates an Executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Run invokes the stage and waits for it to exit. A non-zero exit and a
// failure to launch are both returned as *StageError.
func (e *Executor) Run(ctx context.Context, stage Stage) (Result, error) {
	cmd := exec.CommandContext(ctx, stage.Program, stage.Args...)
	prepareCmd(cmd)
	// Output pipes held open by a surviving grandchild must not block Wait.
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("Running stage", "kind", stage.Kind, "command", stage.String())

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
		Elapsed: time.Since(start),
	}

	if err == nil {
		return res, nil
	}

	res.ExitCode = -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
	}

	tail := lastLines(res.Stderr, 5)
	if tail != "" {
		logger.Error("Stage failed", "kind", stage.Kind, "exit_code", res.ExitCode, "stderr", tail)
	}

	return res, &StageError{
		Stage:    stage,
		ExitCode: res.ExitCode,
		Stderr:   tail,
		Err:      err,
	}
}

// lastLines returns up to n trailing non-empty lines joined with " | ".
func lastLines(s string, n int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return strings.Join(lines, " | ")
}

// CleanTempFiles removes every temp file. Missing files are ignored and
// delete failures are only logged.
func CleanTempFiles(t TempFiles) {
	for _, path := range t.All() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Failed to delete temp file", "path", path, "error", err)
		}
	}
}
