package encoder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestExecutorRunSuccess(t *testing.T) {
	skipOnWindows(t)

	res, err := NewExecutor().Run(context.Background(), Stage{
		Kind:    StageEncodeVideo,
		Program: "sh",
		Args:    []string{"-c", "echo encoded"},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %d", res.ExitCode)
	}
	if strings.TrimSpace(res.Stdout) != "encoded" {
		t.Errorf("unexpected stdout %q", res.Stdout)
	}
}

func TestExecutorRunNonZeroExit(t *testing.T) {
	skipOnWindows(t)

	stage := Stage{
		Kind:        StageMux,
		Program:     "sh",
		Args:        []string{"-c", "for i in 1 2 3 4 5 6 7; do echo line$i >&2; done; exit 3"},
		Description: "Muxing video and audio",
	}
	res, err := NewExecutor().Run(context.Background(), stage)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrStageFailed) {
		t.Errorf("expected ErrStageFailed, got %v", err)
	}

	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("expected *StageError, got %T", err)
	}
	if stageErr.ExitCode != 3 || res.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d/%d", stageErr.ExitCode, res.ExitCode)
	}
	if stageErr.Stage.Kind != StageMux {
		t.Errorf("expected mux stage, got %s", stageErr.Stage.Kind)
	}
	if strings.Contains(stageErr.Stderr, "line2") || !strings.Contains(stageErr.Stderr, "line7") {
		t.Errorf("expected last five stderr lines, got %q", stageErr.Stderr)
	}
	if !strings.Contains(err.Error(), "exit code 3") {
		t.Errorf("error text missing exit code: %s", err)
	}
}

func TestExecutorRunLaunchFailure(t *testing.T) {
	_, err := NewExecutor().Run(context.Background(), Stage{
		Kind:    StageEncodeAudio,
		Program: filepath.Join(t.TempDir(), "missing-encoder"),
	})

	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("expected *StageError, got %v", err)
	}
	if stageErr.ExitCode != -1 {
		t.Errorf("expected exit code -1, got %d", stageErr.ExitCode)
	}
	if !errors.Is(err, ErrStageFailed) {
		t.Error("expected ErrStageFailed")
	}
}

func TestExecutorRunContextTimeout(t *testing.T) {
	skipOnWindows(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewExecutor().Run(ctx, Stage{Program: "sh", Args: []string{"-c", "sleep 5"}})
	if err == nil {
		t.Fatal("expected error when context expires")
	}
	if time.Since(start) > 3*time.Second {
		t.Error("Run did not stop on context timeout")
	}
}

func TestExecutorRunContextTimeoutWithBackgroundHelper(t *testing.T) {
	skipOnWindows(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// The helper inherits stdout and stderr and outlives a plain kill of sh.
	start := time.Now()
	_, err := NewExecutor().Run(ctx, Stage{Program: "sh", Args: []string{"-c", "sleep 5 & wait"}})
	if err == nil {
		t.Fatal("expected error when context expires")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Run took %v after context timeout", elapsed)
	}
}

func TestLastLines(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"", 5, ""},
		{"\n\n", 5, ""},
		{"one", 5, "one"},
		{"a\nb\nc\n", 2, "b | c"},
		{"a\r\nb\r\n", 5, "a | b"},
	}
	for _, tt := range tests {
		if got := lastLines(tt.in, tt.n); got != tt.want {
			t.Errorf("lastLines(%q, %d) = %q, expected %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestCleanTempFiles(t *testing.T) {
	dir := t.TempDir()
	tf := NewTempFiles(dir)

	// Only some exist; the rest must be ignored.
	for _, p := range []string{tf.AudioWAV, tf.Video} {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	CleanTempFiles(tf)

	for _, p := range tf.All() {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("expected %s to be removed", p)
		}
	}

	// Second call on an empty set is a no-op.
	CleanTempFiles(tf)
}
