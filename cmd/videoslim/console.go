package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mainite/videoslim/internal/bus"
	"github.com/mainite/videoslim/internal/jobs"
	"github.com/mainite/videoslim/internal/logger"
)

// runConsole runs one task and prints its messages until it finishes.
// It returns the process exit code.
func runConsole(orchestrator *jobs.Orchestrator, messages *bus.Bus, task *jobs.Task, interval time.Duration) int {
	for _, s := range task.Skipped {
		fmt.Fprintf(os.Stderr, "  skipped %s: %s\n", s.Path, s.Reason)
	}

	if err := orchestrator.Start(task); err != nil {
		if errors.Is(err, jobs.ErrBusy) {
			fmt.Fprintln(os.Stderr, err)
		} else {
			logger.Error("Failed to start task", "error", err)
		}
		return 1
	}

	done := make(chan struct{})
	go func() {
		orchestrator.Wait()
		close(done)
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		drainConsole(os.Stdout, messages)
		select {
		case <-done:
			drainConsole(os.Stdout, messages)
			printSummary(os.Stdout, task.Summary())
			if task.Status() == jobs.StatusFailed {
				return 1
			}
			return 0
		case <-ticker.C:
		}
	}
}

func drainConsole(w io.Writer, messages *bus.Bus) {
	for {
		msg, ok := messages.TryReceive()
		if !ok {
			return
		}
		printMessage(w, msg)
	}
}

func printMessage(w io.Writer, msg bus.Message) {
	switch m := msg.(type) {
	case bus.Warning:
		fmt.Fprintf(w, "  warning: %s: %s\n", m.Title, m.Text)
	case bus.Error:
		fmt.Fprintf(w, "  error: %s: %s\n", m.Title, m.Text)
	case bus.UpdateAvailable:
		fmt.Fprintf(w, "  a newer release is available: %s\n", m.Latest)
	case bus.Exit:
	case bus.ProfilesLoaded:
		fmt.Fprintf(w, "  profiles: %v\n", m.Names)
	case bus.CompressionStarted:
		fmt.Fprintf(w, "  compressing %d file(s)\n", m.FileCount)
	case bus.StageProgress:
		fmt.Fprintf(w, "    stage %d/%d\n", m.StageIndex, m.StageCount)
	case bus.FileProgress:
		fmt.Fprintf(w, "  [%d/%d] %s\n", m.FileIndex, m.FileCount, m.File)
	case bus.CompressionError:
		fmt.Fprintf(w, "  %s: %s\n", m.Title, m.Text)
	case bus.CompressionFinished:
		fmt.Fprintf(w, "  finished, %d file(s) processed\n", m.ProcessedCount)
	}
}

func printSummary(w io.Writer, summary *jobs.TaskSummary) {
	var saved int64
	for _, r := range summary.Results {
		if r.Status != jobs.StatusSuccess {
			continue
		}
		saved += r.InputSize - r.OutputSize
		fmt.Fprintf(w, "  %s: %s -> %s\n", r.OutputPath,
			humanize.Bytes(uint64(r.InputSize)), humanize.Bytes(uint64(r.OutputSize)))
	}
	if saved > 0 {
		fmt.Fprintf(w, "  saved %s\n", humanize.Bytes(uint64(saved)))
	}
}
