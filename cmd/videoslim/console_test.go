package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mainite/videoslim/internal/bus"
	"github.com/mainite/videoslim/internal/jobs"
)

func TestPrintMessage(t *testing.T) {
	tests := []struct {
		msg  bus.Message
		want string
	}{
		{bus.CompressionStarted{FileCount: 2}, "  compressing 2 file(s)\n"},
		{bus.FileProgress{FileIndex: 1, FileCount: 2, File: "/v/a.mp4"}, "  [1/2] /v/a.mp4\n"},
		{bus.StageProgress{File: "/v/a.mp4", StageIndex: 2, StageCount: 4}, "    stage 2/4\n"},
		{bus.CompressionError{Title: "Error", Text: "failed to process /v/a.mp4: boom"}, "  Error: failed to process /v/a.mp4: boom\n"},
		{bus.CompressionFinished{ProcessedCount: 2}, "  finished, 2 file(s) processed\n"},
		{bus.Exit{}, ""},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		printMessage(&buf, tt.msg)
		if buf.String() != tt.want {
			t.Errorf("%s: got %q, expected %q", tt.msg.Kind(), buf.String(), tt.want)
		}
	}
}

func TestDrainConsolePrintsInOrder(t *testing.T) {
	b := bus.New()
	b.Send(bus.CompressionStarted{FileCount: 1})
	b.Send(bus.FileProgress{FileIndex: 1, FileCount: 1, File: "a.mp4"})
	b.Send(bus.CompressionFinished{ProcessedCount: 1})

	var buf bytes.Buffer
	drainConsole(&buf, b)

	out := buf.String()
	first := strings.Index(out, "compressing")
	last := strings.Index(out, "finished")
	if first < 0 || last < 0 || first > last {
		t.Errorf("unexpected output %q", out)
	}
	if b.Len() != 0 {
		t.Errorf("expected drained bus, %d left", b.Len())
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, &jobs.TaskSummary{
		Results: []jobs.FileResult{
			{OutputPath: "/v/a_x264.mp4", Status: jobs.StatusSuccess, InputSize: 3_000_000, OutputSize: 1_000_000},
			{OutputPath: "/v/b_x264.mp4", Status: jobs.StatusFailed, InputSize: 5_000_000},
		},
	})

	out := buf.String()
	if !strings.Contains(out, "/v/a_x264.mp4: 3.0 MB -> 1.0 MB") {
		t.Errorf("missing success line in %q", out)
	}
	if strings.Contains(out, "b_x264") {
		t.Errorf("failed file should not be listed: %q", out)
	}
	if !strings.Contains(out, "saved 2.0 MB") {
		t.Errorf("missing savings line in %q", out)
	}
}
