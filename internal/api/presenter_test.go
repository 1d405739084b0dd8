package api

import (
	"context"
	"testing"
	"time"

	"github.com/mainite/videoslim/internal/bus"
)

func TestPresenterFoldsMessages(t *testing.T) {
	b := bus.New()
	p := NewPresenter(b, time.Second)

	b.Send(bus.ProfilesLoaded{Names: []string{"default", "small"}})
	b.Send(bus.CompressionStarted{FileCount: 2})
	b.Send(bus.FileProgress{FileIndex: 1, FileCount: 2, File: "/v/a.mp4"})
	b.Send(bus.StageProgress{File: "/v/a.mp4", StageIndex: 3, StageCount: 4})

	if n := p.Poll(); n != 4 {
		t.Fatalf("expected 4 messages applied, got %d", n)
	}

	s := p.Snapshot()
	if !s.Busy || s.FileIndex != 1 || s.FileCount != 2 {
		t.Errorf("unexpected progress %+v", s)
	}
	if s.StageIndex != 3 || s.StageCount != 4 {
		t.Errorf("expected stage 3/4, got %d/%d", s.StageIndex, s.StageCount)
	}
	if len(s.Profiles) != 2 {
		t.Errorf("expected 2 profiles, got %v", s.Profiles)
	}

	b.Send(bus.CompressionError{Title: "Error", Text: "failed to process /v/a.mp4: boom"})
	b.Send(bus.FileProgress{FileIndex: 2, FileCount: 2, File: "/v/b.mp4"})
	b.Send(bus.CompressionFinished{ProcessedCount: 2})
	p.Poll()

	s = p.Snapshot()
	if s.Busy {
		t.Error("expected not busy after finish")
	}
	if s.Processed != 2 || s.Errors != 1 {
		t.Errorf("expected 2 processed and 1 error, got %d and %d", s.Processed, s.Errors)
	}
	if s.LastError == nil || s.LastError.Text != "failed to process /v/a.mp4: boom" {
		t.Errorf("unexpected last error %+v", s.LastError)
	}
	if s.StageIndex != 0 {
		t.Errorf("expected stage reset, got %d", s.StageIndex)
	}
}

func TestPresenterNotices(t *testing.T) {
	b := bus.New()
	p := NewPresenter(b, time.Second)

	b.Send(bus.Warning{Title: "Warning", Text: "profile file was corrupt"})
	b.Send(bus.Error{Title: "Error", Text: "a compression task is already running"})
	b.Send(bus.UpdateAvailable{Latest: "v2.1.0"})
	p.Poll()

	s := p.Snapshot()
	if s.LastWarning == nil || s.LastWarning.Text != "profile file was corrupt" {
		t.Errorf("unexpected warning %+v", s.LastWarning)
	}
	if s.LastError == nil || s.LastError.Title != "Error" {
		t.Errorf("unexpected error %+v", s.LastError)
	}
	if !s.UpdateAvailable || s.LatestVersion != "v2.1.0" {
		t.Errorf("expected update v2.1.0, got %v %q", s.UpdateAvailable, s.LatestVersion)
	}
}

func TestPresenterSnapshotIsCopy(t *testing.T) {
	b := bus.New()
	p := NewPresenter(b, time.Second)
	b.Send(bus.ProfilesLoaded{Names: []string{"default"}})
	b.Send(bus.Error{Title: "Error", Text: "x"})
	p.Poll()

	s := p.Snapshot()
	s.Profiles[0] = "changed"
	s.LastError.Text = "changed"

	again := p.Snapshot()
	if again.Profiles[0] != "default" || again.LastError.Text != "x" {
		t.Errorf("snapshot shares state with presenter: %+v", again)
	}
}

func TestPresenterBroadcast(t *testing.T) {
	b := bus.New()
	p := NewPresenter(b, time.Second)

	ch := p.Subscribe()
	b.Send(bus.CompressionFinished{ProcessedCount: 1})
	p.Poll()

	select {
	case data := <-ch:
		if string(data) != `{"processed_count":1,"type":"compression_finished"}` {
			t.Errorf("unexpected payload %s", data)
		}
	default:
		t.Fatal("expected a broadcast event")
	}

	p.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Error("expected channel closed after unsubscribe")
	}
	// A second unsubscribe must not panic.
	p.Unsubscribe(ch)
}

func TestPresenterRunStopsOnExit(t *testing.T) {
	b := bus.New()
	p := NewPresenter(b, 10*time.Millisecond)
	b.Send(bus.Exit{})

	done := make(chan struct{})
	go func() {
		p.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after Exit")
	}
	if !p.Snapshot().Exiting {
		t.Error("expected exiting state")
	}
}

func TestPresenterRunStopsOnCancel(t *testing.T) {
	p := NewPresenter(bus.New(), 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestPresenterSlowSubscriberKeepsState(t *testing.T) {
	b := bus.New()
	p := NewPresenter(b, time.Second)
	ch := p.Subscribe() // never read

	const files = 150
	b.Send(bus.CompressionStarted{FileCount: files})
	for i := 1; i <= files; i++ {
		b.Send(bus.FileProgress{FileIndex: i, FileCount: files, File: "/v/clip.mp4"})
	}
	b.Send(bus.CompressionFinished{ProcessedCount: files})

	if n := p.Poll(); n != files+2 {
		t.Fatalf("expected %d messages applied, got %d", files+2, n)
	}
	if got := len(ch); got != cap(ch) {
		t.Errorf("expected full subscriber buffer, got %d of %d", got, cap(ch))
	}

	s := p.Snapshot()
	if s.Busy || s.Processed != files || s.FileIndex != files {
		t.Errorf("state lost messages: %+v", s)
	}
	if b.Len() != 0 {
		t.Errorf("expected drained bus, %d left", b.Len())
	}
}
