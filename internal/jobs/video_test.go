package jobs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

var testExts = []string{".mp4", ".mkv", ".mov", ".avi"}

func touch(t *testing.T, path string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("fake video content"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewVideoFile(t *testing.T) {
	dir := t.TempDir()
	path := touch(t, filepath.Join(dir, "Holiday Clip.MOV"))

	v, err := NewVideoFile(path, testExts)
	if err != nil {
		t.Fatalf("NewVideoFile failed: %v", err)
	}
	if v.Path() != path {
		t.Errorf("expected path %s, got %s", path, v.Path())
	}
	if v.FullName() != "Holiday Clip.MOV" {
		t.Errorf("unexpected full name %s", v.FullName())
	}
	if v.Name() != "Holiday Clip" {
		t.Errorf("unexpected name %s", v.Name())
	}
	if v.Ext() != ".mov" {
		t.Errorf("expected lower-cased ext, got %s", v.Ext())
	}
	want := filepath.Join(dir, "Holiday Clip_x264.mov")
	if v.OutputPath() != want {
		t.Errorf("expected output %s, got %s", want, v.OutputPath())
	}
	if v.OutputPath() == v.Path() {
		t.Error("output path equals input path")
	}
}

func TestNewVideoFileRejects(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "notes.txt"))
	if err := os.Mkdir(filepath.Join(dir, "folder.mp4"), 0755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing", filepath.Join(dir, "missing.mp4")},
		{"unsupported extension", filepath.Join(dir, "notes.txt")},
		{"directory", filepath.Join(dir, "folder.mp4")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewVideoFile(tt.path, testExts)
			if !errors.Is(err, ErrUnsupportedFile) {
				t.Errorf("expected ErrUnsupportedFile, got %v", err)
			}
		})
	}
}

func TestNewVideoFileRelativePath(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.mp4"))
	t.Chdir(dir)

	v, err := NewVideoFile("a.mp4", testExts)
	if err != nil {
		t.Fatalf("NewVideoFile failed: %v", err)
	}
	if !filepath.IsAbs(v.Path()) {
		t.Errorf("expected absolute path, got %s", v.Path())
	}
}

func TestOutputPathFollowsInputNotWorkingDir(t *testing.T) {
	src := t.TempDir()
	path := filepath.Join(src, "clips", "b.mkv")
	touch(t, path)
	t.Chdir(t.TempDir())

	v, err := NewVideoFile(path, testExts)
	if err != nil {
		t.Fatalf("NewVideoFile failed: %v", err)
	}
	want := filepath.Join(src, "clips", "b_x264.mkv")
	if v.OutputPath() != want {
		t.Errorf("expected output %s, got %s", want, v.OutputPath())
	}
}
