package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mainite/videoslim/internal/jobs"
)

func TestNeedsMigration(t *testing.T) {
	tmpDir := t.TempDir()
	legacyPath := filepath.Join(tmpDir, "store")

	if NeedsMigration(legacyPath) {
		t.Error("expected no migration when file is missing")
	}
	if NeedsMigration("") {
		t.Error("expected no migration for empty path")
	}

	os.WriteFile(legacyPath, []byte("{}"), 0644)
	if !NeedsMigration(legacyPath) {
		t.Error("expected migration when legacy file exists")
	}
}

func TestMigration_ValidStore(t *testing.T) {
	tmpDir := t.TempDir()
	legacyPath := filepath.Join(tmpDir, "store")
	os.WriteFile(legacyPath, []byte(`{
		"last_profile": "default",
		"delete_audio": true,
		"window": {"w": 640, "h": 480}
	}`), 0644)

	store := newTestStore(t)
	result := MigrateLegacyStore(legacyPath, store)

	if !result.Success {
		t.Fatalf("migration failed: %s", result.ErrorMessage)
	}
	if result.SettingsImported != 3 {
		t.Errorf("expected 3 settings imported, got %d", result.SettingsImported)
	}

	tests := map[string]string{
		"last_profile": "default",
		"delete_audio": "true",
		"window":       `{"w": 640, "h": 480}`,
	}
	for key, want := range tests {
		got, ok, err := store.GetSetting(key)
		if err != nil || !ok {
			t.Fatalf("GetSetting(%s): ok=%v err=%v", key, ok, err)
		}
		if got != want {
			t.Errorf("%s: expected %q, got %q", key, want, got)
		}
	}

	if _, err := os.Stat(legacyPath); !os.IsNotExist(err) {
		t.Error("legacy file should be renamed")
	}
	if _, err := os.Stat(legacyPath + ".backup"); err != nil {
		t.Error("backup should exist")
	}
}

func TestMigration_EmptyInputs(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty file", ""},
		{"empty object", "{}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			legacyPath := filepath.Join(t.TempDir(), "store")
			os.WriteFile(legacyPath, []byte(tt.content), 0644)

			result := MigrateLegacyStore(legacyPath, newTestStore(t))
			if !result.Success || !result.WasEmpty {
				t.Errorf("expected empty success, got %+v", result)
			}
			if result.BackupPath != legacyPath+".backup" {
				t.Errorf("unexpected backup path %s", result.BackupPath)
			}
		})
	}
}

func TestMigration_Corrupt(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
	}{
		{"truncated", []byte(`{"last_profile": "def`)},
		{"invalid syntax", []byte(`{last_profile: default}`)},
		{"not an object", []byte(`["a", "b"]`)},
		{"binary garbage", []byte{0x00, 0xff, 0x13, 0x37}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			legacyPath := filepath.Join(t.TempDir(), "store")
			os.WriteFile(legacyPath, tt.content, 0644)

			store := newTestStore(t)
			result := MigrateLegacyStore(legacyPath, store)
			if result.Success {
				t.Error("expected migration to fail")
			}
			if result.ErrorMessage == "" {
				t.Error("expected error message")
			}
			if _, err := os.Stat(legacyPath + ".corrupt"); err != nil {
				t.Error("corrupt file should exist")
			}

			settings, err := store.Settings()
			if err != nil {
				t.Fatal(err)
			}
			if len(settings) != 0 {
				t.Errorf("expected no settings, got %v", settings)
			}
		})
	}
}

func TestInitStore_FreshStart(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "config", "videoslim.db")

	store, err := InitStore(dbPath, filepath.Join(tmpDir, "store"))
	if err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file should exist")
	}
}

func TestInitStore_WithMigration(t *testing.T) {
	tmpDir := t.TempDir()
	legacyPath := filepath.Join(tmpDir, "store")
	os.WriteFile(legacyPath, []byte(`{"last_profile": "fast"}`), 0644)

	store, err := InitStore(filepath.Join(tmpDir, "videoslim.db"), legacyPath)
	if err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	defer store.Close()

	if v, ok, _ := store.GetSetting("last_profile"); !ok || v != "fast" {
		t.Errorf("setting not migrated: %q %v", v, ok)
	}
	if _, err := os.Stat(legacyPath + ".backup"); err != nil {
		t.Error("backup should exist")
	}
}

func TestInitStore_MarksInterruptedTasks(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "videoslim.db")

	store1, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	task := createTestTask("running")
	task.Status = jobs.StatusProcessing
	store1.SaveTask(task)
	store1.Close()

	// Reopen via InitStore (simulates restart)
	store2, err := InitStore(dbPath, "")
	if err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	defer store2.Close()

	got, _ := store2.GetTask("running")
	if got == nil {
		t.Fatal("task missing after restart")
	}
	if got.Status != jobs.StatusFailed {
		t.Errorf("expected status failed after restart, got %s", got.Status)
	}
	if got.FinishedAt.IsZero() {
		t.Error("expected finish time to be set")
	}
}
