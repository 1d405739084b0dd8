package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mainite/videoslim/internal/logger"
)

// MigrationResult contains the outcome of a migration attempt.
type MigrationResult struct {
	Success          bool
	SettingsImported int
	BackupPath       string
	WasEmpty         bool
	ErrorMessage     string
}

// NeedsMigration reports whether a legacy key/value store file exists.
func NeedsMigration(legacyPath string) bool {
	if legacyPath == "" {
		return false
	}
	info, err := os.Stat(legacyPath)
	return err == nil && info.Mode().IsRegular()
}

// MigrateLegacyStore imports the flat JSON object of the legacy settings
// file into the settings table. On success the file is renamed to .backup;
// on failure to .corrupt. Existing settings with the same key are replaced.
func MigrateLegacyStore(legacyPath string, s *SQLiteStore) *MigrationResult {
	result := &MigrationResult{}

	data, err := os.ReadFile(legacyPath)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("read legacy store: %v", err)
		handleMigrationFailure(legacyPath, result)
		return result
	}

	if len(data) == 0 {
		result.WasEmpty = true
		result.Success = true
		renameToBackup(legacyPath, result)
		return result
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		result.ErrorMessage = fmt.Sprintf("parse legacy store: %v", err)
		handleMigrationFailure(legacyPath, result)
		return result
	}

	if len(raw) == 0 {
		result.WasEmpty = true
		result.Success = true
		renameToBackup(legacyPath, result)
		return result
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		values[k] = legacyValue(v)
	}

	if err := s.SetSettings(values); err != nil {
		result.ErrorMessage = fmt.Sprintf("save settings: %v", err)
		handleMigrationFailure(legacyPath, result)
		return result
	}
	result.SettingsImported = len(values)
	result.Success = true
	renameToBackup(legacyPath, result)

	logger.Info("Migration complete",
		"settings_imported", result.SettingsImported,
		"backup", result.BackupPath,
	)
	return result
}

// legacyValue keeps strings as-is and stores anything else as its JSON text.
func legacyValue(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return string(v)
}

// handleMigrationFailure renames the legacy file to .corrupt and logs the error.
func handleMigrationFailure(legacyPath string, result *MigrationResult) {
	corruptPath := legacyPath + ".corrupt"

	if _, err := os.Stat(legacyPath); err == nil {
		if err := os.Rename(legacyPath, corruptPath); err != nil {
			logger.Error("Failed to rename corrupt store file", "error", err)
		} else {
			logger.Warn("Renamed corrupt store file", "path", corruptPath)
		}
	}

	logger.Error("Migration failed, starting with empty settings", "error", result.ErrorMessage)
}

// renameToBackup renames the legacy file to .backup.
func renameToBackup(legacyPath string, result *MigrationResult) {
	backupPath := legacyPath + ".backup"
	if err := os.Rename(legacyPath, backupPath); err != nil {
		logger.Warn("Failed to rename legacy store to backup", "error", err)
	} else {
		result.BackupPath = backupPath
	}
}

// InitStore opens the database, imports the legacy settings file when one
// is present, and fails any task a crash left in the processing state.
func InitStore(dbPath, legacyPath string) (*SQLiteStore, error) {
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if NeedsMigration(legacyPath) {
		logger.Info("Migrating legacy store to SQLite", "legacy", legacyPath, "db", dbPath)
		MigrateLegacyStore(legacyPath, store)
	}

	count, err := store.MarkInterrupted()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("mark interrupted tasks: %w", err)
	}
	if count > 0 {
		logger.Info("Marked interrupted tasks as failed", "count", count)
	}

	return store, nil
}
