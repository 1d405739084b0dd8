package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mainite/videoslim/internal/jobs"
	_ "modernc.org/sqlite"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	profile TEXT NOT NULL,
	options TEXT NOT NULL,
	status TEXT NOT NULL,
	file_count INTEGER NOT NULL DEFAULT 0,
	current_index INTEGER NOT NULL DEFAULT 0,
	skipped TEXT,
	created_at TEXT NOT NULL,
	finished_at TEXT
);

CREATE TABLE IF NOT EXISTS task_files (
	task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	idx INTEGER NOT NULL,
	path TEXT NOT NULL,
	output_path TEXT NOT NULL,
	status TEXT NOT NULL,
	error TEXT,
	stage_count INTEGER NOT NULL DEFAULT 0,
	input_size INTEGER NOT NULL DEFAULT 0,
	output_size INTEGER,
	source_deleted INTEGER NOT NULL DEFAULT 0,
	elapsed_ms INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (task_id, idx)
);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL,
	applied_at TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks(created_at);
`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	mu   sync.RWMutex // Protects concurrent access
	path string
}

// NewSQLiteStore creates a new SQLite-backed store.
// The database file is created if it doesn't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Foreign keys are a per-connection setting
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	var version int
	err = db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			db.Close()
			return nil, fmt.Errorf("insert schema version: %w", err)
		}
	case err != nil:
		db.Close()
		return nil, fmt.Errorf("check schema version: %w", err)
	case version > schemaVersion:
		db.Close()
		return nil, fmt.Errorf("database schema v%d is newer than supported v%d", version, schemaVersion)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

// SaveTask inserts or updates the task row. File results are untouched.
func (s *SQLiteStore) SaveTask(task *jobs.TaskSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	options, err := json.Marshal(task.Options)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	var skipped any
	if len(task.Skipped) > 0 {
		data, err := json.Marshal(task.Skipped)
		if err != nil {
			return fmt.Errorf("encode skipped: %w", err)
		}
		skipped = string(data)
	}

	_, err = s.db.Exec(`
		INSERT INTO tasks (id, profile, options, status, file_count, current_index, skipped, created_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			current_index = excluded.current_index,
			finished_at = excluded.finished_at
	`,
		task.ID, task.Options.Profile, string(options), string(task.Status),
		len(task.Files), task.Current, skipped,
		formatTime(task.CreatedAt), formatTimePtr(task.FinishedAt),
	)
	return err
}

// SaveResult persists one file outcome, replacing any earlier row for the
// same index.
func (s *SQLiteStore) SaveResult(taskID string, r jobs.FileResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO task_files (
			task_id, idx, path, output_path, status, error, stage_count,
			input_size, output_size, source_deleted, elapsed_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		taskID, r.Index, r.Path, r.OutputPath, string(r.Status), nullString(r.Error), r.StageCount,
		r.InputSize, nullInt64(r.OutputSize), boolToInt(r.SourceDeleted), r.Elapsed.Milliseconds(),
	)
	return err
}

// GetTask retrieves a task by ID.
func (s *SQLiteStore) GetTask(id string) (*jobs.TaskSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT id, options, status, current_index, skipped, created_at, finished_at
		FROM tasks WHERE id = ?
	`, id)

	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadResultsLocked(task); err != nil {
		return nil, err
	}
	return task, nil
}

// ListTasks returns tasks newest first.
func (s *SQLiteStore) ListTasks(limit int) ([]*jobs.TaskSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1 // no limit in SQLite
	}
	rows, err := s.db.Query(`
		SELECT id, options, status, current_index, skipped, created_at, finished_at
		FROM tasks ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}

	var tasks []*jobs.TaskSummary
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		tasks = append(tasks, task)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Results are loaded after the task cursor is closed; the pool has a
	// single connection.
	for _, task := range tasks {
		if err := s.loadResultsLocked(task); err != nil {
			return nil, err
		}
	}
	return tasks, nil
}

func (s *SQLiteStore) loadResultsLocked(task *jobs.TaskSummary) error {
	rows, err := s.db.Query(`
		SELECT idx, path, output_path, status, error, stage_count,
			input_size, output_size, source_deleted, elapsed_ms
		FROM task_files WHERE task_id = ? ORDER BY idx
	`, task.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	task.Results = []jobs.FileResult{}
	for rows.Next() {
		var r jobs.FileResult
		var status string
		var errStr sql.NullString
		var outputSize sql.NullInt64
		var sourceDeleted int
		var elapsedMS int64

		if err := rows.Scan(
			&r.Index, &r.Path, &r.OutputPath, &status, &errStr, &r.StageCount,
			&r.InputSize, &outputSize, &sourceDeleted, &elapsedMS,
		); err != nil {
			return err
		}
		r.Status = jobs.Status(status)
		r.Error = errStr.String
		r.OutputSize = outputSize.Int64
		r.SourceDeleted = sourceDeleted != 0
		r.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		task.Results = append(task.Results, r)
	}
	return rows.Err()
}

// DeleteTask removes a task by ID (cascade removes its results).
func (s *SQLiteStore) DeleteTask(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM tasks WHERE id = ?", id)
	return err
}

// MarkInterrupted fails every task left in the processing state.
func (s *SQLiteStore) MarkInterrupted() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(`
		UPDATE tasks SET status = ?, finished_at = ? WHERE status = ?
	`, string(jobs.StatusFailed), formatTime(time.Now()), string(jobs.StatusProcessing))
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}

// Stats returns aggregate history statistics.
func (s *SQLiteStore) Stats() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats Stats
	if err := s.db.QueryRow("SELECT COUNT(*) FROM tasks").Scan(&stats.Tasks); err != nil {
		return stats, err
	}

	err := s.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(input_size), 0),
			COALESCE(SUM(output_size), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN input_size - COALESCE(output_size, 0) ELSE 0 END), 0)
		FROM task_files
	`, string(jobs.StatusSuccess), string(jobs.StatusFailed), string(jobs.StatusSuccess)).Scan(
		&stats.Files, &stats.Succeeded, &stats.Failed,
		&stats.InputBytes, &stats.OutputBytes, &stats.SavedBytes,
	)
	return stats, err
}

// GetSetting returns one UI setting.
func (s *SQLiteStore) GetSetting(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetSettings upserts values in one transaction.
func (s *SQLiteStore) SetSettings(values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for k, v := range values {
		if _, err := stmt.Exec(k, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Settings returns every UI setting.
func (s *SQLiteStore) Settings() (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT key, value FROM settings")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		settings[k] = v
	}
	return settings, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Helper functions for scanning rows

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*jobs.TaskSummary, error) {
	var task jobs.TaskSummary
	var options, status string
	var skipped, createdAt, finishedAt sql.NullString

	if err := row.Scan(&task.ID, &options, &status, &task.Current, &skipped, &createdAt, &finishedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(options), &task.Options); err != nil {
		return nil, fmt.Errorf("decode options of task %s: %w", task.ID, err)
	}
	if skipped.Valid {
		if err := json.Unmarshal([]byte(skipped.String), &task.Skipped); err != nil {
			return nil, fmt.Errorf("decode skipped of task %s: %w", task.ID, err)
		}
	}
	task.Status = jobs.Status(status)
	task.CreatedAt = parseTime(createdAt.String)
	task.FinishedAt = parseTime(finishedAt.String)
	return &task, nil
}

// Helper functions for SQL values

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt64(i int64) any {
	if i == 0 {
		return nil
	}
	return i
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
