// Package logger is the process-wide structured logger. Output is slog text
// on stdout, optionally copied to a log file that is truncated at startup.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Log is the global logger instance
var Log *slog.Logger

var (
	level   slog.LevelVar // shared by every handler Init/InitFile builds
	logFile *os.File
)

// Init logs to stdout only.
func Init(levelStr string) {
	SetLevel(levelStr)
	Log = newLogger(os.Stdout)
}

// InitFile logs to stdout and to path. If the file cannot be opened the
// logger still works on stdout and the error is returned.
func InitFile(levelStr, path string) error {
	SetLevel(levelStr)
	Close()

	if path == "" {
		Log = newLogger(os.Stdout)
		return nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		Log = newLogger(os.Stdout)
		return err
	}
	logFile = f
	Log = newLogger(io.MultiWriter(os.Stdout, f))
	return nil
}

// Close releases the log file opened by InitFile. Later records go to
// stdout only.
func Close() {
	if logFile == nil {
		return
	}
	_ = logFile.Close()
	logFile = nil
	Log = newLogger(os.Stdout)
}

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: &level}))
}

// SetLevel changes the level at runtime. Accepts debug, info, warn (or
// warning) and error in any case; anything else means info.
func SetLevel(levelStr string) {
	name := strings.ToLower(strings.TrimSpace(levelStr))
	if name == "warning" {
		name = "warn"
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		lvl = slog.LevelInfo
	}
	level.Set(lvl)
}

func logAt(lvl slog.Level, msg string, args []any) {
	if Log != nil {
		Log.Log(context.Background(), lvl, msg, args...)
	}
}

// Debug logs at debug level.
func Debug(msg string, args ...any) { logAt(slog.LevelDebug, msg, args) }

// Info logs at info level.
func Info(msg string, args ...any) { logAt(slog.LevelInfo, msg, args) }

// Warn logs at warn level.
func Warn(msg string, args ...any) { logAt(slog.LevelWarn, msg, args) }

// Error logs at error level.
func Error(msg string, args ...any) { logAt(slog.LevelError, msg, args) }
