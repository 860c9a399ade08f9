// Package logger is the structured logging layer of the runtime, built on
// log/slog.
//
// Every package logs through the package-level Logger so that the CLI can
// switch level, console format (JSON or human) and an optional rotating log
// file in one place. Console output goes to stderr; stdout is reserved for
// filtered batches. Field names are snake_case (chain_id, run_id, stage,
// module_type, filter_index, ...).
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the default logger instance.
var Logger *slog.Logger

var (
	console       io.Writer = os.Stderr
	currentLevel            = slog.LevelInfo
	currentFormat           = FormatJSON
)

func init() {
	Logger = slog.New(consoleHandler(console, currentLevel, currentFormat))
}

// OutputFormat selects how console logs are rendered.
type OutputFormat int

const (
	// FormatJSON writes one JSON object per record.
	FormatJSON OutputFormat = iota
	// FormatHuman writes a short symbol-prefixed line per record.
	FormatHuman
)

// String returns the name accepted by ParseFormat.
func (f OutputFormat) String() string {
	if f == FormatHuman {
		return "human"
	}
	return "json"
}

// ParseFormat converts "json" or "human" to an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "human", "text", "console":
		return FormatHuman, nil
	}
	return FormatJSON, fmt.Errorf("unknown log format %q (expected json or human)", s)
}

// ParseLevel converts debug/info/warn/error (any case) to a slog.Level.
// An empty string means info.
func ParseLevel(s string) (slog.Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q: %w", s, err)
	}
	return level, nil
}

// SetConsole redirects console logs to w, keeping level and format.
func SetConsole(w io.Writer) {
	console = w
	SetLevelAndFormat(currentLevel, currentFormat)
}

// SetLevel changes the level, keeping the console format.
func SetLevel(level slog.Level) {
	SetLevelAndFormat(level, currentFormat)
}

// SetFormat changes the console format, keeping the level.
func SetFormat(format OutputFormat) {
	SetLevelAndFormat(currentLevel, format)
}

// SetLevelAndFormat replaces Logger with a console-only logger.
// An open log file is left open but no longer written; call SetLogFile again
// to keep it.
func SetLevelAndFormat(level slog.Level, format OutputFormat) {
	currentLevel = level
	currentFormat = format
	Logger = slog.New(consoleHandler(console, level, format))
}

func consoleHandler(w io.Writer, level slog.Level, format OutputFormat) slog.Handler {
	if format == FormatHuman {
		return NewHumanHandler(w, &HumanHandlerOptions{Level: level, UseColors: isTerminal(w)})
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

// Info logs an informational message.
func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}
