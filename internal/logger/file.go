package logger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

const defaultMaxLogFileSizeMB = 10

// FileOptions configures rotation of the log file. Zero MaxBackups or
// MaxAgeDays keeps every rotated file.
type FileOptions struct {
	MaxSizeMB  int // default 10
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// logFile is the open rotating log file, if any.
var logFile *lumberjack.Logger

// SetLogFile makes Logger write JSON records to path in addition to the
// console, which keeps consoleFormat. lumberjack rotates the file once it
// exceeds opts.MaxSizeMB.
func SetLogFile(path string, level slog.Level, consoleFormat OutputFormat, opts FileOptions) error {
	CloseLogFile()

	if strings.TrimSpace(path) == "" {
		return errors.New("log file path is empty")
	}
	// lumberjack opens lazily; surface a bad path now rather than on the first record.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	_ = f.Close()

	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = defaultMaxLogFileSizeMB
	}
	logFile = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}

	currentLevel = level
	currentFormat = consoleFormat
	Logger = slog.New(teeHandler{
		consoleHandler(console, level, consoleFormat),
		slog.NewJSONHandler(logFile, &slog.HandlerOptions{Level: level}),
	})

	Debug("log file opened",
		slog.String("path", path),
		slog.String("console_format", consoleFormat.String()),
		slog.Int("max_size_mb", opts.MaxSizeMB),
	)
	return nil
}

// CloseLogFile closes the log file, if one is open, and returns to
// console-only logging.
func CloseLogFile() {
	if logFile == nil {
		return
	}
	if err := logFile.Close(); err != nil {
		fmt.Fprintf(console, "failed to close log file: %v\n", err)
	}
	logFile = nil
	Logger = slog.New(consoleHandler(console, currentLevel, currentFormat))
}

// teeHandler sends every record to each of its handlers.
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
