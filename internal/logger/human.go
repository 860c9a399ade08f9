package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// maxInlineAttrs is how many attributes a human-format line shows.
const maxInlineAttrs = 5

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
)

// HumanHandlerOptions configures the human-readable log handler.
type HumanHandlerOptions struct {
	Level     slog.Level
	UseColors bool
}

// HumanHandler is a slog.Handler writing one short line per record:
//
//	15:04:05 ✓ stage completed stage=filter document_count=120 duration=3ms
type HumanHandler struct {
	opts   HumanHandlerOptions
	mu     *sync.Mutex
	w      io.Writer
	attrs  []string
	prefix string // group prefix for attribute keys
}

// NewHumanHandler creates a handler writing to w. nil opts means info level
// without colors.
func NewHumanHandler(w io.Writer, opts *HumanHandlerOptions) *HumanHandler {
	h := &HumanHandler{w: w, mu: &sync.Mutex{}}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

// Enabled reports whether records at level are written.
func (h *HumanHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level
}

// Handle writes r as a single line.
func (h *HumanHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make([]string, 0, len(h.attrs)+r.NumAttrs())
	fields = append(fields, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		fields = append(fields, formatAttr(h.prefix, a))
		return true
	})

	var sb strings.Builder
	sb.WriteString(r.Time.Format(time.TimeOnly))
	sb.WriteByte(' ')
	sb.WriteString(h.symbol(r.Level, r.Message))
	sb.WriteByte(' ')
	sb.WriteString(r.Message)
	if len(fields) > maxInlineAttrs {
		fmt.Fprintf(&sb, " %s (+%d more)", strings.Join(fields[:maxInlineAttrs], " "), len(fields)-maxInlineAttrs)
	} else if len(fields) > 0 {
		sb.WriteByte(' ')
		sb.WriteString(strings.Join(fields, " "))
	}
	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, sb.String())
	return err
}

// WithAttrs returns a handler that prefixes every line with attrs.
func (h *HumanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = make([]string, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	for _, a := range attrs {
		clone.attrs = append(clone.attrs, formatAttr(h.prefix, a))
	}
	return &clone
}

// WithGroup returns a handler that qualifies later keys with name.
func (h *HumanHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

// symbol picks the line prefix. Info records whose message reports a
// completion get a check mark.
func (h *HumanHandler) symbol(level slog.Level, message string) string {
	var sym, color string
	switch {
	case level >= slog.LevelError:
		sym, color = "✗", ansiRed
	case level >= slog.LevelWarn:
		sym, color = "⚠", ansiYellow
	case level >= slog.LevelInfo && isSuccessMessage(message):
		sym, color = "✓", ansiGreen
	case level >= slog.LevelInfo:
		sym, color = "ℹ", ansiCyan
	default:
		sym, color = "·", ansiReset
	}
	if !h.opts.UseColors {
		return sym
	}
	return color + sym + ansiReset
}

func isSuccessMessage(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "completed") || strings.Contains(lower, "success")
}

func formatAttr(prefix string, a slog.Attr) string {
	key := prefix + a.Key
	switch v := a.Value.Resolve().Any().(type) {
	case time.Duration:
		return key + "=" + formatDuration(v)
	case float64:
		return fmt.Sprintf("%s=%.2f", key, v)
	default:
		return fmt.Sprintf("%s=%v", key, v)
	}
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", d.Seconds())
	default:
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
}
