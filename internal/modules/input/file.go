package input

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/respfilter/runtime/internal/errhandling"
	"github.com/respfilter/runtime/internal/logger"
	"github.com/respfilter/runtime/internal/pathutil"
	"github.com/respfilter/runtime/pkg/chain"
	"github.com/respfilter/runtime/pkg/response"
)

// Registry type names of the built-in input modules.
const (
	TypeFile   = "file"
	TypeInline = "inline"
)

// StdinPath selects standard input as the source.
const StdinPath = "-"

// maxLineSize bounds a single JSONL record.
const maxLineSize = 16 * 1024 * 1024

// ErrMissingPath is returned when a file input has no path configured.
var ErrMissingPath = errors.New("file input requires 'path'")

// FileModule reads a response batch from a JSON or JSONL file, or from
// standard input when the path is "-".
type FileModule struct {
	path   string
	format string
	stdin  io.Reader
}

// NewFileFromConfig creates a file input module from configuration.
//
// Recognized config keys: path (required), format ("json", "jsonl" or
// empty to infer from the extension).
func NewFileFromConfig(cfg *chain.ModuleConfig) (*FileModule, error) {
	if cfg == nil {
		return nil, errhandling.NewMisconfiguredError(TypeFile, "configuration is nil")
	}
	path, _ := cfg.Config["path"].(string)
	format, _ := cfg.Config["format"].(string)
	return NewFile(path, format)
}

// NewFile creates a file input module reading path in the given format.
func NewFile(path, format string) (*FileModule, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errhandling.NewMisconfiguredError(TypeFile, ErrMissingPath.Error())
	}
	if path != StdinPath {
		if err := pathutil.ValidateFilePath(path); err != nil {
			return nil, errhandling.NewMisconfiguredError(TypeFile, err.Error())
		}
		path = filepath.Clean(path)
	}

	resolved, err := response.ResolveFormat(format, path)
	if err != nil {
		return nil, errhandling.NewMisconfiguredError(TypeFile, err.Error())
	}

	return &FileModule{path: path, format: resolved, stdin: os.Stdin}, nil
}

// Path returns the configured source path.
func (m *FileModule) Path() string {
	return m.path
}

// Format returns the resolved serialization format.
func (m *FileModule) Format() string {
	return m.format
}

// Fetch reads and decodes the whole source.
func (m *FileModule) Fetch(ctx context.Context) (response.Batch, response.Docs, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	startTime := time.Now()
	logger.Debug("input module reading file",
		slog.String("module_type", TypeFile),
		slog.String("path", m.path),
		slog.String("format", m.format),
	)

	var r io.Reader
	if m.path == StdinPath {
		r = m.stdin
	} else {
		f, err := os.Open(m.path)
		if err != nil {
			return nil, nil, errhandling.NewInputError(errhandling.CodeReadFailed,
				fmt.Sprintf("failed to open %q: %v", m.path, err), err)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil {
				logger.Warn("failed to close input file",
					slog.String("path", m.path),
					slog.String("error", closeErr.Error()),
				)
			}
		}()
		r = f
	}

	var (
		batch response.Batch
		docs  response.Docs
		err   error
	)
	if m.format == response.FormatJSONL {
		batch, docs, err = decodeLines(ctx, r, m.path)
	} else {
		batch, docs, err = decodeFile(r, m.path)
	}
	if err != nil {
		return nil, nil, err
	}

	logger.Debug("input file decoded",
		slog.String("path", m.path),
		slog.Int("documents", len(batch)),
		slog.Int("responses", batch.Count()),
		slog.Duration("duration", time.Since(startTime)),
	)
	return batch, docs, nil
}

// Close is a no-op; the file is closed at the end of Fetch.
func (m *FileModule) Close() error {
	return nil
}

func decodeFile(r io.Reader, path string) (response.Batch, response.Docs, error) {
	var file response.File
	dec := json.NewDecoder(r)
	if err := dec.Decode(&file); err != nil {
		return nil, nil, errhandling.NewInputError(errhandling.CodeDecodeFailed,
			fmt.Sprintf("failed to decode %q: %v", path, err), err)
	}
	if file.Resps == nil {
		return nil, nil, errhandling.NewInputError(errhandling.CodeDecodeFailed,
			fmt.Sprintf("%q has no \"resps\" field", path), nil)
	}
	if len(file.Docs) > 0 && len(file.Docs) != len(file.Resps) {
		return nil, nil, errhandling.NewInputError(errhandling.CodeDecodeFailed,
			fmt.Sprintf("%q has %d response sets but %d docs", path, len(file.Resps), len(file.Docs)), nil)
	}
	return normalize(file.Resps), file.Docs, nil
}

func decodeLines(ctx context.Context, r io.Reader, path string) (response.Batch, response.Docs, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	batch := response.Batch{}
	docs := response.Docs{}
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec response.Line
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, nil, errhandling.NewInputError(errhandling.CodeDecodeFailed,
				fmt.Sprintf("%s:%d: %v", path, lineNo, err), err)
		}
		if rec.Resps == nil {
			rec.Resps = response.Set{}
		}
		batch = append(batch, rec.Resps)
		docs = append(docs, rec.Doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, errhandling.NewInputError(errhandling.CodeReadFailed,
			fmt.Sprintf("failed to read %q: %v", path, err), err)
	}
	return batch, docs, nil
}

// normalize replaces null response sets with empty ones.
func normalize(batch response.Batch) response.Batch {
	for i, set := range batch {
		if set == nil {
			batch[i] = response.Set{}
		}
	}
	return batch
}

// NewInlineFromConfig creates an in-memory input from a chain configuration
// carrying the batch directly under "resps" (and optionally "docs").
func NewInlineFromConfig(cfg *chain.ModuleConfig) (*MemoryModule, error) {
	if cfg == nil {
		return nil, errhandling.NewMisconfiguredError(TypeInline, "configuration is nil")
	}
	if _, ok := cfg.Config["resps"]; !ok {
		return nil, errhandling.NewMisconfiguredError(TypeInline, "inline input requires 'resps'")
	}

	raw, err := json.Marshal(cfg.Config)
	if err != nil {
		return nil, errhandling.NewMisconfiguredError(TypeInline, err.Error())
	}
	batch, docs, err := decodeFile(strings.NewReader(string(raw)), "inline config")
	if err != nil {
		return nil, errhandling.NewMisconfiguredError(TypeInline, err.Error())
	}
	return NewMemory(batch, docs), nil
}

var _ Module = (*FileModule)(nil)
