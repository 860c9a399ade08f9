package output

import (
	"bufio"
	"context"
	"encoding/json"
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

// Registry type names of the built-in output modules.
const (
	TypeFile   = "file"
	TypeStdout = "stdout"
)

// StdoutPath selects standard output as the destination.
const StdoutPath = "-"

// FileModule writes the filtered batch as JSON or JSONL to a file or to
// standard output. Files are written to a temporary sibling and renamed into
// place so a failed run never leaves a truncated result behind.
type FileModule struct {
	path        string
	format      string
	indent      bool
	includeDocs bool
	stdout      io.Writer
}

// FileOptions configures a FileModule.
type FileOptions struct {
	// Path is the destination; empty or "-" writes to standard output.
	Path string
	// Format is "json", "jsonl" or empty to infer from the extension.
	Format string
	// Indent pretty-prints FormatJSON output.
	Indent bool
	// OmitDocs drops document metadata from the output.
	OmitDocs bool
}

// NewFileFromConfig creates a file output module from configuration.
//
// Recognized config keys: path, format, indent (bool), includeDocs (bool,
// default true).
func NewFileFromConfig(cfg *chain.ModuleConfig) (*FileModule, error) {
	if cfg == nil {
		return nil, errhandling.NewMisconfiguredError(TypeFile, "configuration is nil")
	}
	opts := FileOptions{}
	opts.Path, _ = cfg.Config["path"].(string)
	opts.Format, _ = cfg.Config["format"].(string)
	opts.Indent, _ = cfg.Config["indent"].(bool)
	if include, ok := cfg.Config["includeDocs"].(bool); ok {
		opts.OmitDocs = !include
	}
	return NewFile(opts)
}

// NewFile creates a file output module.
func NewFile(opts FileOptions) (*FileModule, error) {
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		path = StdoutPath
	}
	if path != StdoutPath {
		if err := pathutil.ValidateFilePath(path); err != nil {
			return nil, errhandling.NewMisconfiguredError(TypeFile, err.Error())
		}
		path = filepath.Clean(path)
	}

	format, err := response.ResolveFormat(opts.Format, path)
	if err != nil {
		return nil, errhandling.NewMisconfiguredError(TypeFile, err.Error())
	}

	return &FileModule{
		path:        path,
		format:      format,
		indent:      opts.Indent,
		includeDocs: !opts.OmitDocs,
		stdout:      os.Stdout,
	}, nil
}

// Path returns the destination path ("-" for standard output).
func (m *FileModule) Path() string {
	return m.path
}

// Format returns the resolved serialization format.
func (m *FileModule) Format() string {
	return m.format
}

// Send encodes and writes the batch. The returned count is the number of
// documents written; it is 0 whenever an error is returned.
func (m *FileModule) Send(ctx context.Context, batch response.Batch, docs response.Docs) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !m.includeDocs {
		docs = nil
	}

	startTime := time.Now()
	var err error
	if m.path == StdoutPath {
		err = m.encode(m.stdout, batch, docs)
	} else {
		err = m.writeFile(batch, docs)
	}
	if err != nil {
		return 0, err
	}

	logger.Debug("output written",
		slog.String("module_type", TypeFile),
		slog.String("path", m.path),
		slog.String("format", m.format),
		slog.Int("documents", len(batch)),
		slog.Duration("duration", time.Since(startTime)),
	)
	return len(batch), nil
}

// outputFileMode matches what os.Create would give the file; CreateTemp uses 0600.
const outputFileMode = 0o644

func (m *FileModule) writeFile(batch response.Batch, docs response.Docs) error {
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errhandling.NewOutputError(errhandling.CodeWriteFailed,
			fmt.Sprintf("failed to create directory %q: %v", dir, err), err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(m.path)+".*.tmp")
	if err != nil {
		return errhandling.NewOutputError(errhandling.CodeWriteFailed,
			fmt.Sprintf("failed to create temporary file in %q: %v", dir, err), err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		if removeErr := os.Remove(tmpName); removeErr != nil && !os.IsNotExist(removeErr) {
			logger.Warn("failed to remove temporary output file",
				slog.String("path", tmpName),
				slog.String("error", removeErr.Error()),
			)
		}
	}

	if err := m.encode(tmp, batch, docs); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Chmod(outputFileMode); err != nil {
		_ = tmp.Close()
		cleanup()
		return errhandling.NewOutputError(errhandling.CodeWriteFailed,
			fmt.Sprintf("failed to set permissions on %q: %v", tmpName, err), err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return errhandling.NewOutputError(errhandling.CodeWriteFailed,
			fmt.Sprintf("failed to close %q: %v", tmpName, err), err)
	}
	if err := os.Rename(tmpName, m.path); err != nil {
		cleanup()
		return errhandling.NewOutputError(errhandling.CodeWriteFailed,
			fmt.Sprintf("failed to move output into place at %q: %v", m.path, err), err)
	}
	return nil
}

func (m *FileModule) encode(w io.Writer, batch response.Batch, docs response.Docs) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)

	var err error
	if m.format == response.FormatJSONL {
		for i, set := range batch {
			if err = enc.Encode(response.Line{Doc: docs.DocAt(i), Resps: nonNil(set)}); err != nil {
				break
			}
		}
	} else {
		if m.indent {
			enc.SetIndent("", "  ")
		}
		if batch == nil {
			batch = response.Batch{}
		}
		err = enc.Encode(response.File{Resps: batch, Docs: docs})
	}
	if err != nil {
		return errhandling.NewOutputError(errhandling.CodeWriteFailed,
			fmt.Sprintf("failed to encode output: %v", err), err)
	}
	if err := bw.Flush(); err != nil {
		return errhandling.NewOutputError(errhandling.CodeWriteFailed,
			fmt.Sprintf("failed to write output: %v", err), err)
	}
	return nil
}

func nonNil(set response.Set) response.Set {
	if set == nil {
		return response.Set{}
	}
	return set
}

// Close is a no-op; files are closed at the end of Send.
func (m *FileModule) Close() error {
	return nil
}

var _ Module = (*FileModule)(nil)
