// Package filter provides implementations for filter modules.
// Script module rewrites responses with a JavaScript function using the Goja engine.
package filter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/respfilter/runtime/internal/errhandling"
	"github.com/respfilter/runtime/internal/logger"
	"github.com/respfilter/runtime/internal/pathutil"
	"github.com/respfilter/runtime/pkg/response"
)

// MaxScriptLength is the maximum allowed script length in bytes (100KB).
const MaxScriptLength = 100 * 1024

// Common errors for script module
var (
	// ErrScriptEmpty is returned when the script is empty or whitespace-only
	ErrScriptEmpty = errors.New("script cannot be empty")
	// ErrScriptTooLong is returned when the script exceeds MaxScriptLength
	ErrScriptTooLong = errors.New("script exceeds maximum length")
	// ErrMissingTransformFunc is returned when the script doesn't define a transform function
	ErrMissingTransformFunc = errors.New("transform function not found in script")
	// ErrTransformNotFunction is returned when transform is defined but is not a function
	ErrTransformNotFunction = errors.New("transform is not a function")
	// ErrTransformUndefined is returned when transform returns undefined
	ErrTransformUndefined = errors.New("transform returned undefined")
)

// ScriptConfig represents the configuration for a script filter module.
// Either Script or ScriptFile must be provided (but not both).
type ScriptConfig struct {
	// Script is inline JavaScript defining transform(response, doc, index)
	Script string `json:"script,omitempty"`
	// ScriptFile is the path to a JavaScript file defining the same function
	ScriptFile string `json:"scriptFile,omitempty"`
	// OnError specifies error handling mode: "fail" (default) or "log"
	// (log and keep the original response)
	OnError string `json:"onError,omitempty"`
}

// ScriptModule calls a user-defined transform(response, doc, index) function
// for every response and uses its return value as the new response.
//
// A goja.Runtime is not goroutine-safe; Apply holds mu for the whole batch.
// Cancellation interrupts the running script.
type ScriptModule struct {
	onError     string
	runtime     *goja.Runtime
	transformFn goja.Callable
	mu          sync.Mutex
}

// NewScriptFromConfig creates a new script filter module from configuration.
// The script is compiled and run once so that transform is defined.
func NewScriptFromConfig(config ScriptConfig) (*ScriptModule, error) {
	source, err := resolveScriptSource(config)
	if err != nil {
		return nil, err
	}
	if err := validateScript(source); err != nil {
		return nil, err
	}

	onError := config.OnError
	if onError == "" {
		onError = OnErrorFail
	}
	if onError != OnErrorFail && onError != OnErrorLog {
		logger.Warn("invalid onError value for script module; defaulting to fail",
			slog.String("on_error", onError),
		)
		onError = OnErrorFail
	}

	vm := goja.New()
	if _, err := vm.RunString(source); err != nil {
		return nil, errhandling.NewScriptError(errhandling.CodeCompileFailed,
			fmt.Sprintf("script compilation failed: %v", err), err)
	}

	transformVal := vm.Get("transform")
	if transformVal == nil || goja.IsUndefined(transformVal) {
		return nil, errhandling.NewMisconfiguredError(TypeScript, ErrMissingTransformFunc.Error())
	}
	transformFn, ok := goja.AssertFunction(transformVal)
	if !ok {
		return nil, errhandling.NewMisconfiguredError(TypeScript, ErrTransformNotFunction.Error())
	}

	logger.Debug("script module initialized",
		slog.Int("script_length", len(source)),
		slog.String("on_error", onError),
		slog.Bool("from_file", config.ScriptFile != ""),
	)

	return &ScriptModule{
		onError:     onError,
		runtime:     vm,
		transformFn: transformFn,
	}, nil
}

// resolveScriptSource returns the inline script or reads ScriptFile.
func resolveScriptSource(config ScriptConfig) (string, error) {
	if config.Script != "" && config.ScriptFile != "" {
		return "", errhandling.NewMisconfiguredError(TypeScript,
			"cannot specify both 'script' and 'scriptFile'")
	}
	if config.Script != "" {
		return config.Script, nil
	}
	if config.ScriptFile == "" {
		return "", errhandling.NewMisconfiguredError(TypeScript,
			"either 'script' or 'scriptFile' must be provided")
	}

	if err := pathutil.ValidateFilePath(config.ScriptFile); err != nil {
		return "", errhandling.NewMisconfiguredError(TypeScript, err.Error())
	}
	cleaned := filepath.Clean(config.ScriptFile)
	if filepath.IsAbs(cleaned) {
		logger.Warn("scriptFile uses absolute path", slog.String("path", cleaned))
	}

	file, err := os.Open(cleaned)
	if err != nil {
		return "", errhandling.NewScriptError(errhandling.CodeReadFailed,
			fmt.Sprintf("failed to open script file %q: %v", config.ScriptFile, err), err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			logger.Warn("failed to close script file",
				slog.String("file", config.ScriptFile),
				slog.String("error", closeErr.Error()),
			)
		}
	}()

	content, err := io.ReadAll(io.LimitReader(file, MaxScriptLength+1))
	if err != nil {
		return "", errhandling.NewScriptError(errhandling.CodeReadFailed,
			fmt.Sprintf("failed to read script file %q: %v", config.ScriptFile, err), err)
	}
	if len(content) > MaxScriptLength {
		return "", errhandling.NewMisconfiguredError(TypeScript,
			fmt.Sprintf("script file %q is larger than %d bytes", config.ScriptFile, MaxScriptLength))
	}
	return string(content), nil
}

func validateScript(script string) error {
	if strings.TrimSpace(script) == "" {
		return errhandling.NewMisconfiguredError(TypeScript, ErrScriptEmpty.Error())
	}
	if len(script) > MaxScriptLength {
		return errhandling.NewMisconfiguredError(TypeScript,
			fmt.Sprintf("%v: %d bytes exceeds maximum %d bytes", ErrScriptTooLong, len(script), MaxScriptLength))
	}
	return nil
}

// ParseScriptConfig parses a script filter configuration from raw config.
func ParseScriptConfig(cfg map[string]interface{}) (ScriptConfig, error) {
	config := ScriptConfig{}

	script, hasScript := cfg["script"].(string)
	scriptFile, hasScriptFile := cfg["scriptFile"].(string)

	if hasScript && hasScriptFile {
		return config, errhandling.NewMisconfiguredError(TypeScript,
			"cannot specify both 'script' and 'scriptFile'")
	}
	if !hasScript && !hasScriptFile {
		if cfg["script"] != nil {
			return config, errhandling.NewMisconfiguredError(TypeScript, "field 'script' must be a string")
		}
		if cfg["scriptFile"] != nil {
			return config, errhandling.NewMisconfiguredError(TypeScript, "field 'scriptFile' must be a string")
		}
		return config, errhandling.NewMisconfiguredError(TypeScript,
			"either 'script' or 'scriptFile' is required")
	}

	config.Script = script
	config.ScriptFile = scriptFile
	if onError, ok := cfg["onError"].(string); ok {
		config.OnError = onError
	}
	return config, nil
}

// Type returns the registry name of the filter.
func (m *ScriptModule) Type() string {
	return TypeScript
}

// Apply implements the filter.Module interface.
func (m *ScriptModule) Apply(ctx context.Context, resps response.Batch, docs response.Docs) (response.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stop := m.watchContext(ctx)
	defer stop()

	startTime := time.Now()
	errorCount := 0

	out, err := applyValues(ctx, resps, func(docIdx, respIdx int, value any) (any, error) {
		result, err := m.call(value, docs.DocAt(docIdx), docIdx)
		if err == nil {
			return result, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if m.onError == OnErrorFail {
			return nil, err
		}
		errorCount++
		logger.Error("script error (keeping original response)",
			slog.String("module_type", TypeScript),
			slog.Int("document_index", docIdx),
			slog.Int("response_index", respIdx),
			slog.String("error", err.Error()),
		)
		return value, nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("script filter applied",
		slog.Int("documents", len(out)),
		slog.Int("error_count", errorCount),
		slog.Duration("duration", time.Since(startTime)),
	)
	return out, nil
}

// watchContext interrupts the runtime when ctx is canceled. The returned
// function stops watching and clears any pending interrupt.
func (m *ScriptModule) watchContext(ctx context.Context) func() {
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		select {
		case <-ctx.Done():
			m.runtime.Interrupt(ctx.Err().Error())
		case <-done:
		}
	}()
	return func() {
		close(done)
		<-finished
		m.runtime.ClearInterrupt()
	}
}

// call invokes transform for one response.
func (m *ScriptModule) call(value any, doc response.Doc, docIdx int) (any, error) {
	var jsDoc goja.Value = goja.Null()
	if doc != nil {
		jsDoc = m.runtime.ToValue(cloneValue(map[string]interface{}(doc)))
	}

	result, err := m.transformFn(goja.Undefined(), m.runtime.ToValue(cloneValue(value)), jsDoc, m.runtime.ToValue(docIdx))
	if err != nil {
		var jsErr *goja.Exception
		if errors.As(err, &jsErr) {
			return nil, errhandling.NewScriptError(errhandling.CodeScriptFailed,
				fmt.Sprintf("script execution failed at document %d: %v", docIdx, jsErr.Value()), err)
		}
		return nil, errhandling.NewScriptError(errhandling.CodeScriptFailed,
			fmt.Sprintf("script execution failed at document %d: %v", docIdx, err), err)
	}

	if result == nil || goja.IsUndefined(result) {
		return nil, errhandling.NewScriptError(errhandling.CodeScriptFailed,
			fmt.Sprintf("script at document %d: %v", docIdx, ErrTransformUndefined), ErrTransformUndefined)
	}
	if goja.IsNull(result) {
		return nil, nil
	}
	return result.Export(), nil
}

// cloneValue deep-copies maps and slices so that goja, which wraps Go maps
// and slices by reference, never writes into the caller's data.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]interface{}:
		c := make(map[string]interface{}, len(t))
		for k, x := range t {
			c[k] = cloneValue(x)
		}
		return c
	case []interface{}:
		c := make([]interface{}, len(t))
		for i, x := range t {
			c[i] = cloneValue(x)
		}
		return c
	default:
		return v
	}
}

var _ Module = (*ScriptModule)(nil)
