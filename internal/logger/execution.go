package logger

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// ExecutionContext identifies where in a chain run a record was emitted.
// Empty fields are omitted from the log; FilterIndex is only logged for the
// filter stage.
type ExecutionContext struct {
	ChainID     string
	ChainName   string
	RunID       string
	Stage       string // input, filter, output
	ModuleType  string
	ModuleName  string
	DryRun      bool
	FilterIndex int
}

// ExecutionError is the error summary attached to a failed stage.
type ExecutionError struct {
	Code    string
	Message string
}

// ErrorContext carries everything LogError reports about a failure.
type ErrorContext struct {
	ChainID    string
	ChainName  string
	RunID      string
	Stage      string
	ModuleType string
	ModuleName string

	ErrorCode    string
	ErrorMessage string
	// Err is walked with errors.Unwrap to log the cause chain.
	Err error

	// DocumentIndex is the failing document, -1 when unknown.
	DocumentIndex int
	DocumentCount int
	Path          string
	Duration      time.Duration

	Extra map[string]interface{}
}

// ExecutionMetrics are the timings and counts of one chain run.
type ExecutionMetrics struct {
	TotalDuration      time.Duration
	InputDuration      time.Duration
	FilterDuration     time.Duration
	OutputDuration     time.Duration
	DocumentsProcessed int
	ResponsesProcessed int
	ResponsesPerSecond float64
}

// attrList accumulates slog attributes for Logger calls.
type attrList []any

// str appends key=value unless value is empty.
func (l *attrList) str(key, value string) {
	if value != "" {
		*l = append(*l, slog.String(key, value))
	}
}

func (l *attrList) add(attrs ...slog.Attr) {
	for _, a := range attrs {
		*l = append(*l, a)
	}
}

func contextAttrs(ctx ExecutionContext) attrList {
	l := attrList{slog.String("chain_id", ctx.ChainID)}
	l.str("chain_name", ctx.ChainName)
	l.str("run_id", ctx.RunID)
	l.str("stage", ctx.Stage)
	l.str("module_type", ctx.ModuleType)
	l.str("module_name", ctx.ModuleName)
	if ctx.DryRun {
		l.add(slog.Bool("dry_run", true))
	}
	if ctx.Stage == "filter" && ctx.FilterIndex >= 0 {
		l.add(slog.Int("filter_index", ctx.FilterIndex))
	}
	return l
}

// WithExecution returns a logger carrying the execution context.
func WithExecution(ctx ExecutionContext) *slog.Logger {
	return Logger.With(contextAttrs(ctx)...)
}

// LogExecutionStart logs the start of a chain execution.
func LogExecutionStart(ctx ExecutionContext) {
	Logger.Info("execution started", contextAttrs(ctx)...)
}

// LogExecutionEnd logs the end of a chain execution with its final status.
func LogExecutionEnd(ctx ExecutionContext, status string, documentsProcessed int, duration time.Duration) {
	l := contextAttrs(ctx)
	l.add(
		slog.String("status", status),
		slog.Int("documents_processed", documentsProcessed),
		slog.Duration("duration", duration),
	)
	Logger.Info("execution completed", l...)
}

// LogStageStart logs the start of the input, filter or output stage.
func LogStageStart(ctx ExecutionContext) {
	Logger.Info("stage started", contextAttrs(ctx)...)
}

// LogStageEnd logs the end of a stage, at error level when err is non-nil.
func LogStageEnd(ctx ExecutionContext, documentCount int, duration time.Duration, err *ExecutionError) {
	l := contextAttrs(ctx)
	l.add(slog.Int("document_count", documentCount), slog.Duration("duration", duration))
	if err == nil {
		Logger.Info("stage completed", l...)
		return
	}
	l.add(slog.String("error_code", err.Code), slog.String("error", err.Message))
	Logger.Error("stage failed", l...)
}

// LogMetrics logs the timings and throughput of a finished run.
func LogMetrics(ctx ExecutionContext, metrics ExecutionMetrics) {
	l := contextAttrs(ctx)
	l.add(
		slog.Duration("total_duration", metrics.TotalDuration),
		slog.Duration("input_duration", metrics.InputDuration),
		slog.Duration("filter_duration", metrics.FilterDuration),
		slog.Duration("output_duration", metrics.OutputDuration),
		slog.Int("documents_processed", metrics.DocumentsProcessed),
		slog.Int("responses_processed", metrics.ResponsesProcessed),
		slog.Float64("responses_per_second", metrics.ResponsesPerSecond),
	)
	Logger.Info("execution metrics", l...)
}

// LogError logs a failure at error level. Zero-valued fields are omitted;
// Extra keys are logged in sorted order.
func LogError(message string, errCtx ErrorContext) {
	var l attrList
	l.str("chain_id", errCtx.ChainID)
	l.str("chain_name", errCtx.ChainName)
	l.str("run_id", errCtx.RunID)
	l.str("stage", errCtx.Stage)
	l.str("module_type", errCtx.ModuleType)
	l.str("module_name", errCtx.ModuleName)
	l.str("error_code", errCtx.ErrorCode)
	l.str("error", errCtx.ErrorMessage)

	if errCtx.Err != nil {
		l.str("error_type", fmt.Sprintf("%T", errCtx.Err))
		if causes := unwrapChain(errCtx.Err); len(causes) > 1 {
			l.str("error_chain", strings.Join(causes, " -> "))
		}
	}
	if errCtx.DocumentIndex >= 0 {
		l.add(slog.Int("document_index", errCtx.DocumentIndex))
	}
	if errCtx.DocumentCount > 0 {
		l.add(slog.Int("document_count", errCtx.DocumentCount))
	}
	l.str("path", errCtx.Path)
	if errCtx.Duration > 0 {
		l.add(slog.Duration("duration", errCtx.Duration))
	}
	keys := make([]string, 0, len(errCtx.Extra))
	for k := range errCtx.Extra {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		l.add(slog.Any(k, errCtx.Extra[k]))
	}

	Logger.Error(message, l...)
}

// unwrapChain returns the messages of err and each error it wraps.
func unwrapChain(err error) []string {
	var msgs []string
	for ; err != nil; err = errors.Unwrap(err) {
		msgs = append(msgs, err.Error())
	}
	return msgs
}
