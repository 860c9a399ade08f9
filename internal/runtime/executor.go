// Package runtime provides the chain execution engine.
// It orchestrates the execution of Input, Filter, and Output modules.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/respfilter/runtime/internal/errhandling"
	"github.com/respfilter/runtime/internal/logger"
	"github.com/respfilter/runtime/internal/modules/filter"
	"github.com/respfilter/runtime/internal/modules/input"
	"github.com/respfilter/runtime/internal/modules/output"
	"github.com/respfilter/runtime/pkg/chain"
	"github.com/respfilter/runtime/pkg/response"
)

// Error codes for chain execution errors
const (
	ErrCodeInputFailed   = "INPUT_FAILED"
	ErrCodeFilterFailed  = "FILTER_FAILED"
	ErrCodeShapeMismatch = errhandling.CodeShapeMismatch
	ErrCodeOutputFailed  = "OUTPUT_FAILED"
	ErrCodeInvalidInput  = "INVALID_INPUT"
)

// Execution status values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// DefaultPreviewDocuments is the number of documents shown in a dry-run preview
// when the chain does not set dryRunOptions.previewDocuments.
const DefaultPreviewDocuments = 3

// Common errors
var (
	// ErrNilChain is returned when the chain configuration is nil
	ErrNilChain = errors.New("chain configuration is nil")

	// ErrNilInputModule is returned when the input module is nil
	ErrNilInputModule = errors.New("input module is nil")

	// ErrNilOutputModule is returned when the output module is nil outside dry-run mode
	ErrNilOutputModule = errors.New("output module is nil")
)

// filterResult holds the result of running the filter modules.
type filterResult struct {
	batch  response.Batch
	err    error
	errIdx int
}

// stageTimings holds timing measurements for each execution stage
type stageTimings struct {
	inputDuration  time.Duration
	filterDuration time.Duration
	outputDuration time.Duration
}

// run carries the per-execution state shared by the stage helpers.
type run struct {
	ch      *chain.Chain
	runID   string
	result  *chain.ExecutionResult
	timings stageTimings
}

func (r *run) context(stage string) logger.ExecutionContext {
	return logger.ExecutionContext{
		ChainID:     r.ch.ID,
		ChainName:   r.ch.Name,
		RunID:       r.runID,
		Stage:       stage,
		FilterIndex: -1,
	}
}

// Executor runs filter chains: Input → Filters → Output.
//
// The Executor only interacts with modules through their public interfaces,
// so modules can be developed independently of the runtime.
type Executor struct {
	inputModule   input.Module
	filterModules []filter.Module
	outputModule  output.Module
	dryRun        bool
}

// NewExecutor creates an executor with no modules.
// Such an executor can only run ExecuteWithBatch without an output.
func NewExecutor(dryRun bool) *Executor {
	return &Executor{dryRun: dryRun}
}

// NewExecutorWithModules creates an executor with all modules configured.
//
// Parameters:
//   - inputModule: where the response batch is read from
//   - filterModules: filters applied in order (can be nil)
//   - outputModule: where the filtered batch is written
//   - dryRun: if true, the output module is not called and a preview is built
func NewExecutorWithModules(
	inputModule input.Module,
	filterModules []filter.Module,
	outputModule output.Module,
	dryRun bool,
) *Executor {
	return &Executor{
		inputModule:   inputModule,
		filterModules: filterModules,
		outputModule:  outputModule,
		dryRun:        dryRun,
	}
}

// Execute runs a chain with a background context.
func (e *Executor) Execute(ch *chain.Chain) (*chain.ExecutionResult, error) {
	return e.ExecuteWithContext(context.Background(), ch)
}

// ExecuteWithContext runs a chain with the given context.
//
// Execution flow:
//  1. Validate the chain and modules
//  2. Fetch the batch from the input module, then close it
//  3. Apply the filter modules in order, checking the shape after each one
//  4. Send the batch to the output module (skipped in dry-run mode)
//  5. Return the ExecutionResult with status and counts
//
// Returns both result and error; the result is never nil.
func (e *Executor) ExecuteWithContext(ctx context.Context, ch *chain.Chain) (*chain.ExecutionResult, error) {
	startedAt := time.Now()
	r, err := e.begin(ch, startedAt)
	if err != nil {
		return r.result, err
	}
	if e.inputModule == nil {
		return e.fail(r, startedAt, ErrCodeInvalidInput, "input", ErrNilInputModule)
	}
	if e.outputModule == nil && !e.dryRun {
		return e.fail(r, startedAt, ErrCodeInvalidInput, "output", ErrNilOutputModule)
	}

	if e.outputModule != nil {
		defer e.closeModule(r, "output", e.outputModule)
	}

	batch, docs, err := e.executeInput(ctx, r)
	e.closeModule(r, "input", e.inputModule)
	if err != nil {
		logger.LogExecutionEnd(r.context(""), StatusError, 0, time.Since(startedAt))
		return r.result, err
	}

	return e.filterAndSend(ctx, r, startedAt, batch, docs)
}

// ExecuteWithBatch runs the filters and output of a chain on a batch held
// in memory. No input module is used. The output module is optional here:
// without one, the filtered batch is only returned.
//
// The returned batch is nil when execution fails.
func (e *Executor) ExecuteWithBatch(ctx context.Context, ch *chain.Chain, batch response.Batch, docs response.Docs) (*chain.ExecutionResult, response.Batch, error) {
	startedAt := time.Now()
	r, err := e.begin(ch, startedAt)
	if err != nil {
		return r.result, nil, err
	}
	if e.outputModule != nil {
		defer e.closeModule(r, "output", e.outputModule)
	}

	filtered, err := e.applyFilters(ctx, r, startedAt, batch, docs)
	if err != nil {
		return r.result, nil, err
	}
	if e.outputModule != nil {
		if _, err := e.sendAndFinish(ctx, r, startedAt, batch, filtered, docs); err != nil {
			return r.result, nil, err
		}
		return r.result, filtered, nil
	}

	r.result.DocumentsProcessed = filtered.Len()
	r.result.ResponsesProcessed = filtered.Count()
	if e.dryRun {
		r.result.DryRunPreview = buildPreview(batch, filtered, ch.DryRunOptions)
	}
	e.finalizeSuccessWithMetrics(r, startedAt)
	return r.result, filtered, nil
}

// begin validates the chain and logs the start of the execution.
func (e *Executor) begin(ch *chain.Chain, startedAt time.Time) (*run, error) {
	r := &run{
		result: &chain.ExecutionResult{
			StartedAt: startedAt,
			Status:    StatusError,
		},
	}
	if ch == nil {
		logger.Error("chain execution failed: nil chain configuration")
		r.result.CompletedAt = time.Now()
		r.result.Error = buildExecutionError(ErrCodeInvalidInput, "", ErrNilChain)
		return r, ErrNilChain
	}

	r.ch = ch
	r.runID = newRunID()
	r.result.ChainID = ch.ID
	r.result.RunID = r.runID

	execCtx := r.context("")
	execCtx.DryRun = e.dryRun
	logger.LogExecutionStart(execCtx)
	return r, nil
}

// newRunID returns a time-ordered UUID, falling back to a random one.
func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (e *Executor) fail(r *run, startedAt time.Time, code, module string, err error) (*chain.ExecutionResult, error) {
	logger.Error("chain execution failed",
		slog.String("chain_id", r.ch.ID),
		slog.String("run_id", r.runID),
		slog.String("error", err.Error()),
	)
	r.result.CompletedAt = time.Now()
	r.result.Error = buildExecutionError(code, module, err)
	logger.LogExecutionEnd(r.context(""), StatusError, 0, time.Since(startedAt))
	return r.result, err
}

// filterAndSend runs the filter and output stages and finalizes the result.
func (e *Executor) filterAndSend(ctx context.Context, r *run, startedAt time.Time, batch response.Batch, docs response.Docs) (*chain.ExecutionResult, error) {
	filtered, err := e.applyFilters(ctx, r, startedAt, batch, docs)
	if err != nil {
		return r.result, err
	}
	return e.sendAndFinish(ctx, r, startedAt, batch, filtered, docs)
}

func (e *Executor) sendAndFinish(ctx context.Context, r *run, startedAt time.Time, before, filtered response.Batch, docs response.Docs) (*chain.ExecutionResult, error) {
	r.result.DocumentsProcessed = filtered.Len()
	r.result.ResponsesProcessed = filtered.Count()

	if e.dryRun {
		r.result.DryRunPreview = buildPreview(before, filtered, r.ch.DryRunOptions)
	}

	if err := e.executeOutput(ctx, r, filtered, docs); err != nil {
		logger.LogExecutionEnd(r.context(""), StatusError, filtered.Len(), time.Since(startedAt))
		return r.result, err
	}

	e.finalizeSuccessWithMetrics(r, startedAt)
	return r.result, nil
}

// applyFilters runs the filter stage and records any failure in the result.
func (e *Executor) applyFilters(ctx context.Context, r *run, startedAt time.Time, batch response.Batch, docs response.Docs) (response.Batch, error) {
	stageCtx := r.context("filter")
	logger.LogStageStart(stageCtx)

	filterStart := time.Now()
	res := e.executeFilters(ctx, r, batch, docs)
	r.timings.filterDuration = time.Since(filterStart)

	if res.err != nil {
		code := ErrCodeFilterFailed
		if errors.Is(res.err, errhandling.ErrShapeMismatch) {
			code = ErrCodeShapeMismatch
		}
		msg := fmt.Sprintf("filter module %d failed: %v", res.errIdx, res.err)

		r.result.CompletedAt = time.Now()
		r.result.Error = buildExecutionError(code, "filter", res.err)
		r.result.Error.Message = msg
		r.result.Error.Details["filterIndex"] = res.errIdx
		if t := e.filterType(res.errIdx); t != "" {
			r.result.Error.Details["filterType"] = t
		}

		logger.LogStageEnd(stageCtx, batch.Len(), r.timings.filterDuration, &logger.ExecutionError{Code: code, Message: msg})
		logger.LogExecutionEnd(r.context(""), StatusError, batch.Len(), time.Since(startedAt))
		return nil, fmt.Errorf("executing filter module %d: %w", res.errIdx, res.err)
	}

	logger.LogStageEnd(stageCtx, res.batch.Len(), r.timings.filterDuration, nil)
	return res.batch, nil
}

// executeFilters runs all filter modules in sequence on the batch.
// A filter that changes the batch shape fails the chain.
func (e *Executor) executeFilters(ctx context.Context, r *run, batch response.Batch, docs response.Docs) filterResult {
	current := batch.Clone()
	for i, module := range e.filterModules {
		if module == nil {
			logger.Warn("nil filter module encountered; skipping",
				slog.String("chain_id", r.ch.ID),
				slog.Int("filter_index", i),
			)
			continue
		}
		if err := ctx.Err(); err != nil {
			return filterResult{err: err, errIdx: i}
		}

		logger.Debug("executing filter module",
			slog.String("chain_id", r.ch.ID),
			slog.String("run_id", r.runID),
			slog.Int("filter_index", i),
			slog.String("filter_type", e.filterType(i)),
			slog.Int("documents", current.Len()),
		)

		start := time.Now()
		next, err := module.Apply(ctx, current, docs)
		if err != nil {
			logger.LogError("filter module execution failed", logger.ErrorContext{
				ChainID:       r.ch.ID,
				RunID:         r.runID,
				Stage:         "filter",
				ModuleType:    e.filterType(i),
				ModuleName:    e.filterName(r.ch, i),
				ErrorCode:     errhandling.GetErrorCode(err),
				ErrorMessage:  err.Error(),
				Err:           err,
				DocumentIndex: -1,
				DocumentCount: current.Len(),
				Duration:      time.Since(start),
			})
			return filterResult{err: err, errIdx: i}
		}
		if shapeErr := response.ShapeError(current, next); shapeErr != nil {
			return filterResult{err: errhandling.NewShapeError(i, shapeErr), errIdx: i}
		}

		logger.Debug("filter module completed",
			slog.String("chain_id", r.ch.ID),
			slog.Int("filter_index", i),
			slog.Int("responses", next.Count()),
			slog.Duration("duration", time.Since(start)),
		)
		current = next
	}
	return filterResult{batch: current, errIdx: -1}
}

func (e *Executor) filterType(i int) string {
	if i < 0 || i >= len(e.filterModules) {
		return ""
	}
	if typed, ok := e.filterModules[i].(filter.Typed); ok {
		return typed.Type()
	}
	return ""
}

func (e *Executor) filterName(ch *chain.Chain, i int) string {
	if i < 0 || i >= len(ch.Filters) {
		return ""
	}
	return ch.Filters[i].Name
}

// executeInput fetches the batch from the input module.
func (e *Executor) executeInput(ctx context.Context, r *run) (response.Batch, response.Docs, error) {
	stageCtx := r.context("input")
	logger.LogStageStart(stageCtx)

	start := time.Now()
	batch, docs, err := e.inputModule.Fetch(ctx)
	r.timings.inputDuration = time.Since(start)

	if err != nil {
		r.result.CompletedAt = time.Now()
		r.result.Error = buildExecutionError(ErrCodeInputFailed, "input", err)
		logger.LogStageEnd(stageCtx, 0, r.timings.inputDuration, &logger.ExecutionError{
			Code:    ErrCodeInputFailed,
			Message: err.Error(),
		})
		return nil, nil, fmt.Errorf("executing input module: %w", err)
	}

	logger.LogStageEnd(stageCtx, batch.Len(), r.timings.inputDuration, nil)
	return batch, docs, nil
}

// executeOutput sends the filtered batch to the output module.
// In dry-run mode the output module is not called.
func (e *Executor) executeOutput(ctx context.Context, r *run, batch response.Batch, docs response.Docs) error {
	if e.dryRun {
		logger.Debug("dry-run mode: skipping output module",
			slog.String("chain_id", r.ch.ID),
			slog.Int("documents_would_send", batch.Len()),
		)
		return nil
	}

	stageCtx := r.context("output")
	logger.LogStageStart(stageCtx)

	start := time.Now()
	written, err := e.outputModule.Send(ctx, batch, docs)
	r.timings.outputDuration = time.Since(start)
	r.result.DocumentsWritten = written

	if err != nil {
		r.result.CompletedAt = time.Now()
		r.result.Error = buildExecutionError(ErrCodeOutputFailed, "output", err)
		logger.LogStageEnd(stageCtx, batch.Len(), r.timings.outputDuration, &logger.ExecutionError{
			Code:    ErrCodeOutputFailed,
			Message: err.Error(),
		})
		return fmt.Errorf("executing output module: %w", err)
	}

	logger.LogStageEnd(stageCtx, written, r.timings.outputDuration, nil)
	return nil
}

// moduleCloser interface for modules that can be closed.
type moduleCloser interface {
	Close() error
}

// closeModule closes a module and logs any error.
func (e *Executor) closeModule(r *run, moduleName string, m moduleCloser) {
	if err := m.Close(); err != nil {
		logger.Warn("failed to close module",
			slog.String("chain_id", r.ch.ID),
			slog.String("module", moduleName),
			slog.String("error", err.Error()),
		)
	}
}

// finalizeSuccessWithMetrics marks the execution as successful and logs
// completion with stage timings.
func (e *Executor) finalizeSuccessWithMetrics(r *run, startedAt time.Time) {
	r.result.Status = StatusSuccess
	r.result.CompletedAt = time.Now()
	r.result.Error = nil

	totalDuration := time.Since(startedAt)
	var perSecond float64
	if r.result.ResponsesProcessed > 0 && totalDuration > 0 {
		perSecond = float64(r.result.ResponsesProcessed) / totalDuration.Seconds()
	}

	execCtx := r.context("")
	execCtx.DryRun = e.dryRun
	logger.LogExecutionEnd(execCtx, StatusSuccess, r.result.DocumentsProcessed, totalDuration)
	logger.LogMetrics(execCtx, logger.ExecutionMetrics{
		TotalDuration:      totalDuration,
		InputDuration:      r.timings.inputDuration,
		FilterDuration:     r.timings.filterDuration,
		OutputDuration:     r.timings.outputDuration,
		DocumentsProcessed: r.result.DocumentsProcessed,
		ResponsesProcessed: r.result.ResponsesProcessed,
		ResponsesPerSecond: perSecond,
	})
}

// buildExecutionError creates an ExecutionError carrying the error classification.
func buildExecutionError(code, module string, err error) *chain.ExecutionError {
	cl := errhandling.ClassifyError(err)
	details := map[string]interface{}{"category": string(cl.Category)}
	if cl.Code != "" {
		details["errorCode"] = cl.Code
	}
	return &chain.ExecutionError{
		Code:    code,
		Message: err.Error(),
		Module:  module,
		Details: details,
	}
}

// buildPreview pairs the input and filtered responses of the first documents.
func buildPreview(before, after response.Batch, opts *chain.DryRunOptions) []chain.DocumentPreview {
	limit := DefaultPreviewDocuments
	if opts != nil && opts.PreviewDocuments > 0 {
		limit = opts.PreviewDocuments
	}
	if limit > after.Len() {
		limit = after.Len()
	}

	previews := make([]chain.DocumentPreview, 0, limit)
	for i := 0; i < limit; i++ {
		var in []any
		if i < before.Len() {
			in = append([]any{}, before[i]...)
		}
		previews = append(previews, chain.DocumentPreview{
			Index:  i,
			Before: in,
			After:  append([]any{}, after[i]...),
		})
	}
	return previews
}
