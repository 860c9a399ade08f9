// Package filter provides implementations for filter modules.
// Condition module applies a nested filter only to the documents whose
// metadata satisfies an expression.
package filter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/respfilter/runtime/internal/errhandling"
	"github.com/respfilter/runtime/internal/logger"
	"github.com/respfilter/runtime/pkg/response"
)

// Common errors for condition module
var (
	// ErrEmptyExpression is returned when no expression is configured
	ErrEmptyExpression = errors.New("expression cannot be empty")
	// ErrInvalidExpression is returned when the expression syntax is invalid
	ErrInvalidExpression = errors.New("invalid expression syntax")
	// ErrMissingThen is returned when a condition has no 'then' filter
	ErrMissingThen = errors.New("condition requires a 'then' filter")
)

// ConditionConfig represents the configuration for a condition filter module.
type ConditionConfig struct {
	// Expression is evaluated once per document with the variables
	// doc (metadata), index (document position) and responses (the set).
	Expression string `json:"expression"`
	// OnError specifies evaluation error handling: "fail" (default) or "log"
	// (log and treat the document as not selected)
	OnError string `json:"onError,omitempty"`
	// Then is applied to documents where the expression is true (required)
	Then *NestedModuleConfig `json:"then"`
	// Else is applied to the remaining documents (optional; default pass-through)
	Else *NestedModuleConfig `json:"else,omitempty"`
}

// NestedModuleConfig represents a nested filter module configuration.
type NestedModuleConfig struct {
	Type   string                 `json:"type"`
	Config map[string]interface{} `json:"config,omitempty"`
}

// NestedModuleCreator builds nested modules. It is set by the factory package
// at init time, which keeps this package free of a registry import.
var NestedModuleCreator func(cfg NestedModuleConfig) (Module, error)

// ConditionModule implements per-document conditional filtering.
type ConditionModule struct {
	expression string
	onError    string
	program    *vm.Program
	thenModule Module
	elseModule Module
}

// NewConditionFromConfig creates a new condition filter module from configuration.
// The expression is compiled once here; nested modules are built through
// NestedModuleCreator.
func NewConditionFromConfig(config ConditionConfig) (*ConditionModule, error) {
	expression := strings.TrimSpace(config.Expression)
	if expression == "" {
		return nil, errhandling.NewMisconfiguredError(TypeCondition, ErrEmptyExpression.Error())
	}
	if config.Then == nil {
		return nil, errhandling.NewMisconfiguredError(TypeCondition, ErrMissingThen.Error())
	}

	onError := config.OnError
	if onError == "" {
		onError = OnErrorFail
	}
	if onError != OnErrorFail && onError != OnErrorLog {
		logger.Warn("invalid onError value for condition module; defaulting to fail",
			slog.String("on_error", onError),
		)
		onError = OnErrorFail
	}

	program, err := expr.Compile(expression, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, errhandling.NewExpressionError(errhandling.CodeCompileFailed,
			fmt.Sprintf("%v: %v", ErrInvalidExpression, err), err)
	}

	thenModule, err := createNestedModule(config.Then)
	if err != nil {
		return nil, fmt.Errorf("failed to create 'then' module: %w", err)
	}
	var elseModule Module
	if config.Else != nil {
		elseModule, err = createNestedModule(config.Else)
		if err != nil {
			return nil, fmt.Errorf("failed to create 'else' module: %w", err)
		}
	}

	logger.Debug("condition module initialized",
		slog.String("expression", expression),
		slog.String("on_error", onError),
		slog.String("then", config.Then.Type),
		slog.Bool("has_else", elseModule != nil),
	)

	return &ConditionModule{
		expression: expression,
		onError:    onError,
		program:    program,
		thenModule: thenModule,
		elseModule: elseModule,
	}, nil
}

func createNestedModule(cfg *NestedModuleConfig) (Module, error) {
	if cfg.Type == "" {
		return nil, errhandling.NewMisconfiguredError(TypeCondition, "nested filter type is required")
	}
	if NestedModuleCreator == nil {
		return nil, errhandling.NewMisconfiguredError(TypeCondition, "nested filter creation is not available")
	}
	return NestedModuleCreator(*cfg)
}

// Type returns the registry name of the filter.
func (m *ConditionModule) Type() string {
	return TypeCondition
}

// Apply implements the filter.Module interface.
//
// Documents are partitioned by the expression, each partition is run through
// its nested filter as one sub-batch, and the results are written back at the
// original positions. Documents with no applicable filter are copied as-is.
func (m *ConditionModule) Apply(ctx context.Context, resps response.Batch, docs response.Docs) (response.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if resps == nil {
		return response.Batch{}, nil
	}

	var thenIdx, elseIdx []int
	for i, set := range resps {
		selected, err := m.evaluate(i, set, docs.DocAt(i))
		if err != nil {
			if m.onError == OnErrorFail {
				return nil, err
			}
			logger.Error("condition evaluation failed (treating as false)",
				slog.String("module_type", TypeCondition),
				slog.Int("document_index", i),
				slog.String("error", err.Error()),
			)
		}
		if selected {
			thenIdx = append(thenIdx, i)
		} else {
			elseIdx = append(elseIdx, i)
		}
	}

	out := make(response.Batch, len(resps))
	if err := m.applyPartition(ctx, m.thenModule, thenIdx, resps, docs, out); err != nil {
		return nil, err
	}
	if err := m.applyPartition(ctx, m.elseModule, elseIdx, resps, docs, out); err != nil {
		return nil, err
	}

	logger.Debug("condition filter applied",
		slog.String("expression", m.expression),
		slog.Int("selected", len(thenIdx)),
		slog.Int("not_selected", len(elseIdx)),
	)

	return out, nil
}

// evaluate runs the compiled expression for one document.
func (m *ConditionModule) evaluate(index int, set response.Set, doc response.Doc) (bool, error) {
	env := map[string]interface{}{
		"doc":       map[string]interface{}(doc),
		"index":     index,
		"responses": []any(set),
	}

	result, err := expr.Run(m.program, env)
	if err != nil {
		return false, errhandling.NewExpressionError(errhandling.CodeEvalFailed,
			fmt.Sprintf("condition %q failed at document %d: %v", m.expression, index, err), err)
	}

	switch v := result.(type) {
	case bool:
		return v, nil
	case nil:
		return false, nil
	default:
		return false, errhandling.NewExpressionError(errhandling.CodeEvalFailed,
			fmt.Sprintf("condition %q returned %T at document %d, expected bool", m.expression, result, index), nil)
	}
}

// applyPartition runs module over the documents at idx and stores the results in out.
// A nil module copies the response sets unchanged.
func (m *ConditionModule) applyPartition(ctx context.Context, module Module, idx []int, resps response.Batch, docs response.Docs, out response.Batch) error {
	if len(idx) == 0 {
		return nil
	}
	if module == nil {
		for _, i := range idx {
			out[i] = append(response.Set(nil), resps[i]...)
		}
		return nil
	}

	sub := make(response.Batch, len(idx))
	subDocs := make(response.Docs, len(idx))
	for k, i := range idx {
		sub[k] = resps[i]
		subDocs[k] = docs.DocAt(i)
	}

	filtered, err := module.Apply(ctx, sub, subDocs)
	if err != nil {
		return err
	}
	if shapeErr := response.ShapeError(sub, filtered); shapeErr != nil {
		return errhandling.NewShapeError(-1, shapeErr)
	}

	for k, i := range idx {
		out[i] = filtered[k]
	}
	return nil
}

// ParseConditionConfig parses a condition filter configuration from raw config.
func ParseConditionConfig(cfg map[string]interface{}) (ConditionConfig, error) {
	var condConfig ConditionConfig

	expression, ok := cfg["expression"].(string)
	if !ok || strings.TrimSpace(expression) == "" {
		return condConfig, errhandling.NewMisconfiguredError(TypeCondition,
			"required field 'expression' is missing or empty")
	}
	condConfig.Expression = expression

	if onError, ok := cfg["onError"].(string); ok {
		condConfig.OnError = onError
	}

	thenCfg, err := parseNestedModuleConfig(cfg["then"], "then")
	if err != nil {
		return condConfig, err
	}
	if thenCfg == nil {
		return condConfig, errhandling.NewMisconfiguredError(TypeCondition, ErrMissingThen.Error())
	}
	condConfig.Then = thenCfg

	elseCfg, err := parseNestedModuleConfig(cfg["else"], "else")
	if err != nil {
		return condConfig, err
	}
	condConfig.Else = elseCfg

	return condConfig, nil
}

func parseNestedModuleConfig(raw interface{}, field string) (*NestedModuleConfig, error) {
	if raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, errhandling.NewMisconfiguredError(TypeCondition,
			fmt.Sprintf("'%s' must be an object, got %T", field, raw))
	}
	moduleType, ok := m["type"].(string)
	if !ok || moduleType == "" {
		return nil, errhandling.NewMisconfiguredError(TypeCondition,
			fmt.Sprintf("'%s.type' is required", field))
	}
	nested := &NestedModuleConfig{Type: moduleType}
	if config, ok := m["config"].(map[string]interface{}); ok {
		nested.Config = config
	}
	return nested, nil
}

var _ Module = (*ConditionModule)(nil)
