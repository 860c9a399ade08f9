// Package errhandling provides error types and classification helpers.
// This file defines error categories, sentinel errors, and constructors used
// across the respfilter runtime so callers can branch on errors.Is / errors.As
// instead of matching message text.
package errhandling

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCategory represents the type/category of an error.
type ErrorCategory string

// Error categories for classification.
const (
	// CategoryConfiguration represents a filter or chain that was configured
	// incorrectly. Raised at construction time, before any response is touched.
	CategoryConfiguration ErrorCategory = "configuration"

	// CategoryType represents a response value of the wrong type reaching a
	// text filter. This is a caller contract violation and is never coerced.
	CategoryType ErrorCategory = "type"

	// CategoryShape represents a filter output whose outer or inner lengths
	// differ from its input.
	CategoryShape ErrorCategory = "shape"

	// CategoryInput represents failures reading response batches.
	CategoryInput ErrorCategory = "input"

	// CategoryOutput represents failures writing response batches.
	CategoryOutput ErrorCategory = "output"

	// CategoryExpression represents condition expressions that fail to compile or evaluate.
	CategoryExpression ErrorCategory = "expression"

	// CategoryScript represents script filter compilation or execution failures.
	CategoryScript ErrorCategory = "script"

	// CategoryCanceled represents a context cancellation or deadline.
	CategoryCanceled ErrorCategory = "canceled"

	// CategoryUnknown represents unclassified errors.
	CategoryUnknown ErrorCategory = "unknown"
)

// Sentinel errors. ClassifiedError values wrap these so errors.Is works.
var (
	// ErrMisconfiguredFilter is returned when a filter's construction-time
	// configuration is invalid (e.g. a mapping table that is not an object).
	ErrMisconfiguredFilter = errors.New("misconfigured filter")

	// ErrNotString is returned when a text filter receives a non-string response.
	ErrNotString = errors.New("response is not a string")

	// ErrShapeMismatch is returned when a filter changes the batch shape.
	ErrShapeMismatch = errors.New("response batch shape mismatch")

	// ErrUnknownFilter is returned when no filter is registered under a type name.
	ErrUnknownFilter = errors.New("unknown filter type")
)

// ClassifiedError wraps an error with classification metadata.
type ClassifiedError struct {
	// Category is the error classification category.
	Category ErrorCategory

	// Code is a short machine-readable code (e.g. "NOT_STRING").
	Code string

	// Message is a human-readable error message.
	Message string

	// OriginalErr is the underlying error that was classified.
	OriginalErr error
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s error [%s]: %s", e.Category, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Category, e.Message)
}

// Unwrap returns the original error for use with errors.Is and errors.As.
func (e *ClassifiedError) Unwrap() error {
	return e.OriginalErr
}

// Error codes carried by ClassifiedError.Code.
const (
	CodeMisconfigured   = "MISCONFIGURED_FILTER"
	CodeNotString       = "NOT_STRING"
	CodeShapeMismatch   = "SHAPE_MISMATCH"
	CodeUnknownFilter   = "UNKNOWN_FILTER"
	CodeReadFailed      = "READ_FAILED"
	CodeDecodeFailed    = "DECODE_FAILED"
	CodeWriteFailed     = "WRITE_FAILED"
	CodeCompileFailed   = "COMPILE_FAILED"
	CodeEvalFailed      = "EVALUATION_FAILED"
	CodeScriptFailed    = "SCRIPT_FAILED"
	CodeContextCanceled = "CONTEXT_CANCELED"
)

// NewMisconfiguredError creates a configuration error wrapping ErrMisconfiguredFilter.
func NewMisconfiguredError(filterType, message string) *ClassifiedError {
	return &ClassifiedError{
		Category:    CategoryConfiguration,
		Code:        CodeMisconfigured,
		Message:     fmt.Sprintf("%s: %s", filterType, message),
		OriginalErr: ErrMisconfiguredFilter,
	}
}

// NewTypeError creates a type error for a non-string response at the given position.
func NewTypeError(filterType string, docIdx, respIdx int, value any) *ClassifiedError {
	return &ClassifiedError{
		Category: CategoryType,
		Code:     CodeNotString,
		Message: fmt.Sprintf("%s: document %d response %d is %T, expected string",
			filterType, docIdx, respIdx, value),
		OriginalErr: ErrNotString,
	}
}

// NewShapeError creates a shape mismatch error for the filter at index.
func NewShapeError(filterIndex int, detail error) *ClassifiedError {
	return &ClassifiedError{
		Category:    CategoryShape,
		Code:        CodeShapeMismatch,
		Message:     fmt.Sprintf("filter %d changed the batch shape: %v", filterIndex, detail),
		OriginalErr: ErrShapeMismatch,
	}
}

// NewUnknownFilterError creates a configuration error for an unregistered filter type.
// A negative index denotes a filter nested inside another one.
func NewUnknownFilterError(filterType string, index int) *ClassifiedError {
	where := fmt.Sprintf("filter %d", index)
	if index < 0 {
		where = "nested filter"
	}
	return &ClassifiedError{
		Category:    CategoryConfiguration,
		Code:        CodeUnknownFilter,
		Message:     fmt.Sprintf("%s: no filter registered for type %q", where, filterType),
		OriginalErr: ErrUnknownFilter,
	}
}

// NewInputError creates an input error.
func NewInputError(code, message string, originalErr error) *ClassifiedError {
	return &ClassifiedError{
		Category:    CategoryInput,
		Code:        code,
		Message:     message,
		OriginalErr: originalErr,
	}
}

// NewOutputError creates an output error.
func NewOutputError(code, message string, originalErr error) *ClassifiedError {
	return &ClassifiedError{
		Category:    CategoryOutput,
		Code:        code,
		Message:     message,
		OriginalErr: originalErr,
	}
}

// NewExpressionError creates an expression compile or evaluation error.
func NewExpressionError(code, message string, originalErr error) *ClassifiedError {
	return &ClassifiedError{
		Category:    CategoryExpression,
		Code:        code,
		Message:     message,
		OriginalErr: originalErr,
	}
}

// NewScriptError creates a script error.
func NewScriptError(code, message string, originalErr error) *ClassifiedError {
	return &ClassifiedError{
		Category:    CategoryScript,
		Code:        code,
		Message:     message,
		OriginalErr: originalErr,
	}
}

// ClassifyError analyzes an error and returns a ClassifiedError.
// Already classified errors are returned as-is; context errors are mapped to
// CategoryCanceled; anything else becomes CategoryUnknown.
func ClassifyError(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &ClassifiedError{
			Category:    CategoryCanceled,
			Code:        CodeContextCanceled,
			Message:     err.Error(),
			OriginalErr: err,
		}
	}

	return &ClassifiedError{
		Category:    CategoryUnknown,
		Message:     err.Error(),
		OriginalErr: err,
	}
}

// GetErrorCategory returns the error category for a given error.
// Returns CategoryUnknown for nil or unclassified errors.
func GetErrorCategory(err error) ErrorCategory {
	if err == nil {
		return CategoryUnknown
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.Category
	}

	return CategoryUnknown
}

// GetErrorCode returns the code of a classified error, or "" otherwise.
func GetErrorCode(err error) string {
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.Code
	}
	return ""
}

// IsConfigurationError reports whether err was raised while building a filter or chain.
func IsConfigurationError(err error) bool {
	return GetErrorCategory(err) == CategoryConfiguration
}
