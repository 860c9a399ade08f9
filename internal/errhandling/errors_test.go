package errhandling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorCategory(t *testing.T) {
	tests := []struct {
		category ErrorCategory
		expected string
	}{
		{CategoryConfiguration, "configuration"},
		{CategoryType, "type"},
		{CategoryShape, "shape"},
		{CategoryInput, "input"},
		{CategoryOutput, "output"},
		{CategoryExpression, "expression"},
		{CategoryScript, "script"},
		{CategoryCanceled, "canceled"},
		{CategoryUnknown, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if string(tt.category) != tt.expected {
				t.Errorf("ErrorCategory = %v, want %v", tt.category, tt.expected)
			}
		})
	}
}

func TestClassifiedError(t *testing.T) {
	t.Run("Error message includes category and code", func(t *testing.T) {
		err := NewTypeError("lowercase", 2, 1, 42)
		msg := err.Error()
		for _, want := range []string{"type", "NOT_STRING", "document 2 response 1", "int"} {
			if !strings.Contains(msg, want) {
				t.Errorf("Error() = %q, want to contain %q", msg, want)
			}
		}
	})

	t.Run("Error message without code", func(t *testing.T) {
		err := &ClassifiedError{Category: CategoryUnknown, Message: "boom"}
		if got := err.Error(); got != "unknown error: boom" {
			t.Errorf("Error() = %q", got)
		}
	})

	t.Run("Unwrap reaches sentinel", func(t *testing.T) {
		wrapped := fmt.Errorf("applying filter: %w", NewMisconfiguredError("map", "mapping must be an object"))
		if !errors.Is(wrapped, ErrMisconfiguredFilter) {
			t.Error("expected errors.Is(ErrMisconfiguredFilter) to be true")
		}
		if !IsConfigurationError(wrapped) {
			t.Error("expected IsConfigurationError to be true")
		}
	})

	t.Run("shape and unknown filter errors", func(t *testing.T) {
		if !errors.Is(NewShapeError(0, errors.New("len")), ErrShapeMismatch) {
			t.Error("expected shape error to wrap ErrShapeMismatch")
		}
		if !errors.Is(NewUnknownFilterError("nope", 3), ErrUnknownFilter) {
			t.Error("expected unknown filter error to wrap ErrUnknownFilter")
		}
	})
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category ErrorCategory
		code     string
	}{
		{"classified passes through", NewInputError(CodeReadFailed, "read", nil), CategoryInput, CodeReadFailed},
		{"wrapped classified", fmt.Errorf("ctx: %w", NewOutputError(CodeWriteFailed, "w", nil)), CategoryOutput, CodeWriteFailed},
		{"context canceled", context.Canceled, CategoryCanceled, CodeContextCanceled},
		{"deadline exceeded", fmt.Errorf("x: %w", context.DeadlineExceeded), CategoryCanceled, CodeContextCanceled},
		{"plain error", errors.New("plain"), CategoryUnknown, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			if got.Category != tt.category {
				t.Errorf("Category = %v, want %v", got.Category, tt.category)
			}
			if got.Code != tt.code {
				t.Errorf("Code = %q, want %q", got.Code, tt.code)
			}
		})
	}

	if ClassifyError(nil) != nil {
		t.Error("ClassifyError(nil) should return nil")
	}
}

func TestGetErrorCategoryAndCode(t *testing.T) {
	if GetErrorCategory(nil) != CategoryUnknown {
		t.Error("nil error should be CategoryUnknown")
	}
	if GetErrorCategory(errors.New("x")) != CategoryUnknown {
		t.Error("plain error should be CategoryUnknown")
	}
	err := NewScriptError(CodeScriptFailed, "bad", nil)
	if GetErrorCategory(err) != CategoryScript {
		t.Errorf("GetErrorCategory = %v", GetErrorCategory(err))
	}
	if GetErrorCode(err) != CodeScriptFailed {
		t.Errorf("GetErrorCode = %q", GetErrorCode(err))
	}
	if GetErrorCode(errors.New("x")) != "" {
		t.Error("plain error should have empty code")
	}
}
