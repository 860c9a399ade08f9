// Package chain provides public types describing a filter chain and the
// result of running it. This package is intended to be importable by external
// projects that drive respfilter programmatically.
package chain

import "time"

// Chain represents a complete filter chain configuration.
// It names where response batches come from (Input), the ordered filters
// applied to them, and where the filtered batches go (Output).
type Chain struct {
	// ID is the unique identifier for this chain
	ID string `json:"id"`

	// Name is the human-readable name of the chain
	Name string `json:"name"`

	// Description provides additional context about the chain
	Description string `json:"description,omitempty"`

	// Version is the chain configuration version
	Version string `json:"version"`

	// Input defines the response source module
	Input *ModuleConfig `json:"input,omitempty"`

	// Filters is the ordered list of filters applied to every response
	Filters []ModuleConfig `json:"filters,omitempty"`

	// Output defines the destination of the filtered responses
	Output *ModuleConfig `json:"output,omitempty"`

	// DryRunOptions configures dry-run mode behavior
	DryRunOptions *DryRunOptions `json:"dryRunOptions,omitempty"`
}

// ModuleConfig represents the configuration for a chain module.
// Modules can be Input, Filter, or Output types.
type ModuleConfig struct {
	// Type identifies the module type (e.g., "file", "lowercase", "map")
	Type string `json:"type"`

	// Name is an optional label used in logs
	Name string `json:"name,omitempty"`

	// Config contains the module-specific configuration
	Config map[string]interface{} `json:"config,omitempty"`
}

// DryRunOptions configures dry-run mode behavior.
type DryRunOptions struct {
	// PreviewDocuments is the number of documents shown in the preview (default 3)
	PreviewDocuments int `json:"previewDocuments,omitempty"`
}

// ExecutionResult represents the result of a chain execution.
type ExecutionResult struct {
	// ChainID is the ID of the executed chain
	ChainID string `json:"chainId"`

	// RunID uniquely identifies this execution
	RunID string `json:"runId"`

	// Status is the execution status ("success", "error")
	Status string `json:"status"`

	// StartedAt is when execution started
	StartedAt time.Time `json:"startedAt"`

	// CompletedAt is when execution completed
	CompletedAt time.Time `json:"completedAt"`

	// DocumentsProcessed is the number of documents that went through the chain
	DocumentsProcessed int `json:"documentsProcessed"`

	// ResponsesProcessed is the number of individual responses filtered
	ResponsesProcessed int `json:"responsesProcessed"`

	// DocumentsWritten is the number of documents handed to the output module
	DocumentsWritten int `json:"documentsWritten"`

	// Error contains error details if execution failed
	Error *ExecutionError `json:"error,omitempty"`

	// DryRunPreview contains the first filtered documents (only set in dry-run mode)
	DryRunPreview []DocumentPreview `json:"dryRunPreview,omitempty"`
}

// DocumentPreview shows the filtered responses of one document in dry-run mode.
type DocumentPreview struct {
	// Index is the document position in the batch
	Index int `json:"index"`

	// Before holds the responses as read from the input
	Before []any `json:"before"`

	// After holds the responses as produced by the last filter
	After []any `json:"after"`
}

// ExecutionError contains details about an execution failure.
type ExecutionError struct {
	// Code is the error code
	Code string `json:"code"`

	// Message is the human-readable error message
	Message string `json:"message"`

	// Module is the module where the error occurred
	Module string `json:"module,omitempty"`

	// Details contains additional error context
	Details map[string]interface{} `json:"details,omitempty"`
}
