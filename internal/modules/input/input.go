// Package input provides implementations for input modules.
// Input modules load the response batch and its parallel document metadata.
package input

import (
	"context"

	"github.com/respfilter/runtime/pkg/response"
)

// Module represents an input module that loads a response batch.
type Module interface {
	// Fetch returns the batch and its per-document metadata. docs may be
	// shorter than the batch (or nil) when the source carries no metadata.
	Fetch(ctx context.Context) (response.Batch, response.Docs, error)
	// Close releases any resources held by the module.
	Close() error
}
