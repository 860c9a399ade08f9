// Package output provides implementations for output modules.
// Output modules persist the filtered response batch.
package output

import (
	"context"

	"github.com/respfilter/runtime/pkg/response"
)

// Module represents an output module that writes a filtered batch.
type Module interface {
	// Send writes the batch and its metadata.
	// Returns the number of documents written and any error.
	Send(ctx context.Context, batch response.Batch, docs response.Docs) (int, error)

	// Close releases any resources held by the module.
	Close() error
}
