package input

import (
	"context"
	"log/slog"

	"github.com/respfilter/runtime/internal/logger"
	"github.com/respfilter/runtime/pkg/response"
)

// MemoryModule serves a batch that is already in memory, either handed over
// by a caller embedding the runtime or written inline in a chain configuration.
type MemoryModule struct {
	batch response.Batch
	docs  response.Docs
}

// NewMemory creates an input module returning batch and docs.
func NewMemory(batch response.Batch, docs response.Docs) *MemoryModule {
	return &MemoryModule{batch: batch, docs: docs}
}

// Fetch returns the configured batch.
func (m *MemoryModule) Fetch(ctx context.Context) (response.Batch, response.Docs, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	logger.Debug("input module serving in-memory batch",
		slog.String("module_type", TypeInline),
		slog.Int("documents", len(m.batch)),
		slog.Int("responses", m.batch.Count()),
	)
	return m.batch, m.docs, nil
}

// Close is a no-op.
func (m *MemoryModule) Close() error {
	return nil
}

var _ Module = (*MemoryModule)(nil)
