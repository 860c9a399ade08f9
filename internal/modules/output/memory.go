package output

import (
	"context"
	"sync"

	"github.com/respfilter/runtime/pkg/response"
)

// MemoryModule keeps the last batch it was sent. It is the output used when
// the runtime is embedded and the caller wants the filtered batch back.
type MemoryModule struct {
	mu    sync.Mutex
	batch response.Batch
	docs  response.Docs
	sends int
}

// NewMemory creates an in-memory output module.
func NewMemory() *MemoryModule {
	return &MemoryModule{}
}

// Send stores batch and docs.
func (m *MemoryModule) Send(ctx context.Context, batch response.Batch, docs response.Docs) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batch = batch
	m.docs = docs
	m.sends++
	return len(batch), nil
}

// Batch returns the last batch sent, or nil.
func (m *MemoryModule) Batch() response.Batch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batch
}

// Docs returns the metadata of the last batch sent.
func (m *MemoryModule) Docs() response.Docs {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docs
}

// Sends returns how many times Send succeeded.
func (m *MemoryModule) Sends() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sends
}

// Close is a no-op.
func (m *MemoryModule) Close() error {
	return nil
}

var _ Module = (*MemoryModule)(nil)
