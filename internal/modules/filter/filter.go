// Package filter provides implementations for filter modules.
// Filter modules rewrite every response of every response set in a batch
// according to one fixed rule. They never change the shape of the batch and
// never mutate their input.
package filter

import (
	"context"

	"github.com/respfilter/runtime/internal/errhandling"
	"github.com/respfilter/runtime/pkg/response"
)

// Module represents a filter module that transforms response batches.
type Module interface {
	// Apply rewrites each response in resps and returns a new batch of the
	// same shape. docs is the parallel per-document metadata.
	Apply(ctx context.Context, resps response.Batch, docs response.Docs) (response.Batch, error)
}

// Typed is implemented by modules that report their registry type name.
type Typed interface {
	Type() string
}

// OnError behavior constants shared by modules that can fail per response.
const (
	OnErrorFail = "fail"
	OnErrorLog  = "log"
)

// cancelCheckInterval is how many documents are processed between context checks.
const cancelCheckInterval = 100

// TextFunc rewrites a single response string.
type TextFunc func(string) string

// applyText maps fn over every response, requiring each to be a string.
// It is the shared body of every text filter.
func applyText(ctx context.Context, filterType string, resps response.Batch, fn TextFunc) (response.Batch, error) {
	return applyValues(ctx, resps, func(docIdx, respIdx int, value any) (any, error) {
		s, ok := value.(string)
		if !ok {
			return nil, errhandling.NewTypeError(filterType, docIdx, respIdx, value)
		}
		return fn(s), nil
	})
}

// valueFunc rewrites the response at (docIdx, respIdx).
type valueFunc func(docIdx, respIdx int, value any) (any, error)

// applyValues builds a new batch of the same shape by calling fn on every response.
func applyValues(ctx context.Context, resps response.Batch, fn valueFunc) (response.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if resps == nil {
		return response.Batch{}, nil
	}

	out := make(response.Batch, len(resps))
	for i, set := range resps {
		if i > 0 && i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		filtered := make(response.Set, len(set))
		for j, value := range set {
			v, err := fn(i, j, value)
			if err != nil {
				return nil, err
			}
			filtered[j] = v
		}
		out[i] = filtered
	}
	return out, nil
}

// textModule is the common implementation behind the stateless text filters.
type textModule struct {
	filterType string
	fn         TextFunc
}

// Type returns the registry name of the filter.
func (m *textModule) Type() string {
	return m.filterType
}

// Apply implements Module.
func (m *textModule) Apply(ctx context.Context, resps response.Batch, _ response.Docs) (response.Batch, error) {
	return applyText(ctx, m.filterType, resps, m.fn)
}
