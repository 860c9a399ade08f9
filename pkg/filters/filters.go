// Package filters is the library entry point for callers that already hold
// a response batch in memory, such as an evaluation harness. It builds the
// registered filters by name and applies them in order.
//
//	f, err := filters.New("first_clause", nil)
//	out, err := f.Apply(ctx, resps, docs)
package filters

import (
	"context"

	"github.com/respfilter/runtime/internal/factory"
	"github.com/respfilter/runtime/internal/modules/filter"
	"github.com/respfilter/runtime/internal/registry"
	"github.com/respfilter/runtime/internal/runtime"
	"github.com/respfilter/runtime/pkg/chain"
	"github.com/respfilter/runtime/pkg/response"
)

// Filter rewrites every response of a batch and returns a batch of the same shape.
type Filter = filter.Module

// Built-in filter type names.
const (
	Lowercase            = filter.TypeLowercase
	Uppercase            = filter.TypeUppercase
	Map                  = filter.TypeMap
	TrueFalseToYesNo     = filter.TypeYesNo
	UnanswerableFormat   = filter.TypeUnanswerableFormat
	FirstClause          = filter.TypeFirstClause
	UnanswerableMarker   = filter.TypeUnanswerableMarker
	GQAPretrainLlama     = filter.AliasGQAPretrainLlama
	VizwizVicunaPretrain = filter.AliasVizwizVicunaPretrain
	Condition            = filter.TypeCondition
	Script               = filter.TypeScript
)

// New builds one filter. config may be nil for filters that take none.
func New(filterType string, config map[string]interface{}) (Filter, error) {
	return factory.CreateFilterModule(chain.ModuleConfig{Type: filterType, Config: config}, 0)
}

// Types lists the registered filter type names in sorted order.
func Types() []string {
	return registry.ListFilterTypes()
}

// Chain applies an ordered list of filters, checking after each step that
// the batch kept its shape.
type Chain struct {
	name     string
	filters  []Filter
	executor *runtime.Executor
}

// NewChain builds every filter in cfgs. The first unknown type or invalid
// configuration is returned as an error.
func NewChain(name string, cfgs ...chain.ModuleConfig) (*Chain, error) {
	modules, err := factory.CreateFilterModules(cfgs)
	if err != nil {
		return nil, err
	}
	return &Chain{
		name:     name,
		filters:  modules,
		executor: runtime.NewExecutorWithModules(nil, modules, nil, false),
	}, nil
}

// Len returns the number of filters in the chain.
func (c *Chain) Len() int {
	return len(c.filters)
}

// Apply runs resps through every filter of the chain. The input is not modified.
func (c *Chain) Apply(ctx context.Context, resps response.Batch, docs response.Docs) (response.Batch, error) {
	ch := &chain.Chain{ID: c.name, Name: c.name}
	_, out, err := c.executor.ExecuteWithBatch(ctx, ch, resps, docs)
	if err != nil {
		return nil, err
	}
	return out, nil
}
