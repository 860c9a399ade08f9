// Package registry provides module registries for input, filter, and output modules.
//
// # Overview
//
// Modules register their constructors by type string and the factory looks
// them up by the type named in a chain configuration. Filter types form a
// closed set: a name that is not registered is a configuration error, never a
// silent pass-through.
//
// # Adding a New Filter
//
// Implement filter.Module in internal/modules/filter, then register a
// constructor in registerBuiltinFilterModules. Stateless text filters only
// need an entry in textFilters.
//
// # Built-in Modules
//
// Built-in modules are registered by init() in builtins.go: the seven
// response filters (plus dataset aliases), condition and script filters, the
// file and inline inputs, and the file and stdout outputs.
package registry

import (
	"sort"
	"sync"

	"github.com/respfilter/runtime/internal/modules/filter"
	"github.com/respfilter/runtime/internal/modules/input"
	"github.com/respfilter/runtime/internal/modules/output"
	"github.com/respfilter/runtime/pkg/chain"
)

// InputConstructor creates an input module from its chain configuration.
type InputConstructor func(cfg *chain.ModuleConfig) (input.Module, error)

// FilterConstructor creates a filter module from its chain configuration.
// index is the filter's position in the chain, or -1 for a nested filter.
type FilterConstructor func(cfg chain.ModuleConfig, index int) (filter.Module, error)

// OutputConstructor creates an output module from its chain configuration.
type OutputConstructor func(cfg *chain.ModuleConfig) (output.Module, error)

// table is a concurrency-safe map from module type to constructor.
type table[C any] struct {
	mu           sync.RWMutex
	constructors map[string]C
}

func newTable[C any]() *table[C] {
	return &table[C]{constructors: make(map[string]C)}
}

func (t *table[C]) register(moduleType string, constructor C) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.constructors[moduleType] = constructor
}

// get returns the zero C (a nil func) for an unknown type.
func (t *table[C]) get(moduleType string) C {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.constructors[moduleType]
}

func (t *table[C]) types() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.constructors))
	for name := range t.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (t *table[C]) clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.constructors = make(map[string]C)
}

var (
	inputs  = newTable[InputConstructor]()
	filters = newTable[FilterConstructor]()
	outputs = newTable[OutputConstructor]()
)

// RegisterInput registers an input module constructor, replacing any
// constructor already registered under moduleType.
func RegisterInput(moduleType string, constructor InputConstructor) {
	inputs.register(moduleType, constructor)
}

// RegisterFilter registers a filter module constructor, replacing any
// constructor already registered under moduleType. Safe for concurrent use.
//
//	registry.RegisterFilter("strip_quotes", func(chain.ModuleConfig, int) (filter.Module, error) {
//	    return filter.NewStripQuotes(), nil
//	})
func RegisterFilter(moduleType string, constructor FilterConstructor) {
	filters.register(moduleType, constructor)
}

// RegisterOutput registers an output module constructor, replacing any
// constructor already registered under moduleType.
func RegisterOutput(moduleType string, constructor OutputConstructor) {
	outputs.register(moduleType, constructor)
}

// GetInputConstructor returns nil if moduleType is not registered.
func GetInputConstructor(moduleType string) InputConstructor {
	return inputs.get(moduleType)
}

// GetFilterConstructor returns nil if moduleType is not registered.
func GetFilterConstructor(moduleType string) FilterConstructor {
	return filters.get(moduleType)
}

// GetOutputConstructor returns nil if moduleType is not registered.
func GetOutputConstructor(moduleType string) OutputConstructor {
	return outputs.get(moduleType)
}

// ListInputTypes returns the registered input types, sorted.
func ListInputTypes() []string {
	return inputs.types()
}

// ListFilterTypes returns the registered filter types and aliases, sorted.
func ListFilterTypes() []string {
	return filters.types()
}

// ListOutputTypes returns the registered output types, sorted.
func ListOutputTypes() []string {
	return outputs.types()
}

// ClearRegistries removes every registered constructor. Tests only.
func ClearRegistries() {
	inputs.clear()
	filters.clear()
	outputs.clear()
}
