package registry

import (
	"fmt"

	"github.com/respfilter/runtime/internal/errhandling"
	"github.com/respfilter/runtime/internal/modules/filter"
	"github.com/respfilter/runtime/internal/modules/input"
	"github.com/respfilter/runtime/internal/modules/output"
	"github.com/respfilter/runtime/pkg/chain"
)

// nestedIndex is passed to constructors of filters nested inside a condition.
const nestedIndex = -1

func init() {
	registerBuiltins()
}

// registerBuiltins registers every built-in module and wires nested filter
// creation for the condition module.
func registerBuiltins() {
	registerBuiltinInputModules()
	registerBuiltinFilterModules()
	registerBuiltinOutputModules()
	filter.NestedModuleCreator = CreateNestedFilter
}

// registerBuiltinInputModules registers all built-in input module types.
func registerBuiltinInputModules() {
	// file - JSON / JSONL file or stdin
	RegisterInput(input.TypeFile, func(cfg *chain.ModuleConfig) (input.Module, error) {
		return input.NewFileFromConfig(cfg)
	})

	// inline - batch written directly in the chain configuration
	RegisterInput(input.TypeInline, func(cfg *chain.ModuleConfig) (input.Module, error) {
		return input.NewInlineFromConfig(cfg)
	})
}

// textFilters are the stateless response filters, keyed by every name they answer to.
var textFilters = map[string]func() filter.Module{
	filter.TypeLowercase:          func() filter.Module { return filter.NewLowercase() },
	filter.TypeUppercase:          func() filter.Module { return filter.NewUppercase() },
	filter.TypeYesNo:              func() filter.Module { return filter.NewYesNo() },
	filter.TypeUnanswerableFormat: func() filter.Module { return filter.NewUnanswerableFormat() },
	filter.TypeFirstClause:        func() filter.Module { return filter.NewFirstClause() },
	filter.TypeUnanswerableMarker: func() filter.Module { return filter.NewUnanswerableMarker() },

	filter.AliasGQAPretrainLlama:     func() filter.Module { return filter.NewFirstClause() },
	filter.AliasVizwizVicunaPretrain: func() filter.Module { return filter.NewUnanswerableMarker() },
}

// registerBuiltinFilterModules registers all built-in filter module types.
func registerBuiltinFilterModules() {
	for name, newModule := range textFilters {
		newModule := newModule
		RegisterFilter(name, func(_ chain.ModuleConfig, _ int) (filter.Module, error) {
			return newModule(), nil
		})
	}

	// map - exact-match lookup table with default
	RegisterFilter(filter.TypeMap, func(cfg chain.ModuleConfig, index int) (filter.Module, error) {
		mapConfig, err := filter.ParseMapConfig(cfg.Config)
		if err != nil {
			return nil, wrapFilterError(filter.TypeMap, index, err)
		}
		module, err := filter.NewMapFromConfig(mapConfig)
		if err != nil {
			return nil, wrapFilterError(filter.TypeMap, index, err)
		}
		return module, nil
	})

	// condition - per-document gate around a nested filter
	RegisterFilter(filter.TypeCondition, func(cfg chain.ModuleConfig, index int) (filter.Module, error) {
		condConfig, err := filter.ParseConditionConfig(cfg.Config)
		if err != nil {
			return nil, wrapFilterError(filter.TypeCondition, index, err)
		}
		module, err := filter.NewConditionFromConfig(condConfig)
		if err != nil {
			return nil, wrapFilterError(filter.TypeCondition, index, err)
		}
		return module, nil
	})

	// script - JavaScript transform using Goja
	RegisterFilter(filter.TypeScript, func(cfg chain.ModuleConfig, index int) (filter.Module, error) {
		scriptConfig, err := filter.ParseScriptConfig(cfg.Config)
		if err != nil {
			return nil, wrapFilterError(filter.TypeScript, index, err)
		}
		module, err := filter.NewScriptFromConfig(scriptConfig)
		if err != nil {
			return nil, wrapFilterError(filter.TypeScript, index, err)
		}
		return module, nil
	})
}

// registerBuiltinOutputModules registers all built-in output module types.
func registerBuiltinOutputModules() {
	// file - JSON / JSONL file ("-" or empty path for stdout)
	RegisterOutput(output.TypeFile, func(cfg *chain.ModuleConfig) (output.Module, error) {
		return output.NewFileFromConfig(cfg)
	})

	// stdout - file output pinned to standard output
	RegisterOutput(output.TypeStdout, func(cfg *chain.ModuleConfig) (output.Module, error) {
		opts := output.FileOptions{Path: output.StdoutPath}
		if cfg != nil {
			opts.Format, _ = cfg.Config["format"].(string)
			opts.Indent, _ = cfg.Config["indent"].(bool)
			if include, ok := cfg.Config["includeDocs"].(bool); ok {
				opts.OmitDocs = !include
			}
		}
		return output.NewFile(opts)
	})
}

// CreateNestedFilter builds a filter nested inside a condition module.
func CreateNestedFilter(cfg filter.NestedModuleConfig) (filter.Module, error) {
	constructor := GetFilterConstructor(cfg.Type)
	if constructor == nil {
		return nil, errhandling.NewUnknownFilterError(cfg.Type, nestedIndex)
	}
	config := cfg.Config
	if config == nil {
		config = map[string]interface{}{}
	}
	return constructor(chain.ModuleConfig{Type: cfg.Type, Config: config}, nestedIndex)
}

func wrapFilterError(filterType string, index int, err error) error {
	if index == nestedIndex {
		return fmt.Errorf("invalid nested %s config: %w", filterType, err)
	}
	return fmt.Errorf("invalid %s config at index %d: %w", filterType, index, err)
}
