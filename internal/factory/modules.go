// Package factory provides module creation functions for the chain runtime.
// It centralizes the logic for instantiating input, filter, and output modules
// from their configuration using the module registry.
//
// # Module Creation
//
// The factory uses the registry package to look up module constructors by type.
// Unknown types are configuration errors.
//
// # Adding New Module Types
//
// To add a new module type, see the documentation in internal/registry.
// You do NOT need to modify this factory; just register your constructor.
package factory

import (
	"errors"
	"fmt"

	"github.com/respfilter/runtime/internal/errhandling"
	"github.com/respfilter/runtime/internal/modules/filter"
	"github.com/respfilter/runtime/internal/modules/input"
	"github.com/respfilter/runtime/internal/modules/output"
	"github.com/respfilter/runtime/internal/registry"
	"github.com/respfilter/runtime/pkg/chain"
)

// maxNestingDepth is the maximum allowed depth of condition filters nested
// inside one another.
const maxNestingDepth = 50

// Common errors
var (
	// ErrUnknownInput is returned for an input type with no registered constructor
	ErrUnknownInput = errors.New("unknown input type")
	// ErrUnknownOutput is returned for an output type with no registered constructor
	ErrUnknownOutput = errors.New("unknown output type")
	// ErrNestingTooDeep is returned when condition filters are nested beyond maxNestingDepth
	ErrNestingTooDeep = errors.New("nested filter depth exceeds maximum")
)

// Modules holds the modules built for one chain.
type Modules struct {
	Input   input.Module
	Filters []filter.Module
	Output  output.Module
}

// CreateChainModules builds every module a chain configuration names.
// Input and output are optional: a nil config yields a nil module.
func CreateChainModules(ch *chain.Chain) (*Modules, error) {
	if ch == nil {
		return nil, errhandling.NewMisconfiguredError("chain", "configuration is nil")
	}

	in, err := CreateInputModule(ch.Input)
	if err != nil {
		return nil, err
	}
	filters, err := CreateFilterModules(ch.Filters)
	if err != nil {
		return nil, err
	}
	out, err := CreateOutputModule(ch.Output)
	if err != nil {
		return nil, err
	}
	return &Modules{Input: in, Filters: filters, Output: out}, nil
}

// CreateInputModule creates an input module instance from configuration.
// Uses the registry to look up the constructor by type.
func CreateInputModule(cfg *chain.ModuleConfig) (input.Module, error) {
	if cfg == nil {
		return nil, nil
	}

	constructor := registry.GetInputConstructor(cfg.Type)
	if constructor == nil {
		return nil, errhandling.NewInputError(errhandling.CodeMisconfigured,
			fmt.Sprintf("%v: %q", ErrUnknownInput, cfg.Type), ErrUnknownInput)
	}
	return constructor(cfg)
}

// CreateFilterModules creates filter module instances from configuration, in order.
// The first unregistered type or invalid configuration aborts creation.
func CreateFilterModules(cfgs []chain.ModuleConfig) ([]filter.Module, error) {
	if len(cfgs) == 0 {
		return nil, nil
	}

	modules := make([]filter.Module, 0, len(cfgs))
	for i, cfg := range cfgs {
		module, err := CreateFilterModule(cfg, i)
		if err != nil {
			return nil, err
		}
		modules = append(modules, module)
	}
	return modules, nil
}

// CreateFilterModule creates the filter at position index of a chain.
func CreateFilterModule(cfg chain.ModuleConfig, index int) (filter.Module, error) {
	constructor := registry.GetFilterConstructor(cfg.Type)
	if constructor == nil {
		return nil, errhandling.NewUnknownFilterError(cfg.Type, index)
	}
	if depth := nestingDepth(cfg.Config, 0); depth > maxNestingDepth {
		return nil, errhandling.NewMisconfiguredError(cfg.Type,
			fmt.Sprintf("%v (%d > %d)", ErrNestingTooDeep, depth, maxNestingDepth))
	}
	if cfg.Config == nil {
		cfg.Config = map[string]interface{}{}
	}
	return constructor(cfg, index)
}

// nestingDepth returns how deeply then/else blocks are nested under config.
// The walk stops once maxNestingDepth is exceeded.
func nestingDepth(config map[string]interface{}, depth int) int {
	if depth > maxNestingDepth {
		return depth
	}
	deepest := depth
	for _, key := range []string{"then", "else"} {
		nested, ok := config[key].(map[string]interface{})
		if !ok {
			continue
		}
		inner, _ := nested["config"].(map[string]interface{})
		if d := nestingDepth(inner, depth+1); d > deepest {
			deepest = d
		}
	}
	return deepest
}

// CreateOutputModule creates an output module instance from configuration.
// Uses the registry to look up the constructor by type.
func CreateOutputModule(cfg *chain.ModuleConfig) (output.Module, error) {
	if cfg == nil {
		return nil, nil
	}

	constructor := registry.GetOutputConstructor(cfg.Type)
	if constructor == nil {
		return nil, errhandling.NewOutputError(errhandling.CodeMisconfigured,
			fmt.Sprintf("%v: %q", ErrUnknownOutput, cfg.Type), ErrUnknownOutput)
	}
	return constructor(cfg)
}
