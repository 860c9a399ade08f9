package filter

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"github.com/respfilter/runtime/internal/errhandling"
	"github.com/respfilter/runtime/internal/logger"
	"github.com/respfilter/runtime/pkg/response"
)

// MapConfig represents the configuration for a map filter module.
type MapConfig struct {
	// Mapping is the exact-match lookup table
	Mapping map[string]interface{} `json:"mapping"`
	// Default replaces responses that are not keys of Mapping (may be nil)
	Default interface{} `json:"default"`
}

// MapModule replaces each response with Mapping[response], or Default when
// the response is not a key. Lookup is exact: no case or whitespace folding.
//
// The table is copied at construction and never written afterwards, so a
// MapModule may be shared between goroutines.
type MapModule struct {
	mapping      map[string]interface{}
	defaultValue interface{}
}

// NewMapFromConfig creates a new map filter module from configuration.
// A nil Mapping yields an empty table, so every response becomes Default.
func NewMapFromConfig(config MapConfig) (*MapModule, error) {
	mapping := maps.Clone(config.Mapping)
	if mapping == nil {
		mapping = map[string]interface{}{}
	}

	logger.Debug("map filter module initialized",
		slog.Int("entries", len(mapping)),
		slog.Bool("has_default", config.Default != nil),
	)

	return &MapModule{mapping: mapping, defaultValue: config.Default}, nil
}

// Type returns the registry name of the filter.
func (m *MapModule) Type() string {
	return TypeMap
}

// Apply implements the filter.Module interface.
// Non-string responses can never match a key and therefore map to Default.
func (m *MapModule) Apply(ctx context.Context, resps response.Batch, _ response.Docs) (response.Batch, error) {
	return applyValues(ctx, resps, func(_, _ int, value any) (any, error) {
		return m.lookup(value), nil
	})
}

func (m *MapModule) lookup(value any) any {
	key, ok := value.(string)
	if !ok {
		return m.defaultValue
	}
	if mapped, found := m.mapping[key]; found {
		return mapped
	}
	return m.defaultValue
}

// Len returns the number of entries in the lookup table.
func (m *MapModule) Len() int {
	return len(m.mapping)
}

// ParseMapConfig parses a raw configuration map into MapConfig.
// "mapping" (or its long form "mapping_dict") must be an object when present;
// anything else is reported as a misconfigured filter.
func ParseMapConfig(config map[string]interface{}) (MapConfig, error) {
	var cfg MapConfig

	raw, hasMapping := config["mapping"]
	if !hasMapping {
		raw, hasMapping = config["mapping_dict"]
	}
	if hasMapping && raw != nil {
		table, err := toStringKeyedMap(raw)
		if err != nil {
			return cfg, errhandling.NewMisconfiguredError(TypeMap, err.Error())
		}
		cfg.Mapping = table
	}

	if v, ok := config["default"]; ok {
		cfg.Default = v
	} else if v, ok := config["default_value"]; ok {
		cfg.Default = v
	}

	return cfg, nil
}

// toStringKeyedMap accepts the map shapes produced by JSON and YAML decoders.
func toStringKeyedMap(raw interface{}) (map[string]interface{}, error) {
	switch table := raw.(type) {
	case map[string]interface{}:
		return table, nil
	case map[string]string:
		out := make(map[string]interface{}, len(table))
		for k, v := range table {
			out[k] = v
		}
		return out, nil
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(table))
		for k, v := range table {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("mapping key %v is %T, expected string", k, k)
			}
			out[key] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("provided mapping is not a dictionary (got %T)", raw)
	}
}

var _ Module = (*MapModule)(nil)
