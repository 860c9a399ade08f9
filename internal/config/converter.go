package config

import (
	"fmt"

	"github.com/respfilter/runtime/pkg/chain"
)

// ConvertToChain converts validated configuration data to a Chain.
//
// The configuration is expected to have this structure:
//
//	{
//	  "schemaVersion": "1.0.0",
//	  "chain": {
//	    "name": "...",
//	    "version": "...",
//	    "input": {"type": "...", "config": {...}},
//	    "filters": [{"type": "...", "config": {...}}],
//	    "output": {"type": "...", "config": {...}}
//	  }
//	}
func ConvertToChain(data map[string]interface{}) (*chain.Chain, error) {
	if data == nil {
		return nil, fmt.Errorf("configuration data is nil")
	}

	chainData, ok := data["chain"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'chain' section")
	}

	ch := &chain.Chain{}
	if ch.Name, ok = chainData["name"].(string); !ok {
		return nil, fmt.Errorf("missing required field 'chain.name'")
	}
	if ch.Version, ok = chainData["version"].(string); !ok {
		return nil, fmt.Errorf("missing required field 'chain.version'")
	}
	ch.ID = ch.Name
	if id, okID := chainData["id"].(string); okID && id != "" {
		ch.ID = id
	}
	ch.Description, _ = chainData["description"].(string)

	var err error
	if ch.Input, err = convertOptionalModule(chainData, "input"); err != nil {
		return nil, err
	}
	if ch.Output, err = convertOptionalModule(chainData, "output"); err != nil {
		return nil, err
	}

	filtersData, _ := chainData["filters"].([]interface{})
	for i, raw := range filtersData {
		filterMap, isMap := raw.(map[string]interface{})
		if !isMap {
			return nil, fmt.Errorf("invalid filter at index %d", i)
		}
		moduleConfig, convertErr := convertModuleConfig(filterMap)
		if convertErr != nil {
			return nil, fmt.Errorf("invalid filter at index %d: %w", i, convertErr)
		}
		ch.Filters = append(ch.Filters, *moduleConfig)
	}

	if dryRun, okDry := chainData["dryRunOptions"].(map[string]interface{}); okDry {
		ch.DryRunOptions = &chain.DryRunOptions{}
		if n, okN := dryRun["previewDocuments"].(float64); okN {
			ch.DryRunOptions.PreviewDocuments = int(n)
		}
	}

	return ch, nil
}

func convertOptionalModule(chainData map[string]interface{}, key string) (*chain.ModuleConfig, error) {
	raw, present := chainData[key]
	if !present {
		return nil, nil
	}
	moduleData, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid 'chain.%s' section", key)
	}
	moduleConfig, err := convertModuleConfig(moduleData)
	if err != nil {
		return nil, fmt.Errorf("invalid %s config: %w", key, err)
	}
	return moduleConfig, nil
}

// convertModuleConfig converts a raw {type, name, config} map to a ModuleConfig.
func convertModuleConfig(data map[string]interface{}) (*chain.ModuleConfig, error) {
	moduleType, ok := data["type"].(string)
	if !ok || moduleType == "" {
		return nil, fmt.Errorf("missing required field 'type'")
	}

	moduleConfig := &chain.ModuleConfig{
		Type:   moduleType,
		Config: make(map[string]interface{}),
	}
	moduleConfig.Name, _ = data["name"].(string)

	if raw, present := data["config"]; present && raw != nil {
		cfg, isMap := raw.(map[string]interface{})
		if !isMap {
			return nil, fmt.Errorf("field 'config' must be an object, got %T", raw)
		}
		for key, value := range cfg {
			moduleConfig.Config[key] = value
		}
	}
	return moduleConfig, nil
}
