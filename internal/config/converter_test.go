package config

import (
	"reflect"
	"strings"
	"testing"

	"github.com/respfilter/runtime/pkg/chain"
)

func TestConvertToChain_ValidConfig(t *testing.T) {
	result := ParseConfig("testdata/valid-chain.json")
	if !result.IsValid() {
		t.Fatalf("unexpected errors: %v", result.AllErrors())
	}

	ch, err := ConvertToChain(result.Data)
	if err != nil {
		t.Fatalf("ConvertToChain() error = %v", err)
	}

	want := &chain.Chain{
		ID:          "vizwiz-eval",
		Name:        "vizwiz-eval",
		Description: "Normalize VizWiz answers before scoring",
		Version:     "1.0.0",
		Input: &chain.ModuleConfig{
			Type:   "file",
			Config: map[string]interface{}{"path": "responses.jsonl"},
		},
		Filters: []chain.ModuleConfig{
			{Type: "vizwiz_vicuna_pretrain", Config: map[string]interface{}{}},
			{Type: "lowercase", Name: "fold case", Config: map[string]interface{}{}},
		},
		Output: &chain.ModuleConfig{
			Type:   "stdout",
			Config: map[string]interface{}{"format": "jsonl"},
		},
		DryRunOptions: &chain.DryRunOptions{PreviewDocuments: 5},
	}
	if !reflect.DeepEqual(ch, want) {
		t.Errorf("ConvertToChain() =\n%+v\nwant\n%+v", ch, want)
	}
}

func TestConvertToChain_YAML(t *testing.T) {
	result := ParseConfig("testdata/valid-chain.yaml")
	if !result.IsValid() {
		t.Fatalf("unexpected errors: %v", result.AllErrors())
	}

	ch, err := ConvertToChain(result.Data)
	if err != nil {
		t.Fatalf("ConvertToChain() error = %v", err)
	}
	if len(ch.Filters) != 2 || ch.Filters[1].Type != "map" {
		t.Fatalf("unexpected filters %+v", ch.Filters)
	}
	mapping, _ := ch.Filters[1].Config["mapping"].(map[string]interface{})
	if mapping["yes"] != float64(1) || mapping["no"] != float64(0) {
		t.Errorf("mapping = %#v", mapping)
	}
	if ch.Input.Type != "inline" || ch.Output.Type != "stdout" {
		t.Errorf("input/output = %q/%q", ch.Input.Type, ch.Output.Type)
	}
	if ch.DryRunOptions != nil {
		t.Errorf("DryRunOptions = %+v, want nil", ch.DryRunOptions)
	}
}

func TestConvertToChain_OptionalSections(t *testing.T) {
	ch, err := ConvertToChain(map[string]interface{}{
		"chain": map[string]interface{}{
			"id":      "custom-id",
			"name":    "bare",
			"version": "1",
		},
	})
	if err != nil {
		t.Fatalf("ConvertToChain() error = %v", err)
	}
	if ch.ID != "custom-id" || ch.Input != nil || ch.Output != nil || ch.Filters != nil {
		t.Errorf("unexpected chain %+v", ch)
	}
}

func TestConvertToChain_Errors(t *testing.T) {
	chainWith := func(extra map[string]interface{}) map[string]interface{} {
		c := map[string]interface{}{"name": "n", "version": "1"}
		for k, v := range extra {
			c[k] = v
		}
		return map[string]interface{}{"chain": c}
	}

	tests := []struct {
		name    string
		data    map[string]interface{}
		wantErr string
	}{
		{"nil data", nil, "nil"},
		{"missing chain", map[string]interface{}{}, "'chain' section"},
		{"missing name", map[string]interface{}{"chain": map[string]interface{}{"version": "1"}}, "chain.name"},
		{"missing version", map[string]interface{}{"chain": map[string]interface{}{"name": "n"}}, "chain.version"},
		{"input not object", chainWith(map[string]interface{}{"input": "file"}), "chain.input"},
		{"output without type", chainWith(map[string]interface{}{"output": map[string]interface{}{}}), "invalid output config"},
		{"filter not object", chainWith(map[string]interface{}{"filters": []interface{}{"lowercase"}}), "index 0"},
		{"filter config not object", chainWith(map[string]interface{}{
			"filters": []interface{}{map[string]interface{}{"type": "map", "config": []interface{}{}}},
		}), "'config' must be an object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ConvertToChain(tt.data)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}
