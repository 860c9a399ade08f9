package factory

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/respfilter/runtime/internal/errhandling"
	"github.com/respfilter/runtime/internal/modules/filter"
	"github.com/respfilter/runtime/internal/modules/input"
	"github.com/respfilter/runtime/internal/modules/output"
	"github.com/respfilter/runtime/pkg/chain"
	"github.com/respfilter/runtime/pkg/response"
)

func TestCreateInputModule_Nil(t *testing.T) {
	got, err := CreateInputModule(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected nil for nil config")
	}
}

func TestCreateInputModule_Registered(t *testing.T) {
	cfg := &chain.ModuleConfig{
		Type:   input.TypeFile,
		Config: map[string]interface{}{"path": "responses.jsonl"},
	}

	got, err := CreateInputModule(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	file, ok := got.(*input.FileModule)
	if !ok {
		t.Fatalf("expected *input.FileModule, got %T", got)
	}
	if file.Format() != response.FormatJSONL {
		t.Errorf("Format() = %q, want jsonl", file.Format())
	}
}

func TestCreateInputModule_Unknown(t *testing.T) {
	_, err := CreateInputModule(&chain.ModuleConfig{Type: "kafka"})
	if !errors.Is(err, ErrUnknownInput) {
		t.Errorf("error = %v, want ErrUnknownInput", err)
	}
}

func TestCreateOutputModule(t *testing.T) {
	got, err := CreateOutputModule(&chain.ModuleConfig{Type: output.TypeStdout})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	file, ok := got.(*output.FileModule)
	if !ok || file.Path() != output.StdoutPath {
		t.Errorf("unexpected output module %#v", got)
	}

	if got, err := CreateOutputModule(nil); got != nil || err != nil {
		t.Errorf("CreateOutputModule(nil) = %v, %v", got, err)
	}

	if _, err := CreateOutputModule(&chain.ModuleConfig{Type: "s3"}); !errors.Is(err, ErrUnknownOutput) {
		t.Errorf("error = %v, want ErrUnknownOutput", err)
	}
}

func TestCreateFilterModules(t *testing.T) {
	cfgs := []chain.ModuleConfig{
		{Type: filter.TypeFirstClause},
		{Type: filter.TypeYesNo},
		{Type: filter.TypeMap, Config: map[string]interface{}{
			"mapping": map[string]interface{}{"yes": 1, "no": 0},
			"default": -1,
		}},
	}

	modules, err := CreateFilterModules(cfgs)
	if err != nil {
		t.Fatalf("CreateFilterModules() error = %v", err)
	}
	if len(modules) != 3 {
		t.Fatalf("expected 3 modules, got %d", len(modules))
	}

	batch := response.Strings([]string{"True, definitely", "no", "maybe"})
	for _, m := range modules {
		batch, err = m.Apply(context.Background(), batch, nil)
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
	}
	if want := (response.Batch{{1, 0, -1}}); !reflect.DeepEqual(batch, want) {
		t.Errorf("got %v, want %v", batch, want)
	}
}

func TestCreateFilterModules_Empty(t *testing.T) {
	modules, err := CreateFilterModules(nil)
	if err != nil || modules != nil {
		t.Errorf("CreateFilterModules(nil) = %v, %v", modules, err)
	}
}

func TestCreateFilterModules_UnknownType(t *testing.T) {
	_, err := CreateFilterModules([]chain.ModuleConfig{
		{Type: filter.TypeLowercase},
		{Type: "titlecase"},
	})
	if !errors.Is(err, errhandling.ErrUnknownFilter) {
		t.Fatalf("error = %v, want ErrUnknownFilter", err)
	}
	if errhandling.GetErrorCode(err) != errhandling.CodeUnknownFilter {
		t.Errorf("code = %q", errhandling.GetErrorCode(err))
	}
}

func TestCreateFilterModules_InvalidConfig(t *testing.T) {
	_, err := CreateFilterModules([]chain.ModuleConfig{
		{Type: filter.TypeCondition, Config: map[string]interface{}{"expression": "true"}},
	})
	if !errhandling.IsConfigurationError(err) {
		t.Errorf("error = %v, want configuration error", err)
	}
}

func TestCreateFilterModules_NestedCondition(t *testing.T) {
	cfgs := []chain.ModuleConfig{{
		Type: filter.TypeCondition,
		Config: map[string]interface{}{
			"expression": `doc.task == "vqa"`,
			"then": map[string]interface{}{
				"type": filter.TypeCondition,
				"config": map[string]interface{}{
					"expression": "index == 0",
					"then":       map[string]interface{}{"type": filter.TypeUppercase},
				},
			},
		},
	}}

	modules, err := CreateFilterModules(cfgs)
	if err != nil {
		t.Fatalf("CreateFilterModules() error = %v", err)
	}

	in := response.Strings([]string{"a"}, []string{"b"}, []string{"c"})
	docs := response.Docs{{"task": "vqa"}, {"task": "vqa"}, {"task": "caption"}}
	got, err := modules[0].Apply(context.Background(), in, docs)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	// The inner condition sees the selected documents re-indexed from 0.
	want := response.Strings([]string{"A"}, []string{"b"}, []string{"c"})
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNestingDepth(t *testing.T) {
	leaf := map[string]interface{}{"type": filter.TypeLowercase}
	cfg := map[string]interface{}{"expression": "true", "then": leaf}
	for i := 0; i < maxNestingDepth+1; i++ {
		cfg = map[string]interface{}{
			"expression": "true",
			"then":       map[string]interface{}{"type": filter.TypeCondition, "config": cfg},
		}
	}

	_, err := CreateFilterModule(chain.ModuleConfig{Type: filter.TypeCondition, Config: cfg}, 0)
	if err == nil || !errhandling.IsConfigurationError(err) {
		t.Errorf("error = %v, want nesting configuration error", err)
	}

	if d := nestingDepth(map[string]interface{}{"then": leaf, "else": leaf}, 0); d != 1 {
		t.Errorf("nestingDepth() = %d, want 1", d)
	}
}

func TestCreateChainModules(t *testing.T) {
	dir := t.TempDir()
	ch := &chain.Chain{
		Name:    "gqa",
		Input:   &chain.ModuleConfig{Type: input.TypeFile, Config: map[string]interface{}{"path": filepath.Join(dir, "in.json")}},
		Filters: []chain.ModuleConfig{{Type: filter.AliasGQAPretrainLlama}},
		Output:  &chain.ModuleConfig{Type: output.TypeFile, Config: map[string]interface{}{"path": filepath.Join(dir, "out.json")}},
	}

	modules, err := CreateChainModules(ch)
	if err != nil {
		t.Fatalf("CreateChainModules() error = %v", err)
	}
	if modules.Input == nil || modules.Output == nil || len(modules.Filters) != 1 {
		t.Errorf("unexpected modules %+v", modules)
	}

	if _, err := CreateChainModules(nil); err == nil {
		t.Error("expected error for nil chain")
	}
}
