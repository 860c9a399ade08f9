package filter

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/respfilter/runtime/internal/errhandling"
	"github.com/respfilter/runtime/pkg/response"
)

func applyOne(t *testing.T, m Module, in string) any {
	t.Helper()
	out, err := m.Apply(context.Background(), response.Strings([]string{in}), nil)
	if err != nil {
		t.Fatalf("Apply(%q) error = %v", in, err)
	}
	return out[0][0]
}

func TestTextFilters(t *testing.T) {
	tests := []struct {
		name   string
		module Module
		in     string
		want   string
	}{
		{"lowercase mixed", NewLowercase(), "Hello World", "hello world"},
		{"lowercase empty", NewLowercase(), "", ""},
		{"lowercase unicode", NewLowercase(), "ÉCOLE", "école"},
		{"uppercase mixed", NewUppercase(), "Hello World", "HELLO WORLD"},
		{"uppercase unicode", NewUppercase(), "résumé", "RÉSUMÉ"},
		{"uppercase sharp s expands", NewUppercase(), "straße", "STRASSE"},
		{"uppercase ligature expands", NewUppercase(), "ﬁne", "FINE"},

		{"yes no true", NewYesNo(), "true", "yes"},
		{"yes no False", NewYesNo(), "False", "no"},
		{"yes no TRUE", NewYesNo(), "TRUE", "yes"},
		{"yes no other keeps casing", NewYesNo(), "Maybe", "Maybe"},
		{"yes no padded is not matched", NewYesNo(), " true", " true"},

		{"unanswerable bare", NewUnanswerableFormat(), "unanswerable", UnanswerableFormatPhrase},
		{"unanswerable punctuated", NewUnanswerableFormat(), "Unanswerable.", UnanswerableFormatPhrase},
		{"unanswerable shouted", NewUnanswerableFormat(), "UNANSWERABLE!!", UnanswerableFormatPhrase},
		{"unanswerable in sentence", NewUnanswerableFormat(), "it is unanswerable", "it is unanswerable"},
		{"unanswerable other", NewUnanswerableFormat(), "A dog", "A dog"},

		{"first clause cut", NewFirstClause(), "yes, he is wearing a wetsuit", "yes"},
		{"first clause first separator only", NewFirstClause(), "red, blue, green", "red"},
		{"first clause keeps casing when cut", NewFirstClause(), "Yes, it is", "Yes"},
		{"first clause strips without separator", NewFirstClause(), `computer"`, "computer"},
		{"first clause comma without space", NewFirstClause(), "A,B", "ab"},
		{"first clause lowercases", NewFirstClause(), "Two Dogs.", "two dogs"},

		{"marker match", NewUnanswerableMarker(), "The question is Unanswerable here", UnanswerableMarkerReplacement},
		{"marker case sensitive", NewUnanswerableMarker(), "unanswerable", "unanswerable"},
		{"marker passthrough", NewUnanswerableMarker(), "a cat", "a cat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := applyOne(t, tt.module, tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFirstClauseExample(t *testing.T) {
	in := response.Strings([]string{"yes, he is wearing a wetsuit", `computer"`})

	out, err := NewFirstClause().Apply(context.Background(), in, nil)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	want := response.Strings([]string{"yes", "computer"})
	if !reflect.DeepEqual(out, want) {
		t.Errorf("got %v, want %v", out, want)
	}
}

func TestStripNonWord(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"hello, world!", "hello world"},
		{"snake_case", "snake_case"},
		{"café?", "café"},
		{"你好？", "你好"},
		{"tab\there", "tab\there"},
		{"a b", "a b"},
		{"100%", "100"},
		{`"quoted"`, "quoted"},
	}
	for _, tt := range tests {
		if got := stripNonWord(tt.in); got != tt.want {
			t.Errorf("stripNonWord(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func builtinModules() map[string]Module {
	return map[string]Module{
		TypeLowercase:          NewLowercase(),
		TypeUppercase:          NewUppercase(),
		TypeYesNo:              NewYesNo(),
		TypeUnanswerableFormat: NewUnanswerableFormat(),
		TypeFirstClause:        NewFirstClause(),
		TypeUnanswerableMarker: NewUnanswerableMarker(),
	}
}

func TestTextFiltersPreserveShape(t *testing.T) {
	batches := map[string]response.Batch{
		"empty batch":   {},
		"empty set":     {{}},
		"ragged":        response.Strings([]string{"a"}, []string{}, []string{"B, c", "true", "Unanswerable"}),
		"single ragged": response.Strings([]string{"x", "y", "z"}),
	}

	for name, module := range builtinModules() {
		for batchName, in := range batches {
			t.Run(name+"/"+batchName, func(t *testing.T) {
				out, err := module.Apply(context.Background(), in, nil)
				if err != nil {
					t.Fatalf("Apply() error = %v", err)
				}
				if !response.SameShape(in, out) {
					t.Errorf("shape changed: in %v, out %v", in.Shape(), out.Shape())
				}
			})
		}
	}
}

func TestTextFiltersNilBatch(t *testing.T) {
	for name, module := range builtinModules() {
		out, err := module.Apply(context.Background(), nil, nil)
		if err != nil {
			t.Fatalf("%s: Apply(nil) error = %v", name, err)
		}
		if out == nil || len(out) != 0 {
			t.Errorf("%s: Apply(nil) = %#v, want empty batch", name, out)
		}
	}
}

func TestTextFiltersIdempotent(t *testing.T) {
	in := response.Strings([]string{"Hello", "TRUE", "false", "Unanswerable.", "x Unanswerable y", "a, b", "plain"})

	for name, module := range builtinModules() {
		t.Run(name, func(t *testing.T) {
			once, err := module.Apply(context.Background(), in, nil)
			if err != nil {
				t.Fatalf("first Apply() error = %v", err)
			}
			twice, err := module.Apply(context.Background(), once, nil)
			if err != nil {
				t.Fatalf("second Apply() error = %v", err)
			}
			if !reflect.DeepEqual(once, twice) {
				t.Errorf("not idempotent: once %v, twice %v", once, twice)
			}
		})
	}
}

func TestTextFiltersDoNotMutateInput(t *testing.T) {
	in := response.Strings([]string{"Hello, World", "TRUE"})
	snapshot := response.Strings([]string{"Hello, World", "TRUE"})

	for name, module := range builtinModules() {
		if _, err := module.Apply(context.Background(), in, nil); err != nil {
			t.Fatalf("%s: Apply() error = %v", name, err)
		}
		if !reflect.DeepEqual(in, snapshot) {
			t.Fatalf("%s mutated its input: %v", name, in)
		}
	}
}

func TestTextFiltersRejectNonString(t *testing.T) {
	in := response.Batch{{"ok"}, {"fine", 42}}

	for name, module := range builtinModules() {
		t.Run(name, func(t *testing.T) {
			_, err := module.Apply(context.Background(), in, nil)
			if err == nil {
				t.Fatal("expected error for non-string response")
			}
			if !errors.Is(err, errhandling.ErrNotString) {
				t.Errorf("error %v does not wrap ErrNotString", err)
			}
			if got := errhandling.GetErrorCategory(err); got != errhandling.CategoryType {
				t.Errorf("category = %q, want %q", got, errhandling.CategoryType)
			}
			if !strings.Contains(err.Error(), "document 1 response 1") {
				t.Errorf("error %q does not name the position", err.Error())
			}
		})
	}
}

func TestTextFiltersContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for name, module := range builtinModules() {
		_, err := module.Apply(ctx, response.Strings([]string{"a"}), nil)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("%s: error = %v, want context.Canceled", name, err)
		}
	}
}

func TestTypeNames(t *testing.T) {
	for name, module := range builtinModules() {
		typed, ok := module.(Typed)
		if !ok {
			t.Fatalf("%s does not implement Typed", name)
		}
		if typed.Type() != name {
			t.Errorf("Type() = %q, want %q", typed.Type(), name)
		}
	}
}

func TestApplyValuesChecksContextBetweenDocuments(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sets := make([][]string, cancelCheckInterval*2)
	for i := range sets {
		sets[i] = []string{"x"}
	}

	seen := 0
	_, err := applyValues(ctx, response.Strings(sets...), func(docIdx, _ int, value any) (any, error) {
		seen++
		if docIdx == 10 {
			cancel()
		}
		return value, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if seen != cancelCheckInterval {
		t.Errorf("processed %d documents before stopping, want %d", seen, cancelCheckInterval)
	}
}
