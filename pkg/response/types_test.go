package response

import (
	"reflect"
	"testing"
)

func TestBatchClone(t *testing.T) {
	tests := []struct {
		name string
		in   Batch
	}{
		{"nil", nil},
		{"empty", Batch{}},
		{"nil set kept", Batch{nil, {"a"}}},
		{"values", Batch{{"a", "b"}, {}, {1.0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Clone()
			if !reflect.DeepEqual(got, tt.in) {
				t.Fatalf("Clone() = %#v, want %#v", got, tt.in)
			}
			for i := range got {
				if len(got[i]) > 0 {
					got[i][0] = "changed"
					if tt.in[i][0] == "changed" {
						t.Errorf("set %d shares memory with the original", i)
					}
				}
			}
		})
	}
}
