// Package response provides the data types that flow through a filter chain.
// This package is intended to be importable by evaluation frameworks that
// hold model responses in memory and want to run them through respfilter.
package response

import "fmt"

// Set is the ordered list of candidate responses generated for one document.
// Entries are strings on input; the map filter may replace them with any
// JSON-compatible value.
type Set []any

// Batch is the ordered list of response sets, one per document.
// Order is meaningful: Batch[i] belongs to Docs[i].
type Batch []Set

// Doc is the metadata record accompanying one document.
type Doc map[string]interface{}

// Docs is the ordered list of document metadata, parallel to a Batch.
type Docs []Doc

// Len returns the number of documents in the batch.
func (b Batch) Len() int {
	return len(b)
}

// Count returns the total number of responses across all documents.
func (b Batch) Count() int {
	n := 0
	for _, set := range b {
		n += len(set)
	}
	return n
}

// Shape returns the inner length of every response set.
func (b Batch) Shape() []int {
	shape := make([]int, len(b))
	for i, set := range b {
		shape[i] = len(set)
	}
	return shape
}

// Clone returns a copy of b with fresh outer and inner slices. Response
// values themselves are not copied. Clone of a nil batch is nil.
func (b Batch) Clone() Batch {
	if b == nil {
		return nil
	}
	out := make(Batch, len(b))
	for i, set := range b {
		if set != nil {
			out[i] = append(make(Set, 0, len(set)), set...)
		}
	}
	return out
}

// SameShape reports whether two batches have identical outer and inner lengths.
func SameShape(a, b Batch) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
	}
	return true
}

// ShapeError describes the first position where two batches differ in shape.
// Returns nil when the shapes match.
func ShapeError(want, got Batch) error {
	if len(want) != len(got) {
		return fmt.Errorf("expected %d documents, got %d", len(want), len(got))
	}
	for i := range want {
		if len(want[i]) != len(got[i]) {
			return fmt.Errorf("document %d: expected %d responses, got %d", i, len(want[i]), len(got[i]))
		}
	}
	return nil
}

// DocAt returns the metadata for document i, or nil when docs is shorter
// than the batch.
func (d Docs) DocAt(i int) Doc {
	if i < 0 || i >= len(d) {
		return nil
	}
	return d[i]
}

// Strings builds a Batch from plain string slices.
func Strings(sets ...[]string) Batch {
	batch := make(Batch, len(sets))
	for i, set := range sets {
		batch[i] = make(Set, len(set))
		for j, s := range set {
			batch[i][j] = s
		}
	}
	return batch
}
