package response

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Serialized formats of a batch.
const (
	// FormatJSON is a single object: {"resps": [[...], ...], "docs": [{...}, ...]}.
	FormatJSON = "json"
	// FormatJSONL is one object per document: {"doc": {...}, "resps": [...]}.
	FormatJSONL = "jsonl"
)

// File is the FormatJSON document.
type File struct {
	Resps Batch `json:"resps"`
	Docs  Docs  `json:"docs,omitempty"`
}

// Line is one FormatJSONL record.
type Line struct {
	Doc   Doc `json:"doc,omitempty"`
	Resps Set `json:"resps"`
}

// ResolveFormat returns the explicit format when set, otherwise infers it
// from the file extension (.jsonl and .ndjson are line-delimited; everything
// else, including stdin, is FormatJSON).
func ResolveFormat(explicit, path string) (string, error) {
	switch strings.ToLower(explicit) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatJSONL, "ndjson":
		return FormatJSONL, nil
	case "", "auto":
	default:
		return "", fmt.Errorf("unsupported format %q (expected %q or %q)", explicit, FormatJSON, FormatJSONL)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	default:
		return FormatJSON, nil
	}
}
