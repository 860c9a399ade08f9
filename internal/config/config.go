package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/respfilter/runtime/pkg/chain"
)

// ErrInvalidConfig is returned by Loader.Load when a file fails to parse or validate.
var ErrInvalidConfig = errors.New("invalid chain configuration")

// Loader loads chain configurations relative to a base directory.
type Loader struct {
	basePath string
}

// NewLoader creates a loader resolving relative paths against basePath.
// An empty basePath resolves against the working directory.
func NewLoader(basePath string) *Loader {
	return &Loader{basePath: basePath}
}

// Resolve returns the path Load would read for name.
func (l *Loader) Resolve(name string) string {
	if l.basePath == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(l.basePath, name)
}

// Load parses, validates, and converts a chain configuration file.
// On failure the returned Result lists every parse and validation error.
func (l *Loader) Load(name string) (*chain.Chain, *Result, error) {
	result := ParseConfig(l.Resolve(name))
	if !result.IsValid() {
		return nil, result, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, result.FilePath, errors.Join(result.AllErrors()...))
	}

	ch, err := ConvertToChain(result.Data)
	if err != nil {
		return nil, result, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, result.FilePath, err)
	}
	return ch, result, nil
}
