// Package pathutil checks the file paths that chain configurations and CLI
// flags hand to the input, output and script modules.
package pathutil

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrEmptyPath is returned for an empty path.
	ErrEmptyPath = errors.New("file path is empty")
	// ErrInvalidPath is returned for a path containing a NUL byte.
	ErrInvalidPath = errors.New("file path contains a NUL byte")
	// ErrPathTraversal is returned for a path with a ".." segment.
	ErrPathTraversal = errors.New("file path contains a parent directory reference")
)

// ValidateFilePath rejects empty paths, NUL bytes and any ".." segment.
// Segments are checked on the raw path since filepath.Clean would fold
// "responses/../../x" into "../x" or hide the reference entirely.
// Absolute paths are accepted.
func ValidateFilePath(filePath string) error {
	if filePath == "" {
		return ErrEmptyPath
	}
	if strings.IndexByte(filePath, 0) >= 0 {
		return ErrInvalidPath
	}

	for _, segment := range strings.Split(filepath.ToSlash(filePath), "/") {
		if segment == ".." {
			return fmt.Errorf("%w: %q", ErrPathTraversal, filePath)
		}
	}
	return nil
}
