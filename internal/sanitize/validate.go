package sanitize

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrPathTraversal indicates a name or path that escapes its root.
	ErrPathTraversal = errors.New("path contains directory traversal")

	// ErrEmptyPath indicates an empty name or path.
	ErrEmptyPath = errors.New("path cannot be empty")

	// ErrInvalidThreadName indicates a thread name that is not a plain
	// *.txt file name.
	ErrInvalidThreadName = errors.New("invalid thread name")
)

// MaxThreadNameLength bounds caller-supplied thread names.
const MaxThreadNameLength = 255

// ValidatePath cleans path, makes it absolute and, when allowedRoot is
// set, checks that it stays inside allowedRoot.
func ValidatePath(path, allowedRoot string) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	if allowedRoot == "" {
		return absPath, nil
	}

	absRoot, err := filepath.Abs(allowedRoot)
	if err != nil {
		return "", fmt.Errorf("failed to resolve allowed root: %w", err)
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return "", fmt.Errorf("%w: path outside allowed root", ErrPathTraversal)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path escapes allowed root", ErrPathTraversal)
	}
	return absPath, nil
}

// ValidateThreadName checks a caller-supplied thread name: a bare *.txt
// file name with no directory part.
func ValidateThreadName(name string) error {
	if name == "" {
		return ErrEmptyPath
	}
	if len(name) > MaxThreadNameLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidThreadName, MaxThreadNameLength)
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrPathTraversal, name)
	}
	if strings.ContainsRune(name, 0) || !strings.HasSuffix(name, ".txt") || name == ".txt" {
		return fmt.Errorf("%w: %q", ErrInvalidThreadName, name)
	}
	return nil
}
