package core

import (
	"fmt"
	"path/filepath"
	"strings"
)

// normalizeSeparators accepts either separator style in configuration and
// worklist input and returns the host-native form.
func normalizeSeparators(p string) string {
	return filepath.FromSlash(strings.ReplaceAll(p, `\`, "/"))
}

// Canonicalize returns the canonical form of an absolute path: separators
// normalized, lexically cleaned, and symbolic links resolved.
//
// The path must exist; resolution errors are returned unchanged so callers can
// test them with errors.Is(err, fs.ErrNotExist).
func Canonicalize(p string) (string, error) {
	s := normalizeSeparators(strings.TrimSpace(p))
	if !filepath.IsAbs(s) {
		return "", fmt.Errorf("%w: %q", ErrRelativePath, p)
	}
	resolved, err := filepath.EvalSymlinks(filepath.Clean(s))
	if err != nil {
		return "", err
	}
	return filepath.Clean(resolved), nil
}

// canonicalDir canonicalizes a configured directory that may not exist yet.
// Missing paths keep their lexically cleaned form.
func canonicalDir(p string) string {
	clean := filepath.Clean(normalizeSeparators(p))
	if resolved, err := filepath.EvalSymlinks(clean); err == nil {
		return filepath.Clean(resolved)
	}
	return clean
}

// Within reports whether child lies at or under parent and returns the
// slash-separated relative path ("." when they are equal).
//
// Both arguments must be canonical absolute paths.
func Within(parent, child string) (string, bool) {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
