// Package validation checks names and paths reported by the daemon before
// they are displayed, cached or joined onto a local folder root.
package validation

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateEntryName validates one directory entry name (not a path).
//
// Returns an error if the name:
//   - Is empty
//   - Contains path separators (/ or \)
//   - Is "." or ".."
//   - Contains null bytes
func ValidateEntryName(name string) error {
	if name == "" {
		return fmt.Errorf("entry name cannot be empty")
	}
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("entry name contains null byte: %q", name)
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("entry name cannot contain path separators: %s", name)
	}
	// Names like "foo..bar" are fine; only the literal dot entries are not.
	if name == "." || name == ".." {
		return fmt.Errorf("entry name cannot be %q", name)
	}
	return nil
}

// ValidateRelPath validates a folder-relative, slash-separated path such as
// the path of an ItemFinished event or a browse prefix. Every segment must
// be a valid entry name; surrounding slashes are tolerated.
func ValidateRelPath(path string) error {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return fmt.Errorf("path cannot be empty")
	}
	for _, seg := range strings.Split(trimmed, "/") {
		if err := ValidateEntryName(seg); err != nil {
			return fmt.Errorf("invalid path %q: %w", path, err)
		}
	}
	return nil
}

// ValidatePathInDirectory validates that path, when resolved, lies strictly
// below baseDir. baseDir itself is rejected.
//
// Example:
//
//	ValidatePathInDirectory("../../etc/passwd", "/srv/sync") // Error: escapes base dir
//	ValidatePathInDirectory("docs/a.txt", "/srv/sync")       // OK
//	ValidatePathInDirectory("/srv/sync", "/srv/sync")        // Error: the base itself
func ValidatePathInDirectory(path string, baseDir string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if baseDir == "" {
		return fmt.Errorf("base directory cannot be empty")
	}

	cleanBase := filepath.Clean(baseDir)
	resolved := filepath.Clean(path)
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(cleanBase, resolved)
	}

	rel, err := filepath.Rel(cleanBase, resolved)
	if err != nil {
		return fmt.Errorf("failed to compute relative path: %w", err)
	}
	if rel == "." {
		return fmt.Errorf("path is the base directory itself: %s", path)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path escapes base directory: %s (base: %s)", path, baseDir)
	}
	return nil
}
