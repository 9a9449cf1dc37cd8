// Package validation provides the checks applied to everything peek hands to
// an external process or writes into generated source: toolkit arguments,
// filesystem paths, scaffold project names, and Go import paths.
package validation

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/mod/module"
)

// ValidateArgument validates a command line argument to prevent injection attacks.
// Absolute paths are allowed because toolkit invocations carry the scaffold
// directory and prebuilt binary path.
func ValidateArgument(arg string) error {
	if strings.ContainsRune(arg, 0) {
		return fmt.Errorf("contains null byte")
	}

	// Check for shell metacharacters that could be used for command injection
	dangerous := []string{";", "&", "|", "$", "`", "<", ">", "\"", "'", "\n"}
	for _, char := range dangerous {
		if strings.Contains(arg, char) {
			return fmt.Errorf("contains dangerous character: %q", char)
		}
	}

	return nil
}

// ValidatePath validates a path relative to some root to prevent traversal.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	cleanPath := filepath.Clean(path)
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path traversal detected: %s", path)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "<", ">"}
	for _, char := range dangerousChars {
		if strings.Contains(path, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}

// ValidateWithin reports an error unless target resolves inside root.
func ValidateWithin(root, target string) error {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return fmt.Errorf("resolving %s against %s: %w", target, root, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%s escapes %s", target, root)
	}
	return nil
}

// ValidateProjectName checks a scaffold project name. The toolkit uses it as
// a package and binary name, so it must be a lowercase identifier.
func ValidateProjectName(name string) error {
	if name == "" {
		return fmt.Errorf("project name cannot be empty")
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return fmt.Errorf("project name %q must match [a-z_][a-z0-9_]*", name)
		}
	}
	return nil
}

// ValidateImportPath checks a path before it is emitted into generated source.
func ValidateImportPath(path string) error {
	if err := module.CheckImportPath(path); err != nil {
		return fmt.Errorf("invalid import path: %w", err)
	}
	return nil
}

// SanitizeInput removes control characters other than common whitespace.
func SanitizeInput(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var sanitized strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' || r == '\r' {
			sanitized.WriteRune(r)
		}
	}

	return sanitized.String()
}
