// Package security guards the file names the projection tools derive from
// user input.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateArtifactName checks that name, joined to dir, stays inside dir.
// Artefact names must be relative and must not climb out with "..".
func ValidateArtifactName(dir, name string) error {
	if name == "" {
		return fmt.Errorf("empty artifact name")
	}
	if filepath.IsAbs(name) {
		return fmt.Errorf("artifact name %q must be relative", name)
	}
	base := filepath.Clean(dir)
	if dir == "" {
		base = "."
	}
	rel, err := filepath.Rel(base, filepath.Join(base, name))
	if err != nil {
		return fmt.Errorf("artifact name %q: %w", name, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path traversal detected: %s attempts to escape %s", name, base)
	}
	return nil
}

// SanitizeFilename makes a safe identifier from an arbitrary string. Any
// character other than an ASCII letter, digit, dot, underscore or dash
// becomes an underscore; runs of underscores collapse and the result is
// capped at 128 bytes.
func SanitizeFilename(s string) string {
	const maxLen = 128
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteRune('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
