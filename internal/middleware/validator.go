package middleware

import (
	"fmt"
	"regexp"
	"strings"
)

var artifactIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._/-]{0,127}$`)

// ValidateArtifactID rejects ids that would not round-trip through the
// link table or object-store keys.
func ValidateArtifactID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("artifact id is required")
	}
	if !artifactIDPattern.MatchString(id) {
		return fmt.Errorf("invalid artifact id: %q", id)
	}
	return nil
}

// ValidateK clamps a neighbor count into a sane window.
func ValidateK(k int) int {
	if k <= 0 {
		return 5
	}
	if k > 100 {
		return 100
	}
	return k
}

// ValidateContentSize bounds ingest payloads. The analyzer truncates
// further before the provider call; this guards the HTTP surface.
func ValidateContentSize(n int) error {
	const maxIngestBytes = 4 * 1024 * 1024
	if n > maxIngestBytes {
		return fmt.Errorf("content exceeds %d byte limit", maxIngestBytes)
	}
	return nil
}
