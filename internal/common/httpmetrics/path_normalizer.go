package httpmetrics

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const idPlaceholder = "{id}"

// NormalizePath replaces identifier segments (account UUIDs, numeric ids)
// with a placeholder so metric label cardinality stays bounded.
func NormalizePath(path string) string {
	if path == "" || path == "/" {
		return "/"
	}

	segments := strings.Split(path, "/")
	for i, segment := range segments {
		if isIdentifier(segment) {
			segments[i] = idPlaceholder
		}
	}
	return strings.Join(segments, "/")
}

func isIdentifier(segment string) bool {
	if segment == "" {
		return false
	}
	if _, err := strconv.ParseUint(segment, 10, 64); err == nil {
		return true
	}
	_, err := uuid.Parse(segment)
	return err == nil && len(segment) == 36
}
