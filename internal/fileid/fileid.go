// Package fileid derives stable source IDs for files ingested from disk, so
// re-ingesting or deleting a watched file addresses the same source.
package fileid

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
)

// namespace scopes file-derived IDs away from random source IDs.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("kura:file"))

// ForPath returns the source ID for path. The path is made absolute and
// cleaned first, so equivalent spellings map to the same ID.
func ForPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", path, err)
	}
	return FromAbs(abs), nil
}

// FromAbs is ForPath for a path already known to be absolute.
func FromAbs(absolutePath string) string {
	return uuid.NewSHA1(namespace, []byte("file://"+filepath.Clean(absolutePath))).String()
}
