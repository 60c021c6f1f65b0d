package actions

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// FileID derives the identity a file's actions are registered under: the
// slash-separated path relative to root, or a file:// URL when root is empty
// or does not contain path. With hash set the identity is replaced by its
// 64-bit xxhash in hex, which keeps paths out of client bundles.
func FileID(path, root string, hash bool) string {
	id := fileURL(path)

	if root != "" {
		if rel, err := filepath.Rel(absPath(root), absPath(path)); err == nil && !escapes(rel) {
			id = filepath.ToSlash(rel)
		}
	}

	if hash {
		return fmt.Sprintf("%016x", xxhash.Sum64String(id))
	}

	return id
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}

	return filepath.Clean(p)
}

func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, "../") || strings.HasPrefix(rel, `..\`) || filepath.IsAbs(rel)
}

func fileURL(path string) string {
	p := filepath.ToSlash(absPath(path))
	if !strings.HasPrefix(p, "/") {
		// Windows drive paths become file:///C:/...
		p = "/" + p
	}

	return (&url.URL{Scheme: "file", Path: p}).String()
}
