package storage

import (
	"path"
	"strings"
)

// DirectoryContentType marks the zero-byte objects that stand in for
// directories on flat object stores.
const DirectoryContentType = "application/x-directory"

// CleanPath normalises a slash separated storage path into an object key:
// it is cleaned and stripped of leading slashes. The root becomes "".
func CleanPath(p string) string {
	p = strings.TrimLeft(path.Clean("/"+p), "/")

	return p
}

// MarkerKey returns the key of the directory marker object for dir.
func MarkerKey(dir string) string {
	return CleanPath(dir) + "/"
}

// Ancestors returns dir and all of its ancestors, outermost first.
// "a/b/c" yields ["a", "a/b", "a/b/c"]. The root yields nothing.
func Ancestors(dir string) []string {
	dir = CleanPath(dir)
	if dir == "" {
		return nil
	}

	parts := strings.Split(dir, "/")
	out := make([]string, 0, len(parts))

	for i := range parts {
		out = append(out, strings.Join(parts[:i+1], "/"))
	}

	return out
}

// parentDir returns the cleaned parent of an object key, "" for top-level keys.
func parentDir(key string) string {
	dir := path.Dir(CleanPath(key))
	if dir == "." || dir == "/" {
		return ""
	}

	return dir
}
