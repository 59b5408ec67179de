// Package pathutil converts between absolute paths, root-relative paths and file URIs.
//
// The index stores absolute paths internally. Relative paths are only produced for
// display (hover lines, CLI output) and URIs only at protocol boundaries.
package pathutil

import (
	"fmt"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
)

// StripRoot removes the workspace root prefix, plus one following separator, from an
// absolute path. Paths that do not start with root are returned unchanged.
//
// Examples:
//   - StripRoot("/ws/src/A.scala", "/ws") → "src/A.scala"
//   - StripRoot("/ws/src/A.scala", "/ws/") → "src/A.scala"
//   - StripRoot("/other/A.scala", "/ws") → "/other/A.scala"
func StripRoot(absPath, root string) string {
	if root == "" || !strings.HasPrefix(absPath, root) {
		return absPath
	}
	rest := absPath[len(root):]
	sep := string(filepath.Separator)
	switch {
	case strings.HasPrefix(rest, sep):
		rest = rest[len(sep):]
	case strings.HasPrefix(rest, "/"):
		rest = rest[1:]
	}
	return rest
}

// ToRelative converts an absolute path to relative based on a root directory.
// Falls back to the original path if conversion fails or path is already relative.
//
// Examples:
//   - ToRelative("/home/user/project/src/Main.scala", "/home/user/project") → "src/Main.scala"
//   - ToRelative("/other/location/A.scala", "/home/user/project") → "/other/location/A.scala" (outside root)
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" {
		return absPath
	}

	if !filepath.IsAbs(absPath) {
		return absPath
	}

	absPath = filepath.Clean(absPath)
	rootDir = filepath.Clean(rootDir)

	relPath, err := filepath.Rel(rootDir, absPath)
	if err != nil {
		return absPath
	}

	// Outside the root: the absolute path is clearer
	if strings.HasPrefix(relPath, "..") {
		return absPath
	}

	return relPath
}

// FileURIToPath converts a file:// URI to a filesystem path.
// Any other scheme, or a URI without a path, is an error.
func FileURIToPath(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid URI %q: %w", uri, err)
	}
	if !strings.EqualFold(u.Scheme, "file") {
		return "", fmt.Errorf("unsupported URI scheme %q", u.Scheme)
	}
	if u.Path == "" {
		return "", fmt.Errorf("URI %q has no path", uri)
	}

	path := u.Path
	// file:///C:/dir → C:/dir
	if runtime.GOOS == "windows" && len(path) >= 3 && path[0] == '/' && path[2] == ':' {
		path = path[1:]
	}
	return filepath.FromSlash(path), nil
}

// IsFileURI reports whether uri uses the file scheme
func IsFileURI(uri string) bool {
	return len(uri) >= len("file://") && strings.EqualFold(uri[:len("file://")], "file://")
}

// PathToFileURI converts an absolute path to a percent-encoded file:// URI
func PathToFileURI(absPath string) string {
	p := filepath.ToSlash(absPath)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u := url.URL{Scheme: "file", Path: p}
	return u.String()
}
