package export

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrMissingPath   = errors.New("missing path parameter")
	ErrPathForbidden = errors.New("invalid file path")
	ErrNotFound      = errors.New("file not found")
)

// ResolveDownload checks that path names a regular file inside an export
// folder of tempDir and returns its cleaned form. Symlinks are resolved so a
// link inside an export folder cannot point elsewhere.
func ResolveDownload(tempDir, path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrMissingPath
	}
	allowed := exportPrefixes(tempDir)
	clean := filepath.Clean(path)
	if !filepath.IsAbs(clean) || !hasAnyPrefix(clean, allowed) {
		return "", ErrPathForbidden
	}
	info, err := os.Stat(clean)
	if err != nil {
		return "", ErrNotFound
	}
	if !info.Mode().IsRegular() {
		return "", ErrNotFound
	}
	resolved, err := filepath.EvalSymlinks(clean)
	if err != nil {
		return "", ErrNotFound
	}
	if !hasAnyPrefix(resolved, allowed) {
		return "", ErrPathForbidden
	}
	return clean, nil
}

// exportPrefixes returns <tempDir>/cb-export- both as configured and with
// symlinks resolved, since /tmp is itself a link on some systems.
func exportPrefixes(tempDir string) []string {
	base := filepath.Clean(tempDir)
	prefixes := []string{filepath.Join(base, FolderPrefix)}
	if resolved, err := filepath.EvalSymlinks(base); err == nil && resolved != base {
		prefixes = append(prefixes, filepath.Join(resolved, FolderPrefix))
	}
	return prefixes
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
