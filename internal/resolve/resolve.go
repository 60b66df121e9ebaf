// Package resolve turns user-supplied filename/URL/directory arguments into
// a concrete, ordered list of manifest file paths to read.
package resolve

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// IsURL reports whether name looks like an http(s) URL rather than a local path.
func IsURL(name string) bool {
	return strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://")
}

// ReadRemoteFileContent fetches name over HTTP(S) with a bounded timeout.
func ReadRemoteFileContent(name string) ([]byte, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(name)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", name, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// ResolveAllFiles expands filenames into a flat, sorted list of concrete
// manifest paths. Glob patterns are expanded first (a pattern matching
// nothing is kept as given); entries that are URLs or "-" (stdin) pass
// through unchanged; entries that are directories are expanded
// (recursively when recursive is true) to the YAML/JSON files they contain.
func ResolveAllFiles(filenames []string, recursive bool) ([]string, error) {
	var names []string
	for _, name := range filenames {
		matches, err := filepath.Glob(name)
		if err != nil || len(matches) == 0 {
			names = append(names, name)
			continue
		}
		names = append(names, matches...)
	}

	var out []string
	for _, name := range names {
		if name == "-" || IsURL(name) {
			out = append(out, name)
			continue
		}
		info, err := os.Stat(name)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", name, err)
		}
		if !info.IsDir() {
			out = append(out, name)
			continue
		}
		expanded, err := expandDir(name, recursive)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
	}
	sort.Strings(out)
	return out, nil
}

func expandDir(dir string, recursive bool) ([]string, error) {
	var out []string
	walk := func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if isManifestFile(path) {
			out = append(out, path)
		}
		return nil
	}
	if err := filepath.WalkDir(dir, walk); err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return out, nil
}

func isManifestFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	default:
		return false
	}
}
