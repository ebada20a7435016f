package zfile

import (
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// Find searches a colon- or semicolon-delimited directory list for a
// file and returns the full path of the first match. An empty path
// list matches only the current directory. When executable is true,
// only files the process may execute match.
func Find(filename, path string, executable bool) (string, bool) {
	if filename == "" {
		return "", false
	}

	mode := uint32(unix.F_OK)
	if executable {
		mode = unix.X_OK
	}

	if path == "" {
		if unix.Access(filename, mode) == nil {
			return filename, true
		}
		return "", false
	}

	for _, dir := range strings.FieldsFunc(path, func(r rune) bool {
		return r == ':' || r == ';'
	}) {
		candidate := filepath.Join(dir, filename)
		if unix.Access(candidate, mode) == nil {
			return candidate, true
		}
	}

	return "", false
}
