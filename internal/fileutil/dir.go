package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnsureDir creates a directory and all parent directories if they don't exist.
// Uses mode 0755. Returns nil if directory already exists.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return nil
}

// EnsureDirForFile creates the parent directory of filePath if it does not
// already exist, ensuring the file can be created without a missing-directory error.
func EnsureDirForFile(filePath string) error {
	if err := EnsureDir(filepath.Dir(filePath)); err != nil {
		return fmt.Errorf("ensure dir for %s: %w", filePath, err)
	}
	return nil
}

// WithinDir reports whether path equals dir or lies below it, after both have
// been made absolute and had their symlinks resolved. Paths that cannot be
// resolved are never within dir.
func WithinDir(path, dir string) bool {
	rp, err := resolve(path)
	if err != nil {
		return false
	}
	rd, err := resolve(dir)
	if err != nil {
		return false
	}
	if rp == rd {
		return true
	}
	return strings.HasPrefix(rp, rd+string(filepath.Separator))
}

func resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
