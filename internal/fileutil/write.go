package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/giantswarm/testns/internal/sentinel"
)

// ErrEmptyPath is returned when a destination path is empty.
const ErrEmptyPath = sentinel.Error("destination path must not be empty")

// TempPrefix prefixes the names of temporary files created by WriteFileAtomic
// while a write is in flight.
const TempPrefix = ".tmp-value-"

// IsTemp reports whether name is an in-flight temporary file of
// WriteFileAtomic.
func IsTemp(name string) bool {
	return strings.HasPrefix(filepath.Base(name), TempPrefix)
}

// WriteFileAtomic writes data to dst, creating parent directories as needed.
// Data is written to a temporary file in the same directory, synced, and then
// renamed onto dst, so readers never observe a partially written value.
func WriteFileAtomic(dst string, data []byte, mode os.FileMode) (retErr error) {
	if dst == "" {
		return ErrEmptyPath
	}
	if err := EnsureDirForFile(dst); err != nil {
		return fmt.Errorf("prepare destination: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(dst), TempPrefix+"*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	writePath := tmpFile.Name()
	defer func() {
		if retErr != nil {
			_ = os.Remove(writePath)
		}
	}()

	if err := tmpFile.Chmod(mode); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	// fsync before rename, otherwise a crash could leave the renamed file
	// with incomplete contents.
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("sync: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(writePath, dst); err != nil {
		return fmt.Errorf("rename temp file to destination: %w", err)
	}
	return nil
}
