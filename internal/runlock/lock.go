// Package runlock marks a namespace root as owned by a live test run.
//
// The process that provisions a root holds an exclusive lock on
// <lockDir>/<id>.lock for as long as the root scope lives. Any process that
// finds a root container whose lock can be taken knows the owning run is gone
// and the container is an orphan.
package runlock

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/giantswarm/testns/internal/fileutil"
)

// Lock is a held run lock.
type Lock struct {
	fl *flock.Flock
}

// Path returns the lock file path for the root container named id.
func Path(lockDir, id string) string {
	return filepath.Join(lockDir, id+".lock")
}

// TryAcquire takes the lock at path without waiting. It returns a nil Lock and
// nil error when another process holds the lock.
func TryAcquire(path string) (*Lock, error) {
	if err := fileutil.EnsureDirForFile(path); err != nil {
		return nil, err
	}
	fl := flock.New(path)

	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("trying run lock %s: %w", path, err)
	}
	if !locked {
		return nil, nil
	}
	return &Lock{fl: fl}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.fl.Path()
}

// Release unlocks and closes the lock file, which stays on disk. Errors are
// logged at debug level only; a nil Lock is ignored.
func (l *Lock) Release(logger *slog.Logger) {
	if l == nil {
		return
	}
	if err := l.fl.Close(); err != nil {
		logger.Debug("failed to release run lock", "path", l.fl.Path(), "err", err)
	}
}

// Remove deletes the lock file while the lock is still held and then releases
// it. Used once the root container the lock guards is gone.
func (l *Lock) Remove(logger *slog.Logger) {
	if l == nil {
		return
	}
	if err := os.Remove(l.fl.Path()); err != nil && !os.IsNotExist(err) {
		logger.Debug("failed to remove run lock file", "path", l.fl.Path(), "err", err)
	}
	l.Release(logger)
}
