package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/giantswarm/testns/internal/keypath"
)

// Config holds configuration for a Coordinator.
//
// All fields are immutable after construction via NewCoordinator.
type Config struct {
	// Alias is the well-known name the namespace root is mounted under.
	Alias string

	// TempRoot is the key path of the shared container under which root
	// containers are provisioned, one per run.
	TempRoot string

	// LockDir is the local directory holding the run lock files.
	LockDir string

	// RetryDelay is the pause before the single retry of a transiently
	// failed root container creation.
	RetryDelay time.Duration

	// PurgeOrphans enables the orphan sweep of TempRoot during OnStart.
	PurgeOrphans bool

	// PurgeConcurrency bounds the number of orphans purged in parallel.
	PurgeConcurrency int

	// NewID generates the leaf name of a candidate root container. It must
	// return a different value on every call.
	NewID func() string
}

// Validate checks all Config invariants and returns an error describing every
// violation found, joined with errors.Join.
func (c Config) Validate() error {
	var errs []error

	if c.Alias == "" {
		errs = append(errs, errors.New("alias must not be empty"))
	} else if strings.ContainsAny(c.Alias, `/\`) || c.Alias == "." || c.Alias == ".." {
		errs = append(errs, fmt.Errorf("alias must be a single path segment, got %q", c.Alias))
	}
	if c.TempRoot == "" || keypath.Clean(c.TempRoot) == keypath.Separator {
		errs = append(errs, fmt.Errorf("temp root must be a non-root key path, got %q", c.TempRoot))
	}
	if c.LockDir == "" {
		errs = append(errs, errors.New("lock directory must not be empty"))
	}
	if c.RetryDelay <= 0 {
		errs = append(errs, fmt.Errorf("retry delay must be greater than 0, got %s", c.RetryDelay))
	}
	if c.PurgeConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("purge concurrency must be greater than 0, got %d", c.PurgeConcurrency))
	}
	if c.NewID == nil {
		errs = append(errs, errors.New("id generator must not be nil"))
	}

	return errors.Join(errs...)
}
