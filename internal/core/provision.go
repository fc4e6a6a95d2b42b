package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	retry "github.com/sethvargo/go-retry"

	"github.com/giantswarm/testns/internal/keypath"
	"github.com/giantswarm/testns/internal/runlock"
	"github.com/giantswarm/testns/internal/store"
)

// maxCollisionAttempts bounds how many candidate names Provision tries before
// giving up. Collisions of random ids are not expected at all, so hitting the
// bound points at a broken id generator.
const maxCollisionAttempts = 16

// transientRetries is the number of times a transiently failed creation is
// repeated.
const transientRetries = 1

// provisioner allocates uniquely named root containers below the temp root.
type provisioner struct {
	store      store.Provider
	tempRoot   string
	lockDir    string
	newID      func() string
	retryDelay time.Duration
	log        *slog.Logger
}

// Provision creates a new root container and returns its key path together
// with the held run lock guarding it. The lock is taken before the container
// exists, so orphan sweeps of other processes never see it unguarded.
func (p *provisioner) Provision(ctx context.Context) (string, *runlock.Lock, error) {
	for attempt := 1; attempt <= maxCollisionAttempts; attempt++ {
		id := p.newID()
		candidate := keypath.Join(p.tempRoot, id)

		lock, err := runlock.TryAcquire(runlock.Path(p.lockDir, id))
		if err != nil {
			return "", nil, fmt.Errorf("lock namespace root %s: %w", candidate, err)
		}
		if lock == nil {
			p.log.Debug("namespace root candidate locked by another run", "path", candidate)
			continue
		}

		exists, err := p.store.Exists(ctx, candidate)
		if err != nil {
			lock.Remove(p.log)
			return "", nil, fmt.Errorf("check namespace root %s: %w", candidate, err)
		}
		if exists {
			lock.Release(p.log)
			p.log.Debug("namespace root candidate already exists", "path", candidate, "attempt", attempt)
			continue
		}

		err = p.create(ctx, candidate)
		if errors.Is(err, store.ErrExists) {
			// Lost a race against another process between the check and
			// the creation.
			lock.Release(p.log)
			continue
		}
		if err != nil {
			lock.Remove(p.log)
			return "", nil, fmt.Errorf("create namespace root %s: %w", candidate, err)
		}
		return candidate, lock, nil
	}
	return "", nil, fmt.Errorf("%w under %s after %d attempts", ErrProvisionExhausted, p.tempRoot, maxCollisionAttempts)
}

// create creates the container at path, repeating a transiently failed
// attempt exactly once.
func (p *provisioner) create(ctx context.Context, path string) error {
	b := retry.WithMaxRetries(transientRetries, retry.NewConstant(p.retryDelay))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := p.store.Create(ctx, path)
		if store.IsTransient(err) {
			p.log.Warn("transient failure creating namespace root, retrying", "path", path, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
}
