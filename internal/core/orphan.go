package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/giantswarm/testns/internal/keypath"
	"github.com/giantswarm/testns/internal/runlock"
	"github.com/giantswarm/testns/internal/store"
)

// purger removes root containers left behind by runs that died before their
// root scope teardown.
type purger struct {
	store       store.Provider
	tempRoot    string
	lockDir     string
	concurrency int
	log         *slog.Logger
}

// Purge deletes every direct child of the temp root whose run lock is free,
// unmounting any alias still bound to it. It returns the number of containers
// removed. Containers of live runs, this process included, are skipped.
func (p *purger) Purge(ctx context.Context) (int, error) {
	paths, err := p.store.ListAll(ctx, p.tempRoot)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("list temp root %s: %w", p.tempRoot, err)
	}

	depth := keypath.Depth(p.tempRoot) + 1
	var candidates []string
	for _, path := range paths {
		if keypath.Depth(path) == depth {
			candidates = append(candidates, path)
		}
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	mounts, err := p.store.Mounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("list mounts: %w", err)
	}

	var purged atomic.Int64
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, root := range candidates {
		g.Go(func() error {
			ok, err := p.purgeOne(gCtx, root, mounts)
			if err != nil {
				return fmt.Errorf("purge orphan %s: %w", root, err)
			}
			if ok {
				purged.Add(1)
			}
			return nil
		})
	}

	err = g.Wait()
	n := int(purged.Load())
	if n > 0 {
		p.log.Info("orphaned namespaces purged", "temp_root", p.tempRoot, "count", n)
	}
	return n, err
}

// purgeOne removes root unless a live run holds its lock.
func (p *purger) purgeOne(ctx context.Context, root string, mounts map[string]string) (bool, error) {
	lock, err := runlock.TryAcquire(runlock.Path(p.lockDir, keypath.Base(root)))
	if err != nil {
		return false, err
	}
	if lock == nil {
		p.log.Debug("namespace root owned by a live run, skipping", "root", root)
		return false, nil
	}

	for alias, bound := range mounts {
		if bound != root {
			continue
		}
		if err := p.store.Unmount(ctx, alias); err != nil && !errors.Is(err, store.ErrNotMounted) {
			lock.Release(p.log)
			return false, fmt.Errorf("%w: alias %s: %w", ErrUnmount, alias, err)
		}
	}

	if err := p.store.Delete(ctx, root, true); err != nil && !errors.Is(err, store.ErrNotFound) {
		lock.Release(p.log)
		return false, err
	}
	lock.Remove(p.log)
	p.log.Debug("orphaned namespace removed", "root", root)
	return true, nil
}
