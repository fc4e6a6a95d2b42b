package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/giantswarm/testns/internal/keypath"
	"github.com/giantswarm/testns/internal/store"
)

// cleaner records namespace contents at nested scope entry and removes
// everything created afterwards at scope exit.
type cleaner struct {
	store store.Provider
	alias string
	log   *slog.Logger
}

// listAllPaths returns the set of all item paths below root.
func (c *cleaner) listAllPaths(ctx context.Context, root string) ([]string, error) {
	paths, err := c.store.ListAll(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("list items under %s: %w", root, err)
	}
	return paths, nil
}

// Snapshot returns the set of item paths currently below root.
func (c *cleaner) Snapshot(ctx context.Context, root string) (map[string]struct{}, error) {
	paths, err := c.listAllPaths(ctx, root)
	if err != nil {
		return nil, err
	}
	snap := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		snap[p] = struct{}{}
	}
	return snap, nil
}

// Clean deletes every item below root that is not in exclude, descendants
// before their ancestors. It does nothing when the alias is not mounted.
func (c *cleaner) Clean(ctx context.Context, root string, exclude map[string]struct{}) error {
	_, ok, err := mounted(ctx, c.store, c.alias)
	if err != nil {
		return err
	}
	if !ok {
		c.log.Debug("namespace not mounted, nothing to clean", "alias", c.alias)
		return nil
	}

	paths, err := c.listAllPaths(ctx, root)
	if errors.Is(err, store.ErrNotFound) {
		c.log.Warn("namespace root vanished while alias still mounted", "alias", c.alias, "root", root)
		return nil
	}
	if err != nil {
		return err
	}

	keypath.SortDeepestFirst(paths)
	removed := 0
	for _, p := range paths {
		if _, keep := exclude[p]; keep {
			continue
		}
		if err := c.store.Delete(ctx, p, true); err != nil {
			// Already gone together with a container deleted earlier.
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return fmt.Errorf("remove scope item %s: %w", p, err)
		}
		removed++
	}
	if removed > 0 {
		c.log.Debug("scope items removed", "root", root, "count", removed)
	}
	return nil
}
