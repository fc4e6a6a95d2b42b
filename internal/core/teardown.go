package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/giantswarm/testns/internal/keypath"
	"github.com/giantswarm/testns/internal/store"
)

// teardowner unmounts the alias and deletes the root container when the root
// scope ends.
type teardowner struct {
	store store.Provider
	alias string
	log   *slog.Logger
}

// Teardown removes the alias binding and the root container. An empty root
// means "whatever the alias is bound to". It does nothing when the alias is
// not mounted. A failed unmount is fatal and wrapped in ErrUnmount; the root
// container is then left in place.
func (td *teardowner) Teardown(ctx context.Context, root string) error {
	bound, ok, err := mounted(ctx, td.store, td.alias)
	if err != nil {
		return err
	}
	if !ok {
		td.log.Debug("namespace not mounted, nothing to tear down", "alias", td.alias)
		return nil
	}
	if root == "" {
		root = bound
	}

	if loc, ok := td.store.(store.Locator); ok {
		if cur, inside := loc.Location(); inside && keypath.Within(cur, root) {
			td.log.Warn("current location is inside the namespace being torn down",
				"location", cur, "root", root)
		}
	}

	if err := td.store.Unmount(ctx, td.alias); err != nil && !errors.Is(err, store.ErrNotMounted) {
		return fmt.Errorf("%w: alias %s: %w", ErrUnmount, td.alias, err)
	}

	if err := td.store.Delete(ctx, root, true); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			td.log.Debug("namespace root already gone", "root", root)
			return nil
		}
		return fmt.Errorf("delete namespace root %s: %w", root, err)
	}
	td.log.Debug("namespace torn down", "alias", td.alias, "root", root)
	return nil
}
