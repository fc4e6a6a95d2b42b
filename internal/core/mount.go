package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	retry "github.com/sethvargo/go-retry"

	"github.com/giantswarm/testns/internal/store"
)

// mounter exposes a root container under the well-known alias.
type mounter struct {
	store      store.Provider
	retryDelay time.Duration
	log        *slog.Logger
}

// EnsureMounted binds alias to root unless alias already resolves to root.
// Losing a mount race to another caller binding the same root counts as
// success. An alias bound to a different root fails with ErrAliasExists:
// the namespace would address someone else's container.
func (m *mounter) EnsureMounted(ctx context.Context, alias, root string) error {
	bound, err := m.store.Resolve(ctx, alias)
	switch {
	case err == nil:
		if bound != root {
			return fmt.Errorf("mount %s at %s: bound to %s: %w", alias, root, bound, ErrAliasExists)
		}
		return nil
	case !errors.Is(err, store.ErrNotMounted):
		// The existence check may under-report; let Mount decide.
		m.log.Debug("cannot resolve alias before mounting", "alias", alias, "error", err)
	}

	b := retry.WithMaxRetries(transientRetries, retry.NewConstant(m.retryDelay))
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		err := m.store.Mount(ctx, alias, root)
		if store.IsTransient(err) {
			m.log.Warn("transient failure mounting namespace, retrying", "alias", alias, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrAliasExists) {
			return m.checkBound(ctx, alias, root)
		}
		return fmt.Errorf("mount %s at %s: %w", alias, root, err)
	}
	m.log.Debug("namespace mounted", "alias", alias, "root", root)
	return nil
}

// checkBound accepts a mount race lost to a caller that bound alias to the
// same root.
func (m *mounter) checkBound(ctx context.Context, alias, root string) error {
	bound, err := m.store.Resolve(ctx, alias)
	if err != nil {
		return fmt.Errorf("mount %s at %s: resolve after race: %w", alias, root, err)
	}
	if bound != root {
		return fmt.Errorf("mount %s at %s: bound to %s: %w", alias, root, bound, ErrAliasExists)
	}
	m.log.Debug("alias mounted concurrently", "alias", alias)
	return nil
}

// mounted returns the root alias is bound to. An unbound alias yields false
// and no error.
func mounted(ctx context.Context, p store.Provider, alias string) (string, bool, error) {
	root, err := p.Resolve(ctx, alias)
	if errors.Is(err, store.ErrNotMounted) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("resolve alias %s: %w", alias, err)
	}
	return root, true, nil
}
