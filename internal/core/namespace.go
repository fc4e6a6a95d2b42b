package core

import (
	"context"
	"fmt"
	"path"
	"slices"
	"sync/atomic"

	"github.com/giantswarm/testns/internal/keypath"
	"github.com/giantswarm/testns/internal/store"
)

// Namespace is the process-wide handle test code uses to address namespace
// contents by alias-relative paths. It is created at root scope setup and
// invalidated at root scope teardown; afterwards every method returns
// ErrNotMounted.
type Namespace struct {
	alias string
	root  string
	store store.Provider
	valid atomic.Bool
}

func newNamespace(alias, root string, p store.Provider) *Namespace {
	ns := &Namespace{alias: alias, root: root, store: p}
	ns.valid.Store(true)
	return ns
}

// invalidate marks the handle as torn down.
func (n *Namespace) invalidate() {
	n.valid.Store(false)
}

// Alias returns the alias the namespace is mounted under.
func (n *Namespace) Alias() string {
	return n.alias
}

// Root returns the key path of the namespace root container.
func (n *Namespace) Root() string {
	return n.root
}

// Valid reports whether the handle still refers to a live namespace.
func (n *Namespace) Valid() bool {
	return n.valid.Load()
}

// Path resolves the alias and returns the key path of rel below the bound
// root. rel must not escape the root.
func (n *Namespace) Path(ctx context.Context, rel ...string) (string, error) {
	if !n.valid.Load() {
		return "", fmt.Errorf("namespace %s: %w", n.alias, ErrNotMounted)
	}
	root, err := n.store.Resolve(ctx, n.alias)
	if err != nil {
		return "", fmt.Errorf("namespace %s: %w", n.alias, err)
	}
	// Join resolves "..", so an escaping rel ends up outside root.
	p := keypath.Join(root, rel...)
	if !keypath.Within(p, root) {
		return "", fmt.Errorf("%s: %w", path.Join(rel...), ErrOutsideNamespace)
	}
	return p, nil
}

// CreateKey creates the key at rel and any missing ancestors.
func (n *Namespace) CreateKey(ctx context.Context, rel string) error {
	p, err := n.Path(ctx, rel)
	if err != nil {
		return err
	}
	return n.store.Create(ctx, p)
}

// SetValue stores data at rel.
func (n *Namespace) SetValue(ctx context.Context, rel string, data []byte) error {
	p, err := n.Path(ctx, rel)
	if err != nil {
		return err
	}
	return n.store.SetValue(ctx, p, data)
}

// Value returns the value stored at rel.
func (n *Namespace) Value(ctx context.Context, rel string) ([]byte, error) {
	p, err := n.Path(ctx, rel)
	if err != nil {
		return nil, err
	}
	return n.store.Value(ctx, p)
}

// Exists reports whether an item exists at rel.
func (n *Namespace) Exists(ctx context.Context, rel string) (bool, error) {
	p, err := n.Path(ctx, rel)
	if err != nil {
		return false, err
	}
	return n.store.Exists(ctx, p)
}

// Delete removes the item at rel together with its children.
func (n *Namespace) Delete(ctx context.Context, rel string) error {
	p, err := n.Path(ctx, rel)
	if err != nil {
		return err
	}
	if p == n.root {
		return fmt.Errorf("delete namespace root: %w", ErrOutsideNamespace)
	}
	return n.store.Delete(ctx, p, true)
}

// List returns the paths of all items in the namespace relative to its
// root, sorted.
func (n *Namespace) List(ctx context.Context) ([]string, error) {
	root, err := n.Path(ctx)
	if err != nil {
		return nil, err
	}
	paths, err := n.store.ListAll(ctx, root)
	if err != nil {
		return nil, err
	}
	rels := make([]string, 0, len(paths))
	for _, p := range paths {
		if rel, ok := keypath.Rel(root, p); ok {
			rels = append(rels, rel)
		}
	}
	slices.Sort(rels)
	return rels, nil
}
