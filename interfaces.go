package testns

import "context"

// Env drives the namespace lifecycle from the events of a test host.
//
// Callers must follow this event ordering:
//
//	NewEnv → OnStart → (OnScopeSetup … OnScopeTeardown)* → Close
//
// Scope setups arrive parent before child, teardowns child before parent.
// OnScopeTeardown must run for every scope whose setup was attempted, even
// when the scope's tests failed.
type Env interface {
	// OnStart opens the storage provider and removes a namespace left
	// mounted by a previous run in the same environment. With
	// WithPurgeOrphans it also purges orphaned root containers. Only the
	// first call does any work.
	OnStart(ctx context.Context) error

	// OnScopeSetup creates and mounts the namespace for the root scope, or
	// snapshots the namespace contents for a nested scope.
	//
	// Returns ErrNoParentScope for a nested scope whose parent has no
	// record, ErrScopeExists for a scope set up twice and ErrRootActive for
	// a second root scope while the first is alive.
	OnScopeSetup(ctx context.Context, s *Scope) error

	// OnScopeTeardown removes the namespace for the root scope, or removes
	// every item created since setup for a nested scope. A scope whose
	// setup failed is a no-op.
	//
	// Returns an error wrapping ErrUnmount when the alias cannot be
	// unmounted.
	OnScopeTeardown(ctx context.Context, s *Scope) error

	// Namespace returns the handle of the live namespace, or nil outside a
	// root scope.
	Namespace() Namespace

	// PurgeOrphans removes root containers below the temp root whose owning
	// run is gone, and returns how many were removed.
	PurgeOrphans(ctx context.Context) (int, error)

	// Close tears down a namespace still alive, releases the run lock and
	// closes the storage provider. Later events return ErrClosed.
	Close(ctx context.Context) error
}

// Namespace addresses the live namespace by paths relative to its root. Every
// call resolves the alias anew. After root scope teardown every method
// returns ErrNotMounted.
type Namespace interface {
	// Alias returns the alias the namespace is mounted under.
	Alias() string

	// Root returns the key path of the namespace root container.
	Root() string

	// Path returns the key path of rel below the namespace root.
	// Returns ErrOutsideNamespace when rel escapes the root.
	Path(ctx context.Context, rel ...string) (string, error)

	// CreateKey creates the key at rel and any missing ancestors.
	CreateKey(ctx context.Context, rel string) error

	// SetValue stores data at rel, creating missing keys.
	SetValue(ctx context.Context, rel string, data []byte) error

	// Value returns the value stored at rel.
	Value(ctx context.Context, rel string) ([]byte, error)

	// Exists reports whether an item exists at rel.
	Exists(ctx context.Context, rel string) (bool, error)

	// Delete removes the item at rel with all its children.
	Delete(ctx context.Context, rel string) error

	// List returns all item paths in the namespace relative to its root,
	// sorted.
	List(ctx context.Context) ([]string, error)
}
