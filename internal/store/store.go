// Package store defines the storage provider contract testns orchestrates
// namespaces on top of, together with the error conditions providers must
// report distinguishably.
//
// Providers live in sub-packages: fsstore (filesystem), sqlitestore (SQLite),
// redisstore (Redis) and memstore (in-memory).
package store

import (
	"context"

	"github.com/giantswarm/testns/internal/sentinel"
)

// Provider error conditions. Providers wrap these with context using %w; the
// lifecycle engine only ever matches them with errors.Is.
const (
	// ErrExists is returned by Create when the key already exists.
	ErrExists = sentinel.Error("key already exists")

	// ErrNotFound is returned when the addressed key does not exist.
	ErrNotFound = sentinel.Error("key not found")

	// ErrNotEmpty is returned by a non-recursive Delete of a key that still
	// has children.
	ErrNotEmpty = sentinel.Error("key not empty")

	// ErrAliasExists is returned by Mount when the alias is already bound.
	ErrAliasExists = sentinel.Error("alias already mounted")

	// ErrNotMounted is returned by Resolve and Unmount for an unbound alias.
	ErrNotMounted = sentinel.Error("alias not mounted")

	// ErrTransient marks a failure that is expected to go away when the
	// operation is repeated, such as momentary I/O or lock contention.
	ErrTransient = sentinel.Error("transient storage failure")

	// ErrClosed is returned by any operation on a closed provider.
	ErrClosed = sentinel.Error("provider closed")
)

// Provider is the set of storage primitives a namespace is built on. Keys are
// slash-separated absolute key paths (see package keypath). A key may carry a
// value and may have child keys.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Create creates the key at path together with any missing ancestors.
	// Returns ErrExists when the key itself already exists.
	Create(ctx context.Context, path string) error

	// Exists reports whether a key exists at path.
	Exists(ctx context.Context, path string) (bool, error)

	// ListAll returns the paths of all descendants of root, at any depth.
	// root itself is not included. Order is unspecified.
	ListAll(ctx context.Context, root string) ([]string, error)

	// Delete removes the key at path. A key with children can only be
	// removed when recursive is set; otherwise ErrNotEmpty is returned.
	// Returns ErrNotFound when no key exists at path.
	Delete(ctx context.Context, path string, recursive bool) error

	// SetValue stores data as the value of the key at path, creating the
	// key and missing ancestors as needed.
	SetValue(ctx context.Context, path string, data []byte) error

	// Value returns the value stored at path. A key without value yields a
	// nil slice. Returns ErrNotFound when no key exists at path.
	Value(ctx context.Context, path string) ([]byte, error)

	// Mount binds alias to root. Returns ErrAliasExists when alias is
	// already bound, to root or to anything else.
	Mount(ctx context.Context, alias, root string) error

	// Unmount removes the alias binding. The bound key is not touched.
	// Returns ErrNotMounted when alias is not bound.
	Unmount(ctx context.Context, alias string) error

	// Resolve returns the key path alias is bound to, or ErrNotMounted.
	Resolve(ctx context.Context, alias string) (string, error)

	// Mounts returns all alias bindings, keyed by alias.
	Mounts(ctx context.Context) (map[string]string, error)

	// Close releases resources held by the provider.
	Close() error
}

// Locator is implemented by providers that have a notion of a current
// position of the calling process inside the key tree, such as the working
// directory for the filesystem provider.
type Locator interface {
	// Location returns the key path of the current position, or false when
	// the current position lies outside the provider's key tree. Positions
	// reached through an alias resolve to the bound key path.
	Location() (string, bool)
}
