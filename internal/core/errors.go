package core

import (
	"github.com/giantswarm/testns/internal/sentinel"
	"github.com/giantswarm/testns/internal/store"
)

// Provider conditions are re-exported so the public API imports only from
// core, preserving the layering: public API → core → store.
const (
	ErrExists      = store.ErrExists
	ErrNotFound    = store.ErrNotFound
	ErrNotEmpty    = store.ErrNotEmpty
	ErrAliasExists = store.ErrAliasExists
	ErrNotMounted  = store.ErrNotMounted
	ErrTransient   = store.ErrTransient
	ErrClosed      = store.ErrClosed
)

// ErrProvisionExhausted is returned when every candidate root container name
// generated during provisioning already existed.
const ErrProvisionExhausted = sentinel.Error("no unused namespace root found")

// ErrUnmount wraps a failure to unmount the namespace alias during teardown.
const ErrUnmount = sentinel.Error("cannot unmount namespace alias")

// ErrNoParentScope is returned when a nested scope is set up while its
// parent scope has no record, usually because the parent's setup failed.
const ErrNoParentScope = sentinel.Error("parent scope has no namespace record")

// ErrScopeExists is returned when a scope is set up twice without an
// intervening teardown.
const ErrScopeExists = sentinel.Error("scope already set up")

// ErrRootActive is returned when a second root scope is set up while the
// namespace of another root scope is still alive.
const ErrRootActive = sentinel.Error("another root scope owns the namespace")

// ErrOutsideNamespace is returned for relative paths that escape the
// namespace root.
const ErrOutsideNamespace = sentinel.Error("path lies outside the namespace")

// ErrInvalidScope is returned for a nil scope or a scope without ID.
const ErrInvalidScope = sentinel.Error("invalid scope")
