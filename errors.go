package testns

import "github.com/giantswarm/testns/internal/core"

// Sentinel errors for error inspection with errors.Is.
// These are immutable constants safe for use in wrapped error chain comparison.
const (
	// ErrNotMounted is returned by Namespace methods after root scope
	// teardown and by providers for an unbound alias.
	ErrNotMounted = core.ErrNotMounted

	// ErrAliasExists is reported by a provider when the alias is already
	// bound. The lifecycle engine treats it as success.
	ErrAliasExists = core.ErrAliasExists

	// ErrExists is reported by a provider when a key already exists.
	ErrExists = core.ErrExists

	// ErrNotFound is returned when an addressed item does not exist.
	ErrNotFound = core.ErrNotFound

	// ErrNotEmpty is reported by a provider for a non-recursive delete of a
	// key with children.
	ErrNotEmpty = core.ErrNotEmpty

	// ErrTransient marks a storage failure that may go away when repeated.
	ErrTransient = core.ErrTransient

	// ErrClosed is returned by any event after Close.
	ErrClosed = core.ErrClosed

	// ErrProvisionExhausted is returned by root scope setup when no unused
	// root container name could be found.
	ErrProvisionExhausted = core.ErrProvisionExhausted

	// ErrUnmount wraps a failure to unmount the alias during teardown.
	ErrUnmount = core.ErrUnmount

	// ErrNoParentScope is returned by nested scope setup when the parent
	// scope has no record.
	ErrNoParentScope = core.ErrNoParentScope

	// ErrScopeExists is returned when a scope is set up twice.
	ErrScopeExists = core.ErrScopeExists

	// ErrRootActive is returned when a second root scope is set up while
	// another one is alive.
	ErrRootActive = core.ErrRootActive

	// ErrOutsideNamespace is returned for relative paths escaping the
	// namespace root.
	ErrOutsideNamespace = core.ErrOutsideNamespace

	// ErrInvalidScope is returned for a nil scope or a scope without ID.
	ErrInvalidScope = core.ErrInvalidScope
)
