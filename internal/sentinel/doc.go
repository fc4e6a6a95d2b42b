// Package sentinel provides the const error type used for every sentinel
// error in testns.
//
// Provider errors (ErrNotFound, ErrAliasExists, ...) and lifecycle errors
// (ErrNoParentScope, ErrUnmount, ...) are declared as sentinel.Error constants
// so callers cannot reassign them and can match them with errors.Is through
// any number of %w wraps.
package sentinel
