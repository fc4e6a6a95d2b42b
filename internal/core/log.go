package core

import (
	"log/slog"
	"sync/atomic"
)

// logger is the package-level logger, stored as an atomic pointer so that
// SetLogger may race with running lifecycle hooks. A nil value means no
// custom logger has been set.
var logger atomic.Pointer[slog.Logger]

// defaultLogger caches the logger derived from slog.Default() so it is not
// re-created on every Logger() call. SetLogger(nil) clears the cache, which
// is how callers pick up a later slog.SetDefault().
var defaultLogger atomic.Pointer[slog.Logger]

// Logger returns the current package-level logger: the one set via SetLogger,
// or else slog.Default() with the testns component attribute.
func Logger() *slog.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	l := slog.Default().With("component", "testns")
	if defaultLogger.CompareAndSwap(nil, l) {
		return l
	}
	// A concurrent SetLogger may have cleared the cache in between; never
	// return nil.
	if l2 := defaultLogger.Load(); l2 != nil {
		return l2
	}
	return l
}

// SetLogger replaces the package-level logger. A nil l resets to the default
// derived from slog.Default().
func SetLogger(l *slog.Logger) {
	logger.Store(l)
	defaultLogger.Store(nil)
}
