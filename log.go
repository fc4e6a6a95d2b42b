package testns

import (
	"log/slog"

	"github.com/giantswarm/testns/internal/core"
)

// SetLogger replaces the package-level logger used by testns.
// The provided logger should already have any desired attributes; testns
// adds only the alias of the environment.
//
// If l is nil, the logger resets to the default: slog.Default() with a
// "component" attribute, re-derived on the next use and then cached. Call
// SetLogger(nil) after slog.SetDefault() to pick up changes.
//
// SetLogger is safe to call concurrently with other testns operations, but
// an Env picks up the logger when it opens its storage provider. Call it
// before NewEnv, e.g. in TestMain before m.Run.
//
// Example:
//
//	testns.SetLogger(myLogger.With("component", "testns"))
func SetLogger(l *slog.Logger) {
	core.SetLogger(l)
}
