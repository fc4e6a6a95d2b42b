package testns

import "time"

// Default configuration values for NewEnv.
// These constants are exported so callers can reference the defaults when
// building custom configurations relative to them.
const (
	// DefaultAlias is the name the namespace root is mounted under.
	DefaultAlias = "testns"

	// DefaultTempRoot is the key path of the shared container below which
	// one root container per run is provisioned. Keeping it stable lets a
	// later run find and purge what a crashed run left behind.
	DefaultTempRoot = "/testns"

	// DefaultStoreDirName is the directory name under the system temp
	// directory used by the default filesystem store. The full path is
	// computed as filepath.Join(os.TempDir(), DefaultStoreDirName).
	DefaultStoreDirName = "testns"

	// DefaultLockDirName is the directory name under the system temp
	// directory holding run lock files.
	DefaultLockDirName = "testns-locks"

	// DefaultRetryDelay is the pause before the single retry of a
	// transiently failed root container creation or mount.
	DefaultRetryDelay = 100 * time.Millisecond

	// DefaultPurgeConcurrency bounds how many orphaned root containers are
	// purged in parallel.
	DefaultPurgeConcurrency = 4
)
