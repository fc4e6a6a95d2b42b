package testns

import (
	"fmt"
	"strings"
	"time"

	"github.com/giantswarm/testns/internal/core"
)

// requirePositive panics if v <= 0 with a descriptive message.
func requirePositive[T int | time.Duration](name string, v T) {
	if v <= 0 {
		panic(fmt.Sprintf("testns: %s must be greater than 0, got %v", name, v))
	}
}

// requireNonEmpty panics if s is empty with a descriptive message.
func requireNonEmpty(name, s string) {
	if s == "" {
		panic(fmt.Sprintf("testns: %s must not be empty", name))
	}
}

// Option configures an Env during construction via NewEnv.
// Each With* function returns an Option that sets a specific field.
//
// With* functions panic on invalid input (empty names, non-positive
// durations). Option values are typically constants, so an invalid value is
// a programmer error; the pattern mirrors [regexp.MustCompile].
type Option func(*envConfig)

// WithAlias sets the name the namespace root is mounted under. Test code and
// tools that address the namespace through the alias must agree on it.
//
// Default: "testns".
//
// Panics if alias is empty or contains a path separator.
func WithAlias(alias string) Option {
	requireNonEmpty("alias", alias)
	if strings.ContainsAny(alias, `/\`) || alias == "." || alias == ".." {
		panic(fmt.Sprintf("testns: alias must be a single path segment, got %q", alias))
	}
	return func(c *envConfig) {
		c.Alias = alias
	}
}

// WithTempRoot sets the key path of the shared container below which root
// containers are provisioned.
//
// Default: "/testns".
//
// Panics if path is empty or "/".
func WithTempRoot(path string) Option {
	requireNonEmpty("temp root", path)
	if strings.Trim(path, "/") == "" {
		panic(fmt.Sprintf("testns: temp root must not be the key tree root, got %q", path))
	}
	return func(c *envConfig) {
		c.TempRoot = path
	}
}

// WithLockDir sets the local directory holding run lock files. Processes that
// share a store must share the lock directory for orphan detection to work.
//
// Default: filepath.Join(os.TempDir(), "testns-locks").
//
// Panics if dir is empty.
func WithLockDir(dir string) Option {
	requireNonEmpty("lock directory", dir)
	return func(c *envConfig) {
		c.LockDir = dir
	}
}

// WithRetryDelay sets the pause before the single retry of a transiently
// failed root container creation or mount.
//
// Default: 100 milliseconds.
//
// Panics if d <= 0.
func WithRetryDelay(d time.Duration) Option {
	requirePositive("retry delay", d)
	return func(c *envConfig) {
		c.RetryDelay = d
	}
}

// WithPurgeOrphans makes OnStart remove orphaned root containers, those whose
// run lock no live process holds.
//
// Default: disabled.
func WithPurgeOrphans() Option {
	return func(c *envConfig) {
		c.PurgeOrphans = true
	}
}

// WithPurgeConcurrency bounds how many orphans are purged in parallel.
//
// Default: 4.
//
// Panics if n <= 0.
func WithPurgeConcurrency(n int) Option {
	requirePositive("purge concurrency", n)
	return func(c *envConfig) {
		c.PurgeConcurrency = n
	}
}

// WithIDGenerator replaces the generator of root container names. It must
// return a different value on every call.
//
// Default: uuid.NewString.
//
// Panics if fn is nil.
func WithIDGenerator(fn func() string) Option {
	if fn == nil {
		panic("testns: id generator must not be nil")
	}
	return func(c *envConfig) {
		c.NewID = fn
	}
}

// WithFilesystemStore keeps the namespace in a directory tree below dir. The
// alias is a symlink, so test code may also reach the namespace through the
// filesystem.
//
// Default store: filepath.Join(os.TempDir(), "testns").
//
// Panics if dir is empty.
func WithFilesystemStore(dir string) Option {
	requireNonEmpty("filesystem store directory", dir)
	return func(c *envConfig) {
		c.Store = core.StoreConfig{Backend: core.BackendFilesystem, Dir: dir}
	}
}

// WithSQLiteStore keeps the namespace in the SQLite database file at path.
//
// Panics if path is empty.
func WithSQLiteStore(path string) Option {
	requireNonEmpty("sqlite store path", path)
	return func(c *envConfig) {
		c.Store = core.StoreConfig{Backend: core.BackendSQLite, Path: path}
	}
}

// RedisOptions configures the Redis store.
type RedisOptions = core.RedisOptions

// WithRedisStore keeps the namespace in a Redis server.
//
// Panics if opts.Address is empty.
func WithRedisStore(opts RedisOptions) Option {
	requireNonEmpty("redis address", opts.Address)
	return func(c *envConfig) {
		c.Store = core.StoreConfig{Backend: core.BackendRedis, Redis: opts}
	}
}

// WithInMemoryStore keeps the namespace in process memory. Nothing survives
// the process, so orphan purging has nothing to find.
func WithInMemoryStore() Option {
	return func(c *envConfig) {
		c.Store = core.StoreConfig{Backend: core.BackendMemory}
	}
}

// WithStore uses p as the storage provider. Close closes it.
//
// Panics if p is nil.
func WithStore(p Provider) Option {
	if p == nil {
		panic("testns: store provider must not be nil")
	}
	return func(c *envConfig) {
		c.Store = core.StoreConfig{Backend: core.BackendCustom, Provider: p}
	}
}
