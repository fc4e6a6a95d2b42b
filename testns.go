package testns

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/giantswarm/testns/internal/core"
)

// Scope identifies a node of the test hierarchy. A scope without Parent is
// the root scope. Scope IDs must be unique among scopes alive at the same
// time.
type Scope = core.Scope

// Provider is the storage provider contract an Env builds namespaces on.
type Provider = core.Provider

// Singleton state for NewEnv. The first call creates the environment;
// subsequent calls return the same instance and log a warning.
//
// singletonMu protects both singletonEnv and singletonOnce so that
// resetForTesting (used in tests) is concurrency-safe with NewEnv.
var (
	singletonMu   sync.Mutex
	singletonEnv  Env
	singletonOnce sync.Once
)

// Compile-time interface satisfaction checks.
var (
	_ Env       = (*envWrapper)(nil)
	_ Namespace = (*namespaceWrapper)(nil)
)

// envWrapper opens the storage provider on first use and delegates the
// lifecycle events to a core.Coordinator.
//
// The coordinator is stored as a named field rather than embedded to prevent
// callers from using type assertions to reach methods that are not part of
// the public Env interface.
type envWrapper struct {
	cfg envConfig

	// openMu serializes opening the provider and Close.
	openMu sync.Mutex
	closed bool

	coord atomic.Pointer[core.Coordinator]
}

// coordinator returns the coordinator, opening the storage provider on first
// use.
func (w *envWrapper) coordinator(ctx context.Context) (*core.Coordinator, error) {
	if c := w.coord.Load(); c != nil {
		return c, nil
	}

	w.openMu.Lock()
	defer w.openMu.Unlock()

	if w.closed {
		return nil, ErrClosed
	}
	if c := w.coord.Load(); c != nil {
		return c, nil
	}
	p, err := core.OpenStore(ctx, w.cfg.Store)
	if err != nil {
		return nil, err
	}
	c := core.NewCoordinator(w.cfg.toCoreConfig(), p)
	w.coord.Store(c)
	return c, nil
}

// OnStart implements Env.OnStart.
func (w *envWrapper) OnStart(ctx context.Context) error {
	c, err := w.coordinator(ctx)
	if err != nil {
		return err
	}
	return c.OnStart(ctx)
}

// OnScopeSetup implements Env.OnScopeSetup.
func (w *envWrapper) OnScopeSetup(ctx context.Context, s *Scope) error {
	c, err := w.coordinator(ctx)
	if err != nil {
		return err
	}
	return c.OnScopeSetup(ctx, s)
}

// OnScopeTeardown implements Env.OnScopeTeardown. Before the provider is
// opened no scope can have a record, so there is nothing to do.
func (w *envWrapper) OnScopeTeardown(ctx context.Context, s *Scope) error {
	c := w.coord.Load()
	if c == nil {
		if w.isClosed() {
			return ErrClosed
		}
		return nil
	}
	return c.OnScopeTeardown(ctx, s)
}

// Namespace implements Env.Namespace.
//
//nolint:ireturn // Returns Namespace interface by design for testability (mockable).
func (w *envWrapper) Namespace() Namespace {
	c := w.coord.Load()
	if c == nil {
		return nil
	}
	ns := c.Namespace()
	if ns == nil {
		return nil
	}
	return &namespaceWrapper{ns: ns}
}

// PurgeOrphans implements Env.PurgeOrphans.
func (w *envWrapper) PurgeOrphans(ctx context.Context) (int, error) {
	c, err := w.coordinator(ctx)
	if err != nil {
		return 0, err
	}
	return c.PurgeOrphans(ctx)
}

// Close implements Env.Close. Closing twice is a no-op.
func (w *envWrapper) Close(ctx context.Context) error {
	w.openMu.Lock()
	defer w.openMu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	c := w.coord.Swap(nil)
	if c == nil {
		return nil
	}
	return c.Close(ctx)
}

func (w *envWrapper) isClosed() bool {
	w.openMu.Lock()
	defer w.openMu.Unlock()
	return w.closed
}

// namespaceWrapper wraps core.Namespace to implement the Namespace interface.
type namespaceWrapper struct {
	ns *core.Namespace
}

func (n *namespaceWrapper) Alias() string { return n.ns.Alias() }
func (n *namespaceWrapper) Root() string  { return n.ns.Root() }

func (n *namespaceWrapper) Path(ctx context.Context, rel ...string) (string, error) {
	return n.ns.Path(ctx, rel...)
}

func (n *namespaceWrapper) CreateKey(ctx context.Context, rel string) error {
	return n.ns.CreateKey(ctx, rel)
}

func (n *namespaceWrapper) SetValue(ctx context.Context, rel string, data []byte) error {
	return n.ns.SetValue(ctx, rel, data)
}

func (n *namespaceWrapper) Value(ctx context.Context, rel string) ([]byte, error) {
	return n.ns.Value(ctx, rel)
}

func (n *namespaceWrapper) Exists(ctx context.Context, rel string) (bool, error) {
	return n.ns.Exists(ctx, rel)
}

func (n *namespaceWrapper) Delete(ctx context.Context, rel string) error {
	return n.ns.Delete(ctx, rel)
}

func (n *namespaceWrapper) List(ctx context.Context) ([]string, error) {
	return n.ns.List(ctx)
}

// defaultEnvConfig returns an envConfig populated with all default values.
// Both NewEnv and test helpers use this to avoid duplicating the default
// field assignments.
func defaultEnvConfig() envConfig {
	return envConfig{
		Config: core.Config{
			Alias:            DefaultAlias,
			TempRoot:         DefaultTempRoot,
			LockDir:          filepath.Join(os.TempDir(), DefaultLockDirName),
			RetryDelay:       DefaultRetryDelay,
			PurgeConcurrency: DefaultPurgeConcurrency,
			NewID:            uuid.NewString,
		},
		Store: core.StoreConfig{
			Backend: core.BackendFilesystem,
			Dir:     filepath.Join(os.TempDir(), DefaultStoreDirName),
		},
	}
}

// newEnv builds an Env from opts without touching the singleton.
func newEnv(opts ...Option) *envWrapper {
	cfg := defaultEnvConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Store.Validate(); err != nil {
		panic("testns: invalid store config: " + err.Error())
	}
	if err := cfg.Validate(); err != nil {
		panic("testns: invalid config: " + err.Error())
	}
	return &envWrapper{cfg: cfg}
}

// resetForTesting resets the singleton state so that the next call to NewEnv
// creates a fresh environment. It must only be called from tests.
func resetForTesting() {
	singletonMu.Lock()
	defer singletonMu.Unlock()

	singletonEnv = nil
	singletonOnce = sync.Once{}
}

// NewEnv returns the process-level singleton Env.
//
// The namespace alias is visible to all code in the process, so there is one
// Env per process. The first call creates it with the given options and
// stores it. Subsequent calls return the same instance; options are ignored
// and a warning is logged. NewEnv performs no I/O: the storage provider is
// opened by the first lifecycle event.
//
// Panics if any option receives an invalid value. See individual With*
// functions for constraints.
//
//nolint:ireturn // Returns Env interface by design for testability (mockable).
func NewEnv(opts ...Option) Env {
	singletonMu.Lock()
	defer singletonMu.Unlock()

	created := false
	singletonOnce.Do(func() {
		singletonEnv = newEnv(opts...)
		created = true
	})
	if !created {
		core.Logger().Warn("NewEnv called more than once; returning existing singleton (options ignored)")
	}
	return singletonEnv
}
