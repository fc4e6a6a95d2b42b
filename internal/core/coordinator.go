package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/giantswarm/testns/internal/keypath"
	"github.com/giantswarm/testns/internal/runlock"
	"github.com/giantswarm/testns/internal/store"
)

// Scope identifies a node of the test hierarchy. A scope without parent is
// the root scope. Scopes are plain data owned by the host adapter.
type Scope struct {
	ID     string
	Parent *Scope
}

// IsRoot reports whether s is the top-level scope.
func (s *Scope) IsRoot() bool {
	return s.Parent == nil
}

// ScopeRecord is the state kept for a scope between its setup and teardown.
type ScopeRecord struct {
	// Root is true only for the top-level scope.
	Root bool

	// CreatedHere is true when the namespace was provisioned by this scope.
	CreatedHere bool

	// Snapshot holds the item paths present at nested scope entry. It is nil
	// for the root scope.
	Snapshot map[string]struct{}

	// NamespacePath is the key path of the namespace root container,
	// inherited unchanged by every descendant scope.
	NamespacePath string
}

// Coordinator drives the namespace lifecycle from the three events a test
// host emits: OnStart once, then OnScopeSetup and OnScopeTeardown per scope.
// It is safe for concurrent use by multiple goroutines, although hosts
// normally emit events from a single goroutine.
//
// Synchronization strategy:
//   - mu guards records and runLock and serializes setup and teardown, so a
//     root scope cannot be torn down while a nested scope snapshots.
//   - handle is an atomic.Pointer so Namespace() reads never block on a
//     running hook.
type Coordinator struct {
	cfg   Config
	store store.Provider
	log   *slog.Logger

	prov  provisioner
	mount mounter
	clean cleaner
	down  teardowner
	purge purger

	startOnce sync.Once
	startErr  error

	mu      sync.Mutex
	records map[string]*ScopeRecord
	runLock *runlock.Lock

	handle atomic.Pointer[Namespace]
}

// NewCoordinator creates a Coordinator operating on p. It performs no I/O.
//
// Panics if cfg.Validate() reports any errors or p is nil. Invalid
// configuration is a programmer error that should be caught at construction
// time, similar to regexp.MustCompile.
func NewCoordinator(cfg Config, p store.Provider) *Coordinator {
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("testns: invalid config: %v", err))
	}
	if p == nil {
		panic("testns: storage provider must not be nil")
	}
	log := Logger().With("alias", cfg.Alias)
	return &Coordinator{
		cfg:   cfg,
		store: p,
		log:   log,
		prov: provisioner{
			store:      p,
			tempRoot:   cfg.TempRoot,
			lockDir:    cfg.LockDir,
			newID:      cfg.NewID,
			retryDelay: cfg.RetryDelay,
			log:        log,
		},
		mount: mounter{store: p, retryDelay: cfg.RetryDelay, log: log},
		clean: cleaner{store: p, alias: cfg.Alias, log: log},
		down:  teardowner{store: p, alias: cfg.Alias, log: log},
		purge: purger{
			store:       p,
			tempRoot:    cfg.TempRoot,
			lockDir:     cfg.LockDir,
			concurrency: cfg.PurgeConcurrency,
			log:         log,
		},
		records: make(map[string]*ScopeRecord),
	}
}

// Store returns the storage provider the coordinator operates on.
func (c *Coordinator) Store() store.Provider {
	return c.store
}

// OnStart removes a namespace left mounted by a previous run and, when
// enabled, purges orphaned root containers. Only the first call does any
// work; later calls return the first call's result.
func (c *Coordinator) OnStart(ctx context.Context) error {
	c.startOnce.Do(func() {
		c.startErr = c.doStart(ctx)
	})
	return c.startErr
}

func (c *Coordinator) doStart(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.purgeStale(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	if c.cfg.PurgeOrphans {
		if _, err := c.purge.Purge(ctx); err != nil {
			return fmt.Errorf("start: %w", err)
		}
	}
	return nil
}

// purgeStale removes the namespace mounted under the alias when the run that
// created it is gone. A namespace whose run lock is held belongs to a live
// run sharing the alias and is left alone.
func (c *Coordinator) purgeStale(ctx context.Context) error {
	root, ok, err := mounted(ctx, c.store, c.cfg.Alias)
	if err != nil || !ok {
		return err
	}

	lock, err := runlock.TryAcquire(runlock.Path(c.cfg.LockDir, keypath.Base(root)))
	if err != nil {
		return fmt.Errorf("check owner of %s: %w", root, err)
	}
	if lock == nil {
		c.log.Warn("namespace mounted under the alias belongs to a live run, leaving it",
			"alias", c.cfg.Alias, "root", root)
		return nil
	}

	c.log.Info("removing namespace left mounted by a previous run", "root", root)
	if err := c.down.Teardown(ctx, root); err != nil {
		lock.Release(c.log)
		return fmt.Errorf("remove stale namespace: %w", err)
	}
	lock.Remove(c.log)
	return nil
}

// PurgeOrphans removes root containers below the temp root whose owning run
// is gone and returns how many were removed.
func (c *Coordinator) PurgeOrphans(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purge.Purge(ctx)
}

// OnScopeSetup prepares the namespace for s. For the root scope it
// provisions and mounts a fresh namespace; for a nested scope it snapshots
// the current namespace contents.
func (c *Coordinator) OnScopeSetup(ctx context.Context, s *Scope) error {
	if s == nil || s.ID == "" {
		return ErrInvalidScope
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.records[s.ID]; ok {
		return fmt.Errorf("setup %s: %w", s.ID, ErrScopeExists)
	}

	var (
		rec *ScopeRecord
		err error
	)
	if s.IsRoot() {
		rec, err = c.setupRoot(ctx)
	} else {
		rec, err = c.setupNested(ctx, s)
	}
	if err != nil {
		return fmt.Errorf("setup %s: %w", s.ID, err)
	}
	c.records[s.ID] = rec
	return nil
}

func (c *Coordinator) setupRoot(ctx context.Context) (*ScopeRecord, error) {
	if c.runLock != nil || c.handle.Load() != nil {
		return nil, ErrRootActive
	}

	root, lock, err := c.prov.Provision(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.mount.EnsureMounted(ctx, c.cfg.Alias, root); err != nil {
		// Nothing refers to the container yet; give it back.
		if delErr := c.store.Delete(context.WithoutCancel(ctx), root, true); delErr != nil {
			c.log.Warn("failed to remove unmounted namespace root", "root", root, "error", delErr)
			lock.Release(c.log)
		} else {
			lock.Remove(c.log)
		}
		return nil, err
	}

	c.runLock = lock
	c.handle.Store(newNamespace(c.cfg.Alias, root, c.store))
	c.log.Info("namespace created", "root", root)

	return &ScopeRecord{Root: true, CreatedHere: true, NamespacePath: root}, nil
}

func (c *Coordinator) setupNested(ctx context.Context, s *Scope) (*ScopeRecord, error) {
	parent, ok := c.records[s.Parent.ID]
	if !ok {
		return nil, fmt.Errorf("parent %s: %w", s.Parent.ID, ErrNoParentScope)
	}
	snap, err := c.clean.Snapshot(ctx, parent.NamespacePath)
	if err != nil {
		return nil, err
	}
	return &ScopeRecord{NamespacePath: parent.NamespacePath, Snapshot: snap}, nil
}

// OnScopeTeardown consumes the record of s. The root scope's namespace is
// unmounted and deleted; a nested scope removes everything created since its
// setup. A scope without record, because its setup failed or never ran, is
// a no-op.
func (c *Coordinator) OnScopeTeardown(ctx context.Context, s *Scope) error {
	if s == nil || s.ID == "" {
		return ErrInvalidScope
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[s.ID]
	if !ok {
		c.log.Debug("scope has no record, nothing to tear down", "scope", s.ID)
		return nil
	}
	delete(c.records, s.ID)

	if !rec.Root {
		if err := c.clean.Clean(ctx, rec.NamespacePath, rec.Snapshot); err != nil {
			return fmt.Errorf("teardown %s: %w", s.ID, err)
		}
		return nil
	}

	err := c.down.Teardown(ctx, rec.NamespacePath)
	c.releaseHandle()
	if err != nil {
		// The container may still exist; keep its lock file so a later
		// orphan sweep can find and remove it.
		c.runLock.Release(c.log)
		c.runLock = nil
		return fmt.Errorf("teardown %s: %w", s.ID, err)
	}
	c.runLock.Remove(c.log)
	c.runLock = nil
	c.log.Info("namespace removed", "root", rec.NamespacePath)
	return nil
}

// releaseHandle clears and invalidates the process-wide handle. An absent
// handle is fine.
func (c *Coordinator) releaseHandle() {
	if ns := c.handle.Swap(nil); ns != nil {
		ns.invalidate()
	}
}

// Namespace returns the live namespace handle, or nil when no root scope is
// active.
func (c *Coordinator) Namespace() *Namespace {
	return c.handle.Load()
}

// Record returns a copy of the record kept for the scope with the given ID.
func (c *Coordinator) Record(id string) (ScopeRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[id]
	if !ok {
		return ScopeRecord{}, false
	}
	return *rec, true
}

// Close tears down any namespace still owned by this coordinator, releases
// the run lock and closes the storage provider.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if c.runLock != nil {
		for id, rec := range c.records {
			if rec.Root {
				if err := c.down.Teardown(ctx, rec.NamespacePath); err != nil {
					errs = append(errs, err)
				}
			}
			delete(c.records, id)
		}
		c.releaseHandle()
		if len(errs) == 0 {
			c.runLock.Remove(c.log)
		} else {
			c.runLock.Release(c.log)
		}
		c.runLock = nil
	}
	if err := c.store.Close(); err != nil && !errors.Is(err, store.ErrClosed) {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
