// Package memstore implements an in-memory store.Provider.
//
// It backs fast unit tests of the lifecycle engine and the WithInMemoryStore
// option. Faults can be queued per operation to simulate transient or fatal
// provider failures, and every call is recorded for ordering assertions.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/giantswarm/testns/internal/keypath"
	"github.com/giantswarm/testns/internal/store"
)

// Op names a provider operation for fault injection and call recording.
type Op string

// Recorded operations.
const (
	OpCreate   Op = "create"
	OpExists   Op = "exists"
	OpListAll  Op = "listall"
	OpDelete   Op = "delete"
	OpSetValue Op = "setvalue"
	OpValue    Op = "value"
	OpMount    Op = "mount"
	OpUnmount  Op = "unmount"
	OpResolve  Op = "resolve"
)

// Compile-time check that Store implements store.Provider.
var _ store.Provider = (*Store)(nil)

// Call is a single recorded provider call.
type Call struct {
	Op   Op
	Path string
}

// Store is an in-memory key tree with alias bindings. The zero value is not
// usable; create one with New.
type Store struct {
	mu     sync.Mutex
	keys   map[string][]byte
	mounts map[string]string
	faults map[Op][]error
	calls  []Call
	closed bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		keys:   make(map[string][]byte),
		mounts: make(map[string]string),
		faults: make(map[Op][]error),
	}
}

// FailNext queues errs to be returned, one per call and in order, by the next
// calls of op. A nil entry lets the corresponding call proceed normally.
func (s *Store) FailNext(op Op, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = append(s.faults[op], errs...)
}

// Calls returns the recorded calls of op, or all calls when op is empty.
func (s *Store) Calls(op Op) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	if op == "" {
		return slices.Clone(s.calls)
	}
	var out []Call
	for _, c := range s.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Keys returns a sorted snapshot of all key paths.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.keys))
}

// begin records the call and pops a queued fault. It must be called with mu
// held.
func (s *Store) begin(op Op, path string) error {
	s.calls = append(s.calls, Call{Op: op, Path: path})
	if s.closed {
		return store.ErrClosed
	}
	if q := s.faults[op]; len(q) > 0 {
		s.faults[op] = q[1:]
		if q[0] != nil {
			return fmt.Errorf("%s %s: %w", op, path, q[0])
		}
	}
	return nil
}

// createLocked adds path and its missing ancestors.
func (s *Store) createLocked(path string) {
	for p := path; p != keypath.Separator; p = keypath.Parent(p) {
		if _, ok := s.keys[p]; ok {
			break
		}
		s.keys[p] = nil
	}
}

// Create implements store.Provider.
func (s *Store) Create(_ context.Context, path string) error {
	path = keypath.Clean(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpCreate, path); err != nil {
		return err
	}
	if _, ok := s.keys[path]; ok {
		return fmt.Errorf("create %s: %w", path, store.ErrExists)
	}
	s.createLocked(path)
	return nil
}

// Exists implements store.Provider.
func (s *Store) Exists(_ context.Context, path string) (bool, error) {
	path = keypath.Clean(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpExists, path); err != nil {
		return false, err
	}
	_, ok := s.keys[path]
	return ok, nil
}

// ListAll implements store.Provider.
func (s *Store) ListAll(_ context.Context, root string) ([]string, error) {
	root = keypath.Clean(root)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpListAll, root); err != nil {
		return nil, err
	}
	if _, ok := s.keys[root]; !ok && root != keypath.Separator {
		return nil, fmt.Errorf("list %s: %w", root, store.ErrNotFound)
	}
	var out []string
	for p := range s.keys {
		if p != root && keypath.Within(p, root) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Delete implements store.Provider.
func (s *Store) Delete(_ context.Context, path string, recursive bool) error {
	path = keypath.Clean(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpDelete, path); err != nil {
		return err
	}
	if _, ok := s.keys[path]; !ok {
		return fmt.Errorf("delete %s: %w", path, store.ErrNotFound)
	}
	var children []string
	for p := range s.keys {
		if p != path && keypath.Within(p, path) {
			children = append(children, p)
		}
	}
	if len(children) > 0 && !recursive {
		return fmt.Errorf("delete %s: %w", path, store.ErrNotEmpty)
	}
	for _, p := range children {
		delete(s.keys, p)
	}
	delete(s.keys, path)
	return nil
}

// SetValue implements store.Provider.
func (s *Store) SetValue(_ context.Context, path string, data []byte) error {
	path = keypath.Clean(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpSetValue, path); err != nil {
		return err
	}
	s.createLocked(path)
	s.keys[path] = slices.Clone(data)
	return nil
}

// Value implements store.Provider.
func (s *Store) Value(_ context.Context, path string) ([]byte, error) {
	path = keypath.Clean(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpValue, path); err != nil {
		return nil, err
	}
	data, ok := s.keys[path]
	if !ok {
		return nil, fmt.Errorf("value %s: %w", path, store.ErrNotFound)
	}
	return slices.Clone(data), nil
}

// Mount implements store.Provider.
func (s *Store) Mount(_ context.Context, alias, root string) error {
	root = keypath.Clean(root)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpMount, alias); err != nil {
		return err
	}
	if _, ok := s.mounts[alias]; ok {
		return fmt.Errorf("mount %s: %w", alias, store.ErrAliasExists)
	}
	s.mounts[alias] = root
	return nil
}

// Unmount implements store.Provider.
func (s *Store) Unmount(_ context.Context, alias string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpUnmount, alias); err != nil {
		return err
	}
	if _, ok := s.mounts[alias]; !ok {
		return fmt.Errorf("unmount %s: %w", alias, store.ErrNotMounted)
	}
	delete(s.mounts, alias)
	return nil
}

// Resolve implements store.Provider.
func (s *Store) Resolve(_ context.Context, alias string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpResolve, alias); err != nil {
		return "", err
	}
	root, ok := s.mounts[alias]
	if !ok {
		return "", fmt.Errorf("resolve %s: %w", alias, store.ErrNotMounted)
	}
	return root, nil
}

// Mounts implements store.Provider.
func (s *Store) Mounts(_ context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}
	return maps.Clone(s.mounts), nil
}

// Close implements store.Provider. Closing twice is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
