package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/giantswarm/testns/internal/store"
	"github.com/giantswarm/testns/internal/store/memstore"
)

const testAlias = "testns"

var discardLog = slog.New(slog.DiscardHandler)

// sequentialIDs returns an id generator yielding prefix-1, prefix-2, ...
func sequentialIDs(prefix string) func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, n.Add(1))
	}
}

// fixedIDs returns an id generator yielding ids in order and then repeating
// the last one.
func fixedIDs(ids ...string) func() string {
	var n atomic.Int64
	return func() string {
		i := int(n.Add(1)) - 1
		if i >= len(ids) {
			i = len(ids) - 1
		}
		return ids[i]
	}
}

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Alias:            testAlias,
		TempRoot:         "/testns",
		LockDir:          t.TempDir(),
		RetryDelay:       time.Millisecond,
		PurgeConcurrency: 2,
		NewID:            sequentialIDs("run"),
	}
}

func newTestCoordinator(t *testing.T, p store.Provider, modify ...func(*Config)) *Coordinator {
	t.Helper()
	cfg := testConfig(t)
	for _, m := range modify {
		m(&cfg)
	}
	c := NewCoordinator(cfg, p)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func mustCreate(t *testing.T, p store.Provider, paths ...string) {
	t.Helper()
	for _, path := range paths {
		if err := p.Create(context.Background(), path); err != nil {
			t.Fatalf("Create(%q) error: %v", path, err)
		}
	}
}

func mustMount(t *testing.T, p store.Provider, alias, root string) {
	t.Helper()
	if err := p.Mount(context.Background(), alias, root); err != nil {
		t.Fatalf("Mount(%q, %q) error: %v", alias, root, err)
	}
}

func exists(t *testing.T, p store.Provider, path string) bool {
	t.Helper()
	ok, err := p.Exists(context.Background(), path)
	if err != nil {
		t.Fatalf("Exists(%q) error: %v", path, err)
	}
	return ok
}

// deletedPaths returns the paths of all recorded Delete calls, in order.
func deletedPaths(s *memstore.Store) []string {
	var out []string
	for _, c := range s.Calls(memstore.OpDelete) {
		out = append(out, c.Path)
	}
	return out
}

var errPermission = errors.New("permission denied")
