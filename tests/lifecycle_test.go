//go:build integration

package testns_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/giantswarm/testns"
	"github.com/giantswarm/testns/testhost"
	"github.com/giantswarm/testns/tests/internal/testutil"
)

// TestOnStartIdempotent verifies that OnStart, already called in TestMain,
// is a no-op on repeated and concurrent calls.
func TestOnStartIdempotent(t *testing.T) {
	errs := make([]error, 10)
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Go(func() {
			errs[i] = sharedEnv.OnStart(context.Background())
		})
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("concurrent OnStart call %d failed: %v", i, err)
		}
	}
}

// TestHierarchy drives a root scope with two levels of nested scopes through
// testhost and checks what each level sees of its ancestors' work.
func TestHierarchy(t *testing.T) {
	root := testhost.Root(t, sharedEnv)
	ns := root.Namespace()
	ctx := t.Context()

	if err := ns.SetValue(ctx, "fixtures/base", []byte("root")); err != nil {
		t.Fatalf("SetValue() error: %v", err)
	}

	root.Run(t, "level1", func(t *testing.T, s *testhost.Scope) {
		ctx := t.Context()
		if err := ns.SetValue(ctx, "fixtures/level1", []byte("1")); err != nil {
			t.Fatalf("SetValue() error: %v", err)
		}

		s.Run(t, "level2", func(t *testing.T, _ *testhost.Scope) {
			ctx := t.Context()
			for _, key := range []string{"fixtures/base", "fixtures/level1"} {
				if ok, err := ns.Exists(ctx, key); err != nil || !ok {
					t.Errorf("Exists(%q) = %v, %v; inherited item missing", key, ok, err)
				}
			}
			if err := ns.SetValue(ctx, "fixtures/level2", []byte("2")); err != nil {
				t.Fatalf("SetValue() error: %v", err)
			}
			if err := ns.Delete(ctx, "fixtures/base"); err != nil {
				t.Fatalf("Delete() error: %v", err)
			}
		})

		ok, err := ns.Exists(ctx, "fixtures/level2")
		if err != nil {
			t.Fatalf("Exists() error: %v", err)
		}
		if ok {
			t.Error("level2 item survived its scope")
		}
		// Items deleted by a nested scope stay deleted.
		if ok, _ := ns.Exists(ctx, "fixtures/base"); ok {
			t.Error("item deleted in level2 came back")
		}
	})

	got, err := ns.List(ctx)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	want := []string{"fixtures"}
	if len(got) != len(want) || got[0] != want[0] {
		t.Errorf("List() after nested scopes = %v, want %v", got, want)
	}
}

// TestAliasOnDisk checks that the namespace is reachable through the alias
// symlink of the filesystem store and that it disappears with the root
// scope.
func TestAliasOnDisk(t *testing.T) {
	link := testutil.AliasLink(testutil.CurrentDirs, testns.DefaultAlias)
	var rootDir string

	t.Run("scope", func(t *testing.T) {
		root := testhost.Root(t, sharedEnv)
		ns := root.Namespace()
		rootDir = testutil.RootDir(testutil.CurrentDirs, ns.Root())

		if err := os.WriteFile(filepath.Join(link, "written-through-alias"), []byte("x"), 0o600); err != nil {
			t.Fatalf("write through alias: %v", err)
		}
		data, err := ns.Value(t.Context(), "written-through-alias")
		if err != nil {
			t.Fatalf("Value() error: %v", err)
		}
		if string(data) != "x" {
			t.Errorf("Value() = %q, want %q", data, "x")
		}
	})

	if testutil.PathExists(link) {
		t.Error("alias symlink survived root teardown")
	}
	if testutil.PathExists(rootDir) {
		t.Errorf("root container %s survived root teardown", rootDir)
	}
	if sharedEnv.Namespace() != nil {
		t.Error("Namespace() != nil after root teardown")
	}
}

// TestHandleInvalidAfterTeardown verifies that a handle kept past its root
// scope refuses to address anything.
func TestHandleInvalidAfterTeardown(t *testing.T) {
	var kept testns.Namespace

	t.Run("scope", func(t *testing.T) {
		kept = testhost.Root(t, sharedEnv).Namespace()
	})

	if _, err := kept.Value(context.Background(), "anything"); !errors.Is(err, testns.ErrNotMounted) {
		t.Errorf("Value() on stale handle error = %v, want ErrNotMounted", err)
	}
}

// TestSecondRootRejected verifies that only one root scope can be alive.
func TestSecondRootRejected(t *testing.T) {
	_ = testhost.Root(t, sharedEnv)

	err := sharedEnv.OnScopeSetup(t.Context(), &testns.Scope{ID: "intruder"})
	if !errors.Is(err, testns.ErrRootActive) {
		t.Errorf("second root setup error = %v, want ErrRootActive", err)
	}
}
