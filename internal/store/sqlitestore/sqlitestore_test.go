package sqlitestore

import (
	"context"
	"log/slog"
	"path/filepath"
	"slices"
	"testing"

	"github.com/giantswarm/testns/internal/store"
	"github.com/giantswarm/testns/internal/store/storetest"
)

func newTestStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(context.Background(), path, slog.Default())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error: %v", err)
		}
	})
	return s
}

func TestConformance(t *testing.T) {
	t.Parallel()

	storetest.Run(t, func(t *testing.T) store.Provider {
		return newTestStore(t, filepath.Join(t.TempDir(), "testns.db"))
	})
}

func TestWildcardCharactersInPaths(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t, filepath.Join(t.TempDir(), "testns.db"))

	for _, p := range []string{"/ns/a_b/k", "/ns/a%b/k", "/ns/axb/k"} {
		if err := s.Create(ctx, p); err != nil {
			t.Fatalf("Create(%q) error: %v", p, err)
		}
	}

	got, err := s.ListAll(ctx, "/ns/a_b")
	if err != nil {
		t.Fatalf("ListAll() error: %v", err)
	}
	if want := []string{"/ns/a_b/k"}; !slices.Equal(got, want) {
		t.Errorf("ListAll(/ns/a_b) = %v, want %v", got, want)
	}

	if err := s.Delete(ctx, "/ns/a%b", true); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if ok, _ := s.Exists(ctx, "/ns/axb/k"); !ok {
		t.Errorf("deleting %s must not touch %s", "/ns/a%b", "/ns/axb")
	}
}

func TestSharedDatabaseFile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")
	first := newTestStore(t, path)
	second := newTestStore(t, path)

	if err := first.Create(ctx, "/testns/root"); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if err := first.Mount(ctx, "testns", "/testns/root"); err != nil {
		t.Fatalf("Mount() error: %v", err)
	}
	root, err := second.Resolve(ctx, "testns")
	if err != nil {
		t.Fatalf("Resolve() through second handle error: %v", err)
	}
	if root != "/testns/root" {
		t.Errorf("Resolve() = %q, want /testns/root", root)
	}
}

func TestMultibytePrefix(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t, filepath.Join(t.TempDir(), "testns.db"))

	for _, p := range []string{"/ns/größe/k", "/ns/GRÖSSE/k", "/ns/grö/k"} {
		if err := s.Create(ctx, p); err != nil {
			t.Fatalf("Create(%q) error: %v", p, err)
		}
	}

	got, err := s.ListAll(ctx, "/ns/größe")
	if err != nil {
		t.Fatalf("ListAll() error: %v", err)
	}
	if want := []string{"/ns/größe/k"}; !slices.Equal(got, want) {
		t.Errorf("ListAll(/ns/größe) = %v, want %v", got, want)
	}
}
