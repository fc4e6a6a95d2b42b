// Package storetest provides a conformance suite that every store.Provider
// implementation runs from its own tests.
package storetest

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/giantswarm/testns/internal/store"
)

// Factory returns a fresh, empty provider for a single subtest. The factory
// is responsible for registering cleanup of the provider with t.
type Factory func(t *testing.T) store.Provider

// Run runs the provider conformance suite against providers made by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("create and exists", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		if err := s.Create(ctx, "/ns/root/a/b"); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
		for _, p := range []string{"/ns", "/ns/root", "/ns/root/a", "/ns/root/a/b"} {
			ok, err := s.Exists(ctx, p)
			if err != nil {
				t.Fatalf("Exists(%q) error: %v", p, err)
			}
			if !ok {
				t.Errorf("Exists(%q) = false, want true", p)
			}
		}
		ok, err := s.Exists(ctx, "/ns/other")
		if err != nil {
			t.Fatalf("Exists() error: %v", err)
		}
		if ok {
			t.Error("Exists(/ns/other) = true, want false")
		}
	})

	t.Run("create existing fails", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		if err := s.Create(ctx, "/ns/root"); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
		if err := s.Create(ctx, "/ns/root"); !errors.Is(err, store.ErrExists) {
			t.Fatalf("second Create() error = %v, want ErrExists", err)
		}
	})

	t.Run("list all descendants", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		mustCreate(t, s, "/ns/root/a/b/c")
		mustCreate(t, s, "/ns/root/x")
		if err := s.SetValue(ctx, "/ns/root/x/v", []byte("data")); err != nil {
			t.Fatalf("SetValue() error: %v", err)
		}
		mustCreate(t, s, "/ns/sibling")

		got, err := s.ListAll(ctx, "/ns/root")
		if err != nil {
			t.Fatalf("ListAll() error: %v", err)
		}
		slices.Sort(got)
		want := []string{
			"/ns/root/a",
			"/ns/root/a/b",
			"/ns/root/a/b/c",
			"/ns/root/x",
			"/ns/root/x/v",
		}
		if !slices.Equal(got, want) {
			t.Errorf("ListAll() = %v, want %v", got, want)
		}

		empty, err := s.ListAll(ctx, "/ns/sibling")
		if err != nil {
			t.Fatalf("ListAll() of empty key error: %v", err)
		}
		if len(empty) != 0 {
			t.Errorf("ListAll() of empty key = %v, want none", empty)
		}
	})

	t.Run("values", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		if err := s.SetValue(ctx, "/ns/root/k", []byte("one")); err != nil {
			t.Fatalf("SetValue() error: %v", err)
		}
		if err := s.SetValue(ctx, "/ns/root/k", []byte("two")); err != nil {
			t.Fatalf("SetValue() overwrite error: %v", err)
		}
		got, err := s.Value(ctx, "/ns/root/k")
		if err != nil {
			t.Fatalf("Value() error: %v", err)
		}
		if string(got) != "two" {
			t.Errorf("Value() = %q, want %q", got, "two")
		}
		if _, err := s.Value(ctx, "/ns/root/missing"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Value() of missing key error = %v, want ErrNotFound", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		mustCreate(t, s, "/ns/root/a/b")

		if err := s.Delete(ctx, "/ns/root/a", false); !errors.Is(err, store.ErrNotEmpty) {
			t.Fatalf("non-recursive Delete() of non-empty key error = %v, want ErrNotEmpty", err)
		}
		if err := s.Delete(ctx, "/ns/root/a/b", false); err != nil {
			t.Fatalf("Delete() of leaf error: %v", err)
		}
		mustCreate(t, s, "/ns/root/a/b/c")
		if err := s.Delete(ctx, "/ns/root/a", true); err != nil {
			t.Fatalf("recursive Delete() error: %v", err)
		}
		for _, p := range []string{"/ns/root/a", "/ns/root/a/b", "/ns/root/a/b/c"} {
			if ok, _ := s.Exists(ctx, p); ok {
				t.Errorf("%s still exists after recursive delete", p)
			}
		}
		if ok, _ := s.Exists(ctx, "/ns/root"); !ok {
			t.Error("parent of deleted key must survive")
		}
		if err := s.Delete(ctx, "/ns/root/a", true); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Delete() of missing key error = %v, want ErrNotFound", err)
		}
	})

	t.Run("keys differing only in case are distinct", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		mustCreate(t, s, "/r/a/x")
		mustCreate(t, s, "/r/A")

		got, err := s.ListAll(ctx, "/r/A")
		if err != nil {
			t.Fatalf("ListAll() error: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("ListAll(/r/A) = %v, want none", got)
		}
		if err := s.Delete(ctx, "/r/A", false); err != nil {
			t.Fatalf("non-recursive Delete(/r/A) error: %v", err)
		}
		mustCreate(t, s, "/r/A")
		if err := s.Delete(ctx, "/r/A", true); err != nil {
			t.Fatalf("recursive Delete(/r/A) error: %v", err)
		}
		if ok, _ := s.Exists(ctx, "/r/a/x"); !ok {
			t.Error("deleting /r/A removed /r/a/x")
		}
	})

	t.Run("key with value and children", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		if err := s.SetValue(ctx, "/ns/k", []byte("v")); err != nil {
			t.Fatalf("SetValue() error: %v", err)
		}
		mustCreate(t, s, "/ns/k/child")
		if err := s.SetValue(ctx, "/ns/k/child/leaf", []byte("w")); err != nil {
			t.Fatalf("SetValue() below a valued key error: %v", err)
		}

		got, err := s.Value(ctx, "/ns/k")
		if err != nil {
			t.Fatalf("Value() error: %v", err)
		}
		if string(got) != "v" {
			t.Errorf("Value(/ns/k) = %q, want %q", got, "v")
		}
		if err := s.SetValue(ctx, "/ns/k", []byte("v2")); err != nil {
			t.Fatalf("SetValue() on key with children error: %v", err)
		}
		if got, _ := s.Value(ctx, "/ns/k"); string(got) != "v2" {
			t.Errorf("Value(/ns/k) after overwrite = %q, want %q", got, "v2")
		}

		list, err := s.ListAll(ctx, "/ns/k")
		if err != nil {
			t.Fatalf("ListAll() error: %v", err)
		}
		slices.Sort(list)
		if want := []string{"/ns/k/child", "/ns/k/child/leaf"}; !slices.Equal(list, want) {
			t.Errorf("ListAll(/ns/k) = %v, want %v", list, want)
		}

		if err := s.Delete(ctx, "/ns/k", false); !errors.Is(err, store.ErrNotEmpty) {
			t.Fatalf("non-recursive Delete() error = %v, want ErrNotEmpty", err)
		}
		if err := s.Delete(ctx, "/ns/k/child", true); err != nil {
			t.Fatalf("Delete() of children error: %v", err)
		}
		// Only the value remains; the key counts as empty.
		if err := s.Delete(ctx, "/ns/k", false); err != nil {
			t.Fatalf("non-recursive Delete() of valued key error: %v", err)
		}
		if ok, _ := s.Exists(ctx, "/ns/k"); ok {
			t.Error("/ns/k still exists after delete")
		}
	})

	t.Run("mount lifecycle", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		mustCreate(t, s, "/ns/root")

		if _, err := s.Resolve(ctx, "alias"); !errors.Is(err, store.ErrNotMounted) {
			t.Fatalf("Resolve() before Mount error = %v, want ErrNotMounted", err)
		}
		if err := s.Mount(ctx, "alias", "/ns/root"); err != nil {
			t.Fatalf("Mount() error: %v", err)
		}
		if err := s.Mount(ctx, "alias", "/ns/root"); !errors.Is(err, store.ErrAliasExists) {
			t.Fatalf("second Mount() error = %v, want ErrAliasExists", err)
		}
		root, err := s.Resolve(ctx, "alias")
		if err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}
		if root != "/ns/root" {
			t.Errorf("Resolve() = %q, want %q", root, "/ns/root")
		}
		mounts, err := s.Mounts(ctx)
		if err != nil {
			t.Fatalf("Mounts() error: %v", err)
		}
		if len(mounts) != 1 || mounts["alias"] != "/ns/root" {
			t.Errorf("Mounts() = %v, want exactly alias -> /ns/root", mounts)
		}
		if err := s.Unmount(ctx, "alias"); err != nil {
			t.Fatalf("Unmount() error: %v", err)
		}
		if err := s.Unmount(ctx, "alias"); !errors.Is(err, store.ErrNotMounted) {
			t.Errorf("second Unmount() error = %v, want ErrNotMounted", err)
		}
		if ok, _ := s.Exists(ctx, "/ns/root"); !ok {
			t.Error("Unmount() must not remove the bound key")
		}
	})
}

func mustCreate(t *testing.T, s store.Provider, path string) {
	t.Helper()
	if err := s.Create(context.Background(), path); err != nil {
		t.Fatalf("Create(%q) error: %v", path, err)
	}
}
