// Package testhost binds the testns lifecycle events to Go's testing
// package: a test function is the root scope, every subtest started through
// Scope.Run is a nested scope, and teardown runs from t.Cleanup so it happens
// even when the test fails.
//
//	func TestConfigLoader(t *testing.T) {
//	    root := testhost.Root(t, testns.NewEnv())
//	    root.Run(t, "defaults", func(t *testing.T, s *testhost.Scope) {
//	        _ = s.Namespace().SetValue(t.Context(), "app/mode", []byte("dev"))
//	    })
//	    // "app/mode" is gone again here.
//	}
//
// Nested scopes share one namespace and must not run in parallel with their
// siblings: one sibling's teardown would remove the other's items.
package testhost

import (
	"context"
	"testing"

	"github.com/giantswarm/testns"
)

// Hooks is the lifecycle event interface of a testns environment.
type Hooks interface {
	OnStart(ctx context.Context) error
	OnScopeSetup(ctx context.Context, s *testns.Scope) error
	OnScopeTeardown(ctx context.Context, s *testns.Scope) error
}

// Env is implemented by hooks that also hand out the live namespace, such as
// testns.Env.
type Env interface {
	Hooks
	Namespace() testns.Namespace
}

// Scope is a test scope that has been set up.
type Scope struct {
	hooks Hooks
	scope *testns.Scope
}

// Root emits OnStart and sets up t as the root scope. The scope is torn down
// from t.Cleanup. Setup failures end the test with Fatalf; teardown failures
// are reported with Errorf.
func Root(t testing.TB, h Hooks) *Scope {
	t.Helper()
	if err := h.OnStart(t.Context()); err != nil {
		t.Fatalf("testns: start: %v", err)
	}
	return setup(t, h, &testns.Scope{ID: t.Name()})
}

// Nested sets up t as a child scope of parent and tears it down from
// t.Cleanup. t is normally the subtest running inside parent's test.
func Nested(t testing.TB, parent *Scope) *Scope {
	t.Helper()
	return setup(t, parent.hooks, &testns.Scope{ID: t.Name(), Parent: parent.scope})
}

// Run runs fn as subtest name of t inside a nested scope of s. It reports
// whether the subtest succeeded.
func (s *Scope) Run(t *testing.T, name string, fn func(t *testing.T, s *Scope)) bool {
	t.Helper()
	return t.Run(name, func(t *testing.T) {
		fn(t, Nested(t, s))
	})
}

// Namespace returns the live namespace handle, or nil when the hooks do not
// provide one or no root scope is alive.
//
//nolint:ireturn // testns.Namespace is the public handle type.
func (s *Scope) Namespace() testns.Namespace {
	if env, ok := s.hooks.(Env); ok {
		return env.Namespace()
	}
	return nil
}

// ID returns the scope ID, the name of the test it belongs to.
func (s *Scope) ID() string {
	return s.scope.ID
}

func setup(t testing.TB, h Hooks, sc *testns.Scope) *Scope {
	t.Helper()
	// Registered before setup so a partially failed setup is torn down too.
	t.Cleanup(func() {
		// t.Context() is already canceled while cleanups run.
		if err := h.OnScopeTeardown(context.Background(), sc); err != nil {
			t.Errorf("testns: teardown %s: %v", sc.ID, err)
		}
	})
	if err := h.OnScopeSetup(t.Context(), sc); err != nil {
		t.Fatalf("testns: setup %s: %v", sc.ID, err)
	}
	return &Scope{hooks: h, scope: sc}
}
