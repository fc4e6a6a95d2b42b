// Package ginkgohost binds the testns lifecycle events to Ginkgo.
//
// The suite is the root scope, set up from BeforeSuite; containers and specs
// enter nested scopes from BeforeEach or BeforeAll. Teardown is registered
// with DeferCleanup, so it runs in reverse order even when specs fail.
//
//	var root *ginkgohost.Scope
//
//	var _ = BeforeSuite(func() {
//	    root = ginkgohost.Setup(testns.NewEnv(
//	        testns.WithAlias(ginkgohost.ProcessAlias(testns.DefaultAlias))))
//	})
//
//	var _ = Describe("config loader", func() {
//	    var scope *ginkgohost.Scope
//	    BeforeEach(func() { scope = ginkgohost.Enter(root) })
//
//	    It("reads defaults", func(ctx context.Context) {
//	        Expect(scope.Namespace().SetValue(ctx, "app/mode", []byte("dev"))).To(Succeed())
//	    })
//	})
package ginkgohost

import (
	"context"
	"fmt"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2" //nolint:staticcheck // ST1001 rule does not apply
	. "github.com/onsi/gomega"    //nolint:staticcheck // ST1001 rule does not apply

	"github.com/giantswarm/testns"
)

// RootScopeID is the ID of the suite-level root scope.
const RootScopeID = "suite"

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

// Scope is a Ginkgo scope that has been set up.
type Scope struct {
	hooks Hooks
	scope *testns.Scope
}

// seq disambiguates nested scope IDs of specs sharing the same text.
var seq atomic.Uint64

// Setup emits OnStart and sets up the root scope. Call it from BeforeSuite
// (or from BeforeAll of an Ordered top-level container); the teardown is
// scheduled with DeferCleanup.
func Setup(h Hooks) *Scope {
	GinkgoHelper()
	Expect(h.OnStart(context.Background())).To(Succeed(), "cannot start testns")
	return enter(h, &testns.Scope{ID: RootScopeID})
}

// Enter sets up a nested scope below parent. Call it from BeforeEach for a
// scope per spec or from BeforeAll for a scope per Ordered container.
func Enter(parent *Scope) *Scope {
	GinkgoHelper()
	Expect(parent).NotTo(BeNil(), "parent scope not set up")
	id := fmt.Sprintf("%s#%d", CurrentSpecReport().FullText(), seq.Add(1))
	return enter(parent.hooks, &testns.Scope{ID: id, Parent: parent.scope})
}

func enter(h Hooks, sc *testns.Scope) *Scope {
	GinkgoHelper()
	DeferCleanup(func(ctx context.Context) {
		Expect(h.OnScopeTeardown(ctx, sc)).To(Succeed(), "cannot tear down testns scope %s", sc.ID)
	})
	Expect(h.OnScopeSetup(context.Background(), sc)).To(Succeed(), "cannot set up testns scope %s", sc.ID)
	return &Scope{hooks: h, scope: sc}
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

// ID returns the scope ID.
func (s *Scope) ID() string {
	return s.scope.ID
}

// ProcessAlias returns base suffixed with the Ginkgo parallel process number,
// so that the processes of a parallel suite mount distinct aliases.
func ProcessAlias(base string) string {
	return fmt.Sprintf("%s-%d", base, GinkgoParallelProcess())
}
