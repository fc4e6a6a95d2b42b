package ginkgohost_test

import (
	"context"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/giantswarm/testns"
	"github.com/giantswarm/testns/ginkgohost"
)

var (
	env  testns.Env
	root *ginkgohost.Scope
)

var _ = BeforeSuite(func() {
	dir := GinkgoT().TempDir()
	env = testns.NewEnv(
		testns.WithFilesystemStore(filepath.Join(dir, "store")),
		testns.WithLockDir(filepath.Join(dir, "locks")),
		testns.WithAlias(ginkgohost.ProcessAlias(testns.DefaultAlias)),
	)
	DeferCleanup(env.Close)
	root = ginkgohost.Setup(env)

	Expect(env.Namespace().CreateKey(context.Background(), "base")).To(Succeed())
})

var _ = Describe("ginkgo scopes", func() {

	It("sets up the suite as root scope", func() {
		Expect(root.ID()).To(Equal(ginkgohost.RootScopeID))
		Expect(root.Namespace()).NotTo(BeNil())
		Expect(root.Namespace().Alias()).To(HavePrefix(testns.DefaultAlias + "-"))
	})

	It("derives the process alias from the parallel process", func() {
		alias := ginkgohost.ProcessAlias("x")
		Expect(alias).To(HavePrefix("x-"))
		Expect(strings.TrimPrefix(alias, "x-")).NotTo(BeEmpty())
	})

	When("every spec enters its own scope", func() {
		var scope *ginkgohost.Scope

		BeforeEach(func() {
			scope = ginkgohost.Enter(root)
		})

		// Both specs start from the suite state, whichever runs first.
		for _, name := range []string{"first", "second"} {
			It("sees only the suite items in the "+name+" spec", func(ctx context.Context) {
				ns := scope.Namespace()
				Expect(ns.List(ctx)).To(ConsistOf("base"))
				Expect(ns.CreateKey(ctx, name+"/item")).To(Succeed())
				Expect(ns.List(ctx)).To(ConsistOf("base", name, name+"/item"))
			})
		}

		It("uses distinct scope ids", func() {
			other := ginkgohost.Enter(scope)
			Expect(other.ID()).NotTo(Equal(scope.ID()))
			Expect(other.ID()).To(ContainSubstring("distinct scope ids"))
		})
	})

	When("an ordered container shares one scope", Ordered, func() {
		var scope *ginkgohost.Scope

		BeforeAll(func() {
			scope = ginkgohost.Enter(root)
		})

		It("creates an item", func(ctx context.Context) {
			Expect(scope.Namespace().CreateKey(ctx, "shared")).To(Succeed())
		})

		It("still sees it in the next spec", func(ctx context.Context) {
			Expect(scope.Namespace().Exists(ctx, "shared")).To(BeTrue())
		})
	})

	It("has removed what the ordered container created", func(ctx context.Context) {
		Expect(env.Namespace().Exists(ctx, "shared")).To(BeFalse())
	})
})
