// Package testns gives tests an isolated, hierarchical, ephemeral key-tree
// namespace.
//
// A namespace is a uniquely named root container, provisioned below a shared
// temp root and mounted under a well-known alias so test code can address it
// without knowing the random name. The root test scope creates and destroys
// the namespace; every nested scope records the namespace contents on entry
// and removes whatever it created on exit, so sibling tests see the state
// their parent left behind and nothing else.
//
// # Basic Usage
//
//	import "github.com/giantswarm/testns"
//
//	env := testns.NewEnv(testns.WithSQLiteStore("/tmp/testns.db"))
//	defer env.Close(ctx)
//
//	if err := env.OnStart(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	root := &testns.Scope{ID: "suite"}
//	if err := env.OnScopeSetup(ctx, root); err != nil {
//	    log.Fatal(err)
//	}
//	defer env.OnScopeTeardown(ctx, root)
//
//	ns := env.Namespace()
//	_ = ns.SetValue(ctx, "app/config", []byte("debug=true"))
//
// # Test Hosts
//
// The lifecycle events map directly onto a test runner's setup and teardown
// hooks. Package testhost binds them to *testing.T subtests and package
// ginkgohost to Ginkgo containers; neither needs any code beyond one call per
// scope.
//
// # Storage
//
// The namespace lives in a storage provider chosen with an option:
// a local directory tree (default), a SQLite database, a Redis server, or
// process memory. Orphaned root containers of crashed runs are recognized by
// their free run lock and can be purged with WithPurgeOrphans or the
// testns-purge command.
package testns
