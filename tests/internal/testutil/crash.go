//go:build integration

package testutil

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/giantswarm/testns"
)

// Environment variables passed from a test binary to the copy of itself it
// runs as a crash child.
const (
	crashChildEnv = "TESTNS_CRASH_CHILD"
	crashStoreEnv = "TESTNS_CRASH_STORE"
	crashLocksEnv = "TESTNS_CRASH_LOCKS"
	crashAliasEnv = "TESTNS_CRASH_ALIAS"
)

// CrashedValue is the value every crash child leaves at key "crashed" in its
// namespace.
const CrashedValue = "left behind"

// defaultCrashedRuns is the default number of crashed runs the stress test
// leaves behind.
const defaultCrashedRuns = 20

var (
	crashedRunsOnce  sync.Once
	crashedRunsCount int
)

// CrashedRunCount returns the number of crashed runs to leave behind,
// reading TESTNS_STRESS_ORPHANS on first call. Panics if the env var is set
// but invalid.
func CrashedRunCount() int {
	crashedRunsOnce.Do(func() {
		crashedRunsCount = defaultCrashedRuns
		if v := os.Getenv("TESTNS_STRESS_ORPHANS"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				panic(fmt.Sprintf("invalid TESTNS_STRESS_ORPHANS=%q: must be a positive integer", v))
			}

			crashedRunsCount = n
		}
	})

	return crashedRunsCount
}

// RunCrashChildIfRequested turns the process into a crash child when the
// parent asked for one: it provisions a root namespace under the requested
// alias, writes CrashedValue, prints the root key path and exits without
// tearing anything down. The exiting process drops its run lock, exactly
// like a test run that was killed. Otherwise it returns immediately.
func RunCrashChildIfRequested() {
	if os.Getenv(crashChildEnv) == "" {
		return
	}

	ctx := context.Background()
	env := testns.NewEnv(
		testns.WithFilesystemStore(os.Getenv(crashStoreEnv)),
		testns.WithLockDir(os.Getenv(crashLocksEnv)),
		testns.WithAlias(os.Getenv(crashAliasEnv)),
	)
	fail := func(step string, err error) {
		fmt.Fprintf(os.Stderr, "crash child: %s: %v\n", step, err)
		os.Exit(3)
	}
	if err := env.OnStart(ctx); err != nil {
		fail("start", err)
	}
	if err := env.OnScopeSetup(ctx, &testns.Scope{ID: "crashed"}); err != nil {
		fail("setup", err)
	}
	ns := env.Namespace()
	if err := ns.SetValue(ctx, "crashed", []byte(CrashedValue)); err != nil {
		fail("write", err)
	}
	fmt.Fprintln(os.Stdout, ns.Root())
	os.Exit(0)
}

// SpawnCrashedRun runs the test binary as a crash child against dirs and
// returns the key path of the root container it left behind.
func SpawnCrashedRun(ctx context.Context, dirs Dirs, alias string) (string, error) {
	//nolint:gosec // G204: re-executes the running test binary
	cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=^$")
	cmd.Env = append(os.Environ(),
		crashChildEnv+"=1",
		crashStoreEnv+"="+dirs.Store,
		crashLocksEnv+"="+dirs.Locks,
		crashAliasEnv+"="+alias,
	)
	cmd.Stderr = os.Stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("crash child %s: %w", alias, err)
	}
	root := strings.TrimSpace(string(out))
	if root == "" {
		return "", fmt.Errorf("crash child %s printed no root", alias)
	}
	return root, nil
}

// SpawnCrashedRuns leaves n crashed runs behind concurrently, each under its
// own alias, and returns their root key paths keyed by alias.
func SpawnCrashedRuns(ctx context.Context, dirs Dirs, n int) (map[string]string, error) {
	var mu sync.Mutex
	roots := make(map[string]string, n)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for range n {
		alias := UniqueName("crashed")
		g.Go(func() error {
			root, err := SpawnCrashedRun(ctx, dirs, alias)
			if err != nil {
				return err
			}
			mu.Lock()
			roots[alias] = root
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return roots, nil
}

// RootDir returns the directory a filesystem store in dirs keeps the key at
// root in.
func RootDir(dirs Dirs, root string) string {
	return filepath.Join(dirs.Store, "tree", filepath.FromSlash(strings.TrimPrefix(root, "/")))
}

// AliasLink returns the symlink a filesystem store in dirs mounts alias at.
func AliasLink(dirs Dirs, alias string) string {
	return filepath.Join(dirs.Store, "mnt", alias)
}

// PathExists reports whether p exists without following a final symlink.
func PathExists(p string) bool {
	_, err := os.Lstat(p)
	return err == nil
}
