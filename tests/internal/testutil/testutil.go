//go:build integration

// Package testutil provides shared helpers for integration test packages.
package testutil

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/giantswarm/testns"
)

// Dirs are the locations an integration test binary keeps its state in.
type Dirs struct {
	// Base is the temporary directory removed when the binary exits.
	Base string
	// Store is the filesystem store directory.
	Store string
	// Locks is the run lock directory.
	Locks string
}

// NewDirs creates a fresh temporary directory layout named after prefix.
func NewDirs(prefix string) (Dirs, error) {
	base, err := os.MkdirTemp("", prefix)
	if err != nil {
		return Dirs{}, fmt.Errorf("create temp dir: %w", err)
	}
	return Dirs{
		Base:  base,
		Store: filepath.Join(base, "store"),
		Locks: filepath.Join(base, "locks"),
	}, nil
}

// Options returns the Env options pointing at d.
func (d Dirs) Options() []testns.Option {
	return []testns.Option{
		testns.WithFilesystemStore(d.Store),
		testns.WithLockDir(d.Locks),
	}
}

// nameCounter is an atomic counter used by UniqueName.
var nameCounter atomic.Int64

// UniqueName returns a name that is unique across all parallel tests of the
// binary. Use it for aliases and key names.
func UniqueName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, nameCounter.Add(1))
}

// SetupTestLogging configures slog based on the TESTNS_LOG_LEVEL environment
// variable. This only affects test runs; the library itself inherits the
// application's logging config.
func SetupTestLogging() {
	levelStr := os.Getenv("TESTNS_LOG_LEVEL")
	if levelStr == "" {
		levelStr = "INFO"
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(levelStr)); err != nil {
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))

	testns.SetLogger(slog.Default().With("component", "testns"))
}

// RunTestMain sets up signal handling for graceful shutdown, runs all tests,
// then closes env and removes the temp dir. Returns the exit code.
func RunTestMain(m *testing.M, env testns.Env, dirs Dirs) int {
	sigCh := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			signal.Stop(sigCh) // Restore default handler so a second signal force-kills
			fmt.Fprintf(os.Stderr, "\nReceived %s, shutting down...\n", sig)
			closeEnv(env)
			_ = os.RemoveAll(dirs.Base)
			os.Exit(1)
		case <-done:
			return
		}
	}()

	code := m.Run()

	signal.Stop(sigCh)
	close(done)
	closeEnv(env)
	_ = os.RemoveAll(dirs.Base)

	return code
}

func closeEnv(env testns.Env) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := env.Close(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Close error: %v\n", err)
	}
}

// SetupAndRun handles the standard TestMain boilerplate: crash child
// dispatch, flag parsing, logging setup, temp dir creation, creation of the
// singleton Env on a filesystem store with opts appended, and OnStart. The
// created Env is assigned to *env so tests can reference it. This function
// calls os.Exit and never returns.
//
//nolint:gocritic // ptrToRefParam: pointer-to-interface needed to assign the created Env back to the caller's variable.
func SetupAndRun(m *testing.M, env *testns.Env, prefix string, opts ...testns.Option) {
	SetupAndRunWithHook(m, env, prefix, nil, opts...)
}

// SetupHook is called after temp dir creation and before the Env is
// created, allowing setup that depends on the directories, such as leaving
// crashed runs behind. It returns additional Env options.
type SetupHook func(ctx context.Context, dirs Dirs) ([]testns.Option, error)

// SetupAndRunWithHook is like SetupAndRun but calls hook after temp dir
// creation, prepending the returned options before opts.
//
//nolint:gocritic // ptrToRefParam: pointer-to-interface needed to assign the created Env back to the caller's variable.
func SetupAndRunWithHook(m *testing.M, env *testns.Env, prefix string, hook SetupHook, opts ...testns.Option) {
	RunCrashChildIfRequested()

	flag.Parse()
	SetupTestLogging()

	dirs, err := NewDirs(prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)

	baseOpts := dirs.Options()
	if hook != nil {
		extra, hookErr := hook(ctx, dirs)
		if hookErr != nil {
			cancel()
			fmt.Fprintf(os.Stderr, "setup hook failed: %v\n", hookErr)
			_ = os.RemoveAll(dirs.Base)
			os.Exit(1)
		}
		baseOpts = append(baseOpts, extra...)
	}
	baseOpts = append(baseOpts, opts...)

	created := testns.NewEnv(baseOpts...)

	if startErr := created.OnStart(ctx); startErr != nil {
		cancel()
		fmt.Fprintf(os.Stderr, "OnStart failed: %v\n", startErr)
		_ = os.RemoveAll(dirs.Base)
		os.Exit(1)
	}
	cancel()

	*env = created
	CurrentDirs = dirs

	os.Exit(RunTestMain(m, created, dirs))
}

// CurrentDirs is the directory layout of the Env created by SetupAndRun.
var CurrentDirs Dirs
