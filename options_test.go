package testns_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/giantswarm/testns"
	"github.com/giantswarm/testns/internal/store/memstore"
)

// panicTestCase defines a test case for option validation panic tests.
type panicTestCase struct {
	name     string
	panics   bool
	panicMsg string
	fn       func()
}

// requirePanics calls fn and verifies it panics (or not) with the expected message.
func requirePanics(t *testing.T, shouldPanic bool, wantMsg string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if shouldPanic && r == nil {
			t.Fatal("expected panic but didn't get one")
		}
		if !shouldPanic && r != nil {
			t.Fatalf("unexpected panic: %v", r)
		}
		if shouldPanic && r != nil {
			if msg := fmt.Sprint(r); msg != wantMsg {
				t.Fatalf("expected panic message %q, got %q", wantMsg, msg)
			}
		}
	}()
	fn()
}

// runPanicTests runs a slice of panic test cases using requirePanics.
func runPanicTests(t *testing.T, tests []panicTestCase) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			requirePanics(t, tt.panics, tt.panicMsg, tt.fn)
		})
	}
}

func TestWithAliasPanicsOnInvalid(t *testing.T) {
	t.Parallel()
	runPanicTests(t, []panicTestCase{
		{
			name:     "empty",
			panics:   true,
			panicMsg: "testns: alias must not be empty",
			fn:       func() { testns.WithAlias("") },
		},
		{
			name:     "separator",
			panics:   true,
			panicMsg: `testns: alias must be a single path segment, got "a/b"`,
			fn:       func() { testns.WithAlias("a/b") },
		},
		{
			name:     "dot-dot",
			panics:   true,
			panicMsg: `testns: alias must be a single path segment, got ".."`,
			fn:       func() { testns.WithAlias("..") },
		},
		{
			name: "valid",
			fn:   func() { testns.WithAlias("mytests") },
		},
	})
}

func TestWithTempRootPanicsOnInvalid(t *testing.T) {
	t.Parallel()
	runPanicTests(t, []panicTestCase{
		{
			name:     "empty",
			panics:   true,
			panicMsg: "testns: temp root must not be empty",
			fn:       func() { testns.WithTempRoot("") },
		},
		{
			name:     "tree root",
			panics:   true,
			panicMsg: `testns: temp root must not be the key tree root, got "/"`,
			fn:       func() { testns.WithTempRoot("/") },
		},
		{
			name: "valid",
			fn:   func() { testns.WithTempRoot("/ci/tmp") },
		},
	})
}

func TestWithRetryDelayPanicsOnInvalid(t *testing.T) {
	t.Parallel()
	runPanicTests(t, []panicTestCase{
		{
			name:     "zero",
			panics:   true,
			panicMsg: "testns: retry delay must be greater than 0, got 0s",
			fn:       func() { testns.WithRetryDelay(0) },
		},
		{
			name:     "negative",
			panics:   true,
			panicMsg: "testns: retry delay must be greater than 0, got -1s",
			fn:       func() { testns.WithRetryDelay(-time.Second) },
		},
		{
			name: "positive",
			fn:   func() { testns.WithRetryDelay(time.Millisecond) },
		},
	})
}

func TestWithPurgeConcurrencyPanicsOnInvalid(t *testing.T) {
	t.Parallel()
	runPanicTests(t, []panicTestCase{
		{
			name:     "zero",
			panics:   true,
			panicMsg: "testns: purge concurrency must be greater than 0, got 0",
			fn:       func() { testns.WithPurgeConcurrency(0) },
		},
		{
			name: "one",
			fn:   func() { testns.WithPurgeConcurrency(1) },
		},
	})
}

func TestWithEmptyOrNilOptionsPanic(t *testing.T) {
	t.Parallel()
	runPanicTests(t, []panicTestCase{
		{
			name:     "lock dir",
			panics:   true,
			panicMsg: "testns: lock directory must not be empty",
			fn:       func() { testns.WithLockDir("") },
		},
		{
			name:     "filesystem store",
			panics:   true,
			panicMsg: "testns: filesystem store directory must not be empty",
			fn:       func() { testns.WithFilesystemStore("") },
		},
		{
			name:     "sqlite store",
			panics:   true,
			panicMsg: "testns: sqlite store path must not be empty",
			fn:       func() { testns.WithSQLiteStore("") },
		},
		{
			name:     "redis store",
			panics:   true,
			panicMsg: "testns: redis address must not be empty",
			fn:       func() { testns.WithRedisStore(testns.RedisOptions{}) },
		},
		{
			name:     "custom store",
			panics:   true,
			panicMsg: "testns: store provider must not be nil",
			fn:       func() { testns.WithStore(nil) },
		},
		{
			name:     "id generator",
			panics:   true,
			panicMsg: "testns: id generator must not be nil",
			fn:       func() { testns.WithIDGenerator(nil) },
		},
	})
}

func TestOptionApplicationDefaults(t *testing.T) {
	t.Parallel()

	snap := testns.ApplyOptionsForTesting()

	want := testns.ConfigSnapshot{
		Alias:            testns.DefaultAlias,
		TempRoot:         testns.DefaultTempRoot,
		LockDir:          filepath.Join(os.TempDir(), testns.DefaultLockDirName),
		RetryDelay:       testns.DefaultRetryDelay,
		PurgeConcurrency: testns.DefaultPurgeConcurrency,
		HasIDGenerator:   true,
		StoreBackend:     "filesystem",
		StoreDir:         filepath.Join(os.TempDir(), testns.DefaultStoreDirName),
	}
	if snap != want {
		t.Errorf("defaults = %+v, want %+v", snap, want)
	}
}

func TestOptionApplicationOverrides(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		opts  []testns.Option
		check func(t *testing.T, s testns.ConfigSnapshot)
	}{
		"scalars": {
			opts: []testns.Option{
				testns.WithAlias("ci"),
				testns.WithTempRoot("/ci/tmp"),
				testns.WithLockDir("/var/lock/ci"),
				testns.WithRetryDelay(time.Second),
				testns.WithPurgeOrphans(),
				testns.WithPurgeConcurrency(8),
			},
			check: func(t *testing.T, s testns.ConfigSnapshot) {
				if s.Alias != "ci" || s.TempRoot != "/ci/tmp" || s.LockDir != "/var/lock/ci" {
					t.Errorf("names not applied: %+v", s)
				}
				if s.RetryDelay != time.Second || !s.PurgeOrphans || s.PurgeConcurrency != 8 {
					t.Errorf("tuning not applied: %+v", s)
				}
			},
		},
		"sqlite store": {
			opts: []testns.Option{testns.WithSQLiteStore("/tmp/ns.db")},
			check: func(t *testing.T, s testns.ConfigSnapshot) {
				if s.StoreBackend != "sqlite" || s.StorePath != "/tmp/ns.db" {
					t.Errorf("store = %s %q, want sqlite /tmp/ns.db", s.StoreBackend, s.StorePath)
				}
			},
		},
		"redis store": {
			opts: []testns.Option{testns.WithRedisStore(testns.RedisOptions{Address: "localhost:6379"})},
			check: func(t *testing.T, s testns.ConfigSnapshot) {
				if s.StoreBackend != "redis" || s.RedisAddress != "localhost:6379" {
					t.Errorf("store = %s %q, want redis localhost:6379", s.StoreBackend, s.RedisAddress)
				}
			},
		},
		"memory store": {
			opts: []testns.Option{testns.WithInMemoryStore()},
			check: func(t *testing.T, s testns.ConfigSnapshot) {
				if s.StoreBackend != "memory" {
					t.Errorf("store = %s, want memory", s.StoreBackend)
				}
			},
		},
		"custom store": {
			opts: []testns.Option{testns.WithStore(memstore.New())},
			check: func(t *testing.T, s testns.ConfigSnapshot) {
				if s.StoreBackend != "custom" || !s.HasCustomStore {
					t.Errorf("store = %s, want custom", s.StoreBackend)
				}
			},
		},
		"last store option wins": {
			opts: []testns.Option{testns.WithSQLiteStore("/tmp/ns.db"), testns.WithFilesystemStore("/tmp/tree")},
			check: func(t *testing.T, s testns.ConfigSnapshot) {
				if s.StoreBackend != "filesystem" || s.StoreDir != "/tmp/tree" || s.StorePath != "" {
					t.Errorf("store = %+v, want filesystem /tmp/tree only", s)
				}
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			tc.check(t, testns.ApplyOptionsForTesting(tc.opts...))
		})
	}
}
