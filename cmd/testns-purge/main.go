// Command testns-purge removes root containers left behind by test processes
// that exited without tearing down their namespace.
//
// A root container is an orphan when no live process holds its run lock, so
// the lock directory must be the one the test processes used.
//
//	testns-purge --store=fs --dir=/tmp/testns
//	testns-purge --store=sqlite --path=/var/tmp/testns.db --concurrency=8
//	testns-purge --store=redis --redis-addr=localhost:6379
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/giantswarm/testns"
)

type flags struct {
	store       string
	dir         string
	path        string
	redisAddr   string
	redisPass   string
	redisDB     int
	redisPrefix string
	tempRoot    string
	lockDir     string
	concurrency int
	verbose     bool
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var f flags
	fs := pflag.NewFlagSet("testns-purge", pflag.ContinueOnError)
	fs.StringVar(&f.store, "store", "fs", "storage backend: fs, sqlite or redis")
	fs.StringVar(&f.dir, "dir", "", "filesystem store directory (default: <tmp>/"+testns.DefaultStoreDirName+")")
	fs.StringVar(&f.path, "path", "", "sqlite database file")
	fs.StringVar(&f.redisAddr, "redis-addr", "", "redis host:port")
	fs.StringVar(&f.redisPass, "redis-password", "", "redis password")
	fs.IntVar(&f.redisDB, "redis-db", 0, "redis database number")
	fs.StringVar(&f.redisPrefix, "redis-prefix", "", "prefix of all redis keys")
	fs.StringVar(&f.tempRoot, "temp-root", testns.DefaultTempRoot, "key path root containers are provisioned under")
	fs.StringVar(&f.lockDir, "lock-dir", "", "run lock directory (default: <tmp>/"+testns.DefaultLockDirName+")")
	fs.IntVar(&f.concurrency, "concurrency", testns.DefaultPurgeConcurrency, "orphans purged in parallel")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "log at debug level")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	testns.SetLogger(logger.With("component", "testns"))

	opts, err := f.options()
	if err != nil {
		logger.Error("invalid flags", "error", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := testns.NewEnv(opts...)
	purged, purgeErr := env.PurgeOrphans(ctx)
	if err := env.Close(context.Background()); err != nil {
		logger.Warn("failed to close store", "error", err)
	}
	if purgeErr != nil {
		logger.Error("purge failed", "purged", purged, "error", purgeErr)
		return 1
	}
	fmt.Fprintf(os.Stdout, "purged %d orphaned namespace(s)\n", purged)
	return 0
}

// options converts the flags into Env options. Option constructors panic on
// invalid input, so values are checked here first.
func (f flags) options() ([]testns.Option, error) {
	if strings.Trim(f.tempRoot, "/") == "" {
		return nil, fmt.Errorf("--temp-root must name a key below the tree root, got %q", f.tempRoot)
	}
	if f.concurrency <= 0 {
		return nil, fmt.Errorf("--concurrency must be greater than 0, got %d", f.concurrency)
	}
	opts := []testns.Option{
		testns.WithTempRoot(f.tempRoot),
		testns.WithPurgeConcurrency(f.concurrency),
	}
	if f.lockDir != "" {
		opts = append(opts, testns.WithLockDir(f.lockDir))
	}

	switch f.store {
	case "fs":
		if f.dir != "" {
			opts = append(opts, testns.WithFilesystemStore(f.dir))
		}
	case "sqlite":
		if f.path == "" {
			return nil, errors.New("--path is required for the sqlite store")
		}
		opts = append(opts, testns.WithSQLiteStore(f.path))
	case "redis":
		if f.redisAddr == "" {
			return nil, errors.New("--redis-addr is required for the redis store")
		}
		opts = append(opts, testns.WithRedisStore(testns.RedisOptions{
			Address:  f.redisAddr,
			Password: f.redisPass,
			DB:       f.redisDB,
			Prefix:   f.redisPrefix,
		}))
	default:
		return nil, fmt.Errorf("unknown store %q", f.store)
	}
	return opts, nil
}
