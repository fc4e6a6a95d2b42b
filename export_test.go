package testns

import "time"

// ResetForTesting resets the singleton env state so that the next call to
// NewEnv creates a fresh instance. This is exported only for use in test
// packages (package testns_test).
func ResetForTesting() { resetForTesting() }

// NewEnvForTesting builds a non-singleton Env so tests may run in parallel
// with distinct aliases and stores.
//
//nolint:ireturn // mirrors NewEnv
func NewEnvForTesting(opts ...Option) Env { return newEnv(opts...) }

// ConfigSnapshot holds a copy of envConfig fields for test assertions.
type ConfigSnapshot struct {
	Alias            string
	TempRoot         string
	LockDir          string
	RetryDelay       time.Duration
	PurgeOrphans     bool
	PurgeConcurrency int
	HasIDGenerator   bool
	StoreBackend     string
	StoreDir         string
	StorePath        string
	RedisAddress     string
	HasCustomStore   bool
}

// ApplyOptionsForTesting creates a default envConfig, applies the given
// options, and returns a ConfigSnapshot of the result. This tests the option
// closures directly without touching the singleton.
func ApplyOptionsForTesting(opts ...Option) ConfigSnapshot {
	cfg := defaultEnvConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return ConfigSnapshot{
		Alias:            cfg.Alias,
		TempRoot:         cfg.TempRoot,
		LockDir:          cfg.LockDir,
		RetryDelay:       cfg.RetryDelay,
		PurgeOrphans:     cfg.PurgeOrphans,
		PurgeConcurrency: cfg.PurgeConcurrency,
		HasIDGenerator:   cfg.NewID != nil,
		StoreBackend:     cfg.Store.Backend.String(),
		StoreDir:         cfg.Store.Dir,
		StorePath:        cfg.Store.Path,
		RedisAddress:     cfg.Store.Redis.Address,
		HasCustomStore:   cfg.Store.Provider != nil,
	}
}
