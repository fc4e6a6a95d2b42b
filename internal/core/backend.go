package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/giantswarm/testns/internal/store"
	"github.com/giantswarm/testns/internal/store/fsstore"
	"github.com/giantswarm/testns/internal/store/memstore"
	"github.com/giantswarm/testns/internal/store/redisstore"
	"github.com/giantswarm/testns/internal/store/sqlitestore"
)

// Provider is the storage provider contract, re-exported so the public API
// imports only from core.
type Provider = store.Provider

// Backend selects the storage provider an Env opens.
type Backend int

// Supported backends.
const (
	BackendFilesystem Backend = iota // Zero value; directories under StoreConfig.Dir
	BackendSQLite                    // database file at StoreConfig.Path
	BackendRedis                     // server at StoreConfig.Redis.Address
	BackendMemory                    // process-local, for tests
	BackendCustom                    // caller-supplied StoreConfig.Provider
)

// String returns the backend name.
func (b Backend) String() string {
	switch b {
	case BackendFilesystem:
		return "filesystem"
	case BackendSQLite:
		return "sqlite"
	case BackendRedis:
		return "redis"
	case BackendMemory:
		return "memory"
	case BackendCustom:
		return "custom"
	default:
		return fmt.Sprintf("Backend(%d)", int(b))
	}
}

// RedisOptions configures the Redis backend.
type RedisOptions = redisstore.Options

// StoreConfig describes which storage provider to open and how.
type StoreConfig struct {
	Backend Backend

	// Dir is the base directory of the filesystem backend.
	Dir string

	// Path is the database file of the SQLite backend.
	Path string

	// Redis configures the Redis backend.
	Redis RedisOptions

	// Provider is used as is by the custom backend.
	Provider Provider
}

// Validate checks that the fields the selected backend needs are set.
func (c StoreConfig) Validate() error {
	switch c.Backend {
	case BackendFilesystem:
		if c.Dir == "" {
			return errors.New("filesystem store directory must not be empty")
		}
	case BackendSQLite:
		if c.Path == "" {
			return errors.New("sqlite store path must not be empty")
		}
	case BackendRedis:
		if c.Redis.Address == "" {
			return errors.New("redis store address must not be empty")
		}
	case BackendMemory:
	case BackendCustom:
		if c.Provider == nil {
			return errors.New("custom store provider must not be nil")
		}
	default:
		return fmt.Errorf("unknown store backend %s", c.Backend)
	}
	return nil
}

// OpenStore opens the provider described by c.
func OpenStore(ctx context.Context, c StoreConfig) (Provider, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store config: %w", err)
	}

	var (
		p   Provider
		err error
	)
	switch c.Backend {
	case BackendFilesystem:
		p, err = fsstore.New(c.Dir)
	case BackendSQLite:
		p, err = sqlitestore.Open(ctx, c.Path, Logger())
	case BackendRedis:
		p, err = redisstore.New(ctx, c.Redis)
	case BackendMemory:
		p = memstore.New()
	case BackendCustom:
		p = c.Provider
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", c.Backend, err)
	}
	Logger().Debug("store opened", "backend", c.Backend.String())
	return p, nil
}
