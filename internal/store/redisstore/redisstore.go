// Package redisstore implements store.Provider on a Redis server with
// github.com/redis/go-redis/v9.
//
// All state lives under a key prefix: a set of key paths, a hash of values,
// and a hash of alias bindings. HSETNX makes Mount race-free across the
// processes sharing one server.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/giantswarm/testns/internal/keypath"
	"github.com/giantswarm/testns/internal/store"
)

// Compile-time check that Store implements store.Provider.
var _ store.Provider = (*Store)(nil)

// DefaultPrefix is the Redis key prefix used when Options.Prefix is empty.
const DefaultPrefix = "testns"

// scanBatch is the COUNT hint for SSCAN.
const scanBatch = 256

// Options configures the Redis connection.
type Options struct {
	// Address is the host:port of the Redis server.
	Address string
	// Password required when connecting to the Redis server.
	Password string
	// DB to connect to.
	DB int
	// Prefix namespaces all Redis keys used by the store.
	Prefix string
}

// Store is a Redis-backed store.Provider.
type Store struct {
	client    *redis.Client
	keysKey   string
	valuesKey string
	mountsKey string
}

// New connects to Redis and verifies the connection with a PING.
func New(ctx context.Context, opts Options) (*Store, error) {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", opts.Address, store.Classify(err))
	}
	return &Store{
		client:    client,
		keysKey:   prefix + ":keys",
		valuesKey: prefix + ":values",
		mountsKey: prefix + ":mounts",
	}, nil
}

// Create implements store.Provider.
func (s *Store) Create(ctx context.Context, path string) error {
	path = keypath.Clean(path)
	if err := s.addAncestors(ctx, path); err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	added, err := s.client.SAdd(ctx, s.keysKey, path).Result()
	if err != nil {
		return fmt.Errorf("create %s: %w", path, store.Classify(err))
	}
	if added == 0 {
		return fmt.Errorf("create %s: %w", path, store.ErrExists)
	}
	return nil
}

// Exists implements store.Provider.
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, s.keysKey, keypath.Clean(path)).Result()
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, store.Classify(err))
	}
	return ok, nil
}

// ListAll implements store.Provider.
func (s *Store) ListAll(ctx context.Context, root string) ([]string, error) {
	root = keypath.Clean(root)
	if root != keypath.Separator {
		ok, err := s.Exists(ctx, root)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("list %s: %w", root, store.ErrNotFound)
		}
	}
	out, err := s.descendants(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", root, err)
	}
	return out, nil
}

// Delete implements store.Provider.
func (s *Store) Delete(ctx context.Context, path string, recursive bool) error {
	path = keypath.Clean(path)
	ok, err := s.Exists(ctx, path)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("delete %s: %w", path, store.ErrNotFound)
	}
	children, err := s.descendants(ctx, path)
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	if len(children) > 0 && !recursive {
		return fmt.Errorf("delete %s: %w", path, store.ErrNotEmpty)
	}

	members := make([]any, 0, len(children)+1)
	fields := make([]string, 0, len(children)+1)
	for _, p := range append(children, path) {
		members = append(members, p)
		fields = append(fields, p)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, s.keysKey, members...)
		pipe.HDel(ctx, s.valuesKey, fields...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, store.Classify(err))
	}
	return nil
}

// SetValue implements store.Provider.
func (s *Store) SetValue(ctx context.Context, path string, data []byte) error {
	path = keypath.Clean(path)
	if err := s.addAncestors(ctx, path); err != nil {
		return fmt.Errorf("set value %s: %w", path, err)
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, s.keysKey, path)
		pipe.HSet(ctx, s.valuesKey, path, data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set value %s: %w", path, store.Classify(err))
	}
	return nil
}

// Value implements store.Provider.
func (s *Store) Value(ctx context.Context, path string) ([]byte, error) {
	path = keypath.Clean(path)
	ok, err := s.Exists(ctx, path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("value %s: %w", path, store.ErrNotFound)
	}
	data, err := s.client.HGet(ctx, s.valuesKey, path).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("value %s: %w", path, store.Classify(err))
	}
	return data, nil
}

// Mount implements store.Provider.
func (s *Store) Mount(ctx context.Context, alias, root string) error {
	set, err := s.client.HSetNX(ctx, s.mountsKey, alias, keypath.Clean(root)).Result()
	if err != nil {
		return fmt.Errorf("mount %s: %w", alias, store.Classify(err))
	}
	if !set {
		return fmt.Errorf("mount %s: %w", alias, store.ErrAliasExists)
	}
	return nil
}

// Unmount implements store.Provider.
func (s *Store) Unmount(ctx context.Context, alias string) error {
	n, err := s.client.HDel(ctx, s.mountsKey, alias).Result()
	if err != nil {
		return fmt.Errorf("unmount %s: %w", alias, store.Classify(err))
	}
	if n == 0 {
		return fmt.Errorf("unmount %s: %w", alias, store.ErrNotMounted)
	}
	return nil
}

// Resolve implements store.Provider.
func (s *Store) Resolve(ctx context.Context, alias string) (string, error) {
	root, err := s.client.HGet(ctx, s.mountsKey, alias).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("resolve %s: %w", alias, store.ErrNotMounted)
	}
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", alias, store.Classify(err))
	}
	return root, nil
}

// Mounts implements store.Provider.
func (s *Store) Mounts(ctx context.Context) (map[string]string, error) {
	mounts, err := s.client.HGetAll(ctx, s.mountsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list mounts: %w", store.Classify(err))
	}
	return mounts, nil
}

// Close implements store.Provider.
func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close redis: %w", err)
	}
	return nil
}

// Purge deletes every Redis key used by the store.
func (s *Store) Purge(ctx context.Context) error {
	if err := s.client.Del(ctx, s.keysKey, s.valuesKey, s.mountsKey).Err(); err != nil {
		return fmt.Errorf("purge: %w", store.Classify(err))
	}
	return nil
}

func (s *Store) addAncestors(ctx context.Context, path string) error {
	var ancestors []any
	for p := keypath.Parent(path); p != keypath.Separator; p = keypath.Parent(p) {
		ancestors = append(ancestors, p)
	}
	if len(ancestors) == 0 {
		return nil
	}
	if err := s.client.SAdd(ctx, s.keysKey, ancestors...).Err(); err != nil {
		return store.Classify(err)
	}
	return nil
}

// descendants returns all key paths below root using SSCAN.
func (s *Store) descendants(ctx context.Context, root string) ([]string, error) {
	pattern := keypath.Separator + "*"
	if root != keypath.Separator {
		pattern = escapeGlob(root) + keypath.Separator + "*"
	}
	var out []string
	iter := s.client.SScan(ctx, s.keysKey, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		out = append(out, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, store.Classify(err)
	}
	return out, nil
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
