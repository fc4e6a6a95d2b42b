// Package sqlitestore implements store.Provider on a SQLite database using
// the pure-Go modernc.org/sqlite driver.
//
// The key tree is a single table of key paths, in the spirit of kine's
// "/registry/..." key rows, and alias bindings live in a second table. Several
// processes may share one database file; SQLite serializes their writes.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/giantswarm/testns/internal/fileutil"
	"github.com/giantswarm/testns/internal/keypath"
	"github.com/giantswarm/testns/internal/store"
)

// Compile-time check that Store implements store.Provider.
var _ store.Provider = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS testns_keys (
	path  TEXT PRIMARY KEY,
	value BLOB
);
CREATE TABLE IF NOT EXISTS testns_mounts (
	alias TEXT PRIMARY KEY,
	root  TEXT NOT NULL
);
`

// Store is a SQLite-backed store.Provider.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens (creating if necessary) the SQLite database at path and makes
// sure the schema exists.
func Open(ctx context.Context, path string, log *slog.Logger) (*Store, error) {
	if err := fileutil.EnsureDirForFile(path); err != nil {
		return nil, err
	}
	// WAL and a generous busy timeout let several test processes share the
	// database; synchronous(NORMAL) is enough for ephemeral test data.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_pragma=synchronous(NORMAL)",
		path,
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection serializes this process's transactions and keeps the
	// busy handling inside SQLite.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Warn("sqlitestore: close after schema failure", "error", closeErr)
		}
		return nil, fmt.Errorf("create schema in %s: %w", path, classify(err))
	}
	return &Store{db: db, log: log}, nil
}

// Create implements store.Provider.
func (s *Store) Create(ctx context.Context, path string) error {
	path = keypath.Clean(path)
	return s.inTx(ctx, "create "+path, func(tx *sql.Tx) error {
		if err := insertAncestors(ctx, tx, path); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO testns_keys (path) VALUES (?) ON CONFLICT(path) DO NOTHING`, path)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return store.ErrExists
		}
		return nil
	})
}

// Exists implements store.Provider.
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	ok, err := exists(ctx, s.db, keypath.Clean(path))
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, classify(err))
	}
	return ok, nil
}

// ListAll implements store.Provider.
func (s *Store) ListAll(ctx context.Context, root string) ([]string, error) {
	root = keypath.Clean(root)
	if root != keypath.Separator {
		ok, err := exists(ctx, s.db, root)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", root, classify(err))
		}
		if !ok {
			return nil, fmt.Errorf("list %s: %w", root, store.ErrNotFound)
		}
	}

	prefix, n := descendantsPrefix(root)
	rows, err := s.db.QueryContext(ctx,
		`SELECT path FROM testns_keys WHERE substr(path, 1, ?) = ?`, n, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", root, classify(err))
	}
	defer rows.Close() //nolint:errcheck // rows.Err() below catches read errors; Close error is redundant

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan key row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate key rows: %w", classify(err))
	}
	return out, nil
}

// Delete implements store.Provider.
func (s *Store) Delete(ctx context.Context, path string, recursive bool) error {
	path = keypath.Clean(path)
	return s.inTx(ctx, "delete "+path, func(tx *sql.Tx) error {
		ok, err := exists(ctx, tx, path)
		if err != nil {
			return err
		}
		if !ok {
			return store.ErrNotFound
		}
		prefix, n := descendantsPrefix(path)
		if !recursive {
			var children int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM testns_keys WHERE substr(path, 1, ?) = ?`,
				n, prefix).Scan(&children); err != nil {
				return err
			}
			if children > 0 {
				return store.ErrNotEmpty
			}
		}
		_, err = tx.ExecContext(ctx,
			`DELETE FROM testns_keys WHERE path = ? OR substr(path, 1, ?) = ?`,
			path, n, prefix)
		return err
	})
}

// SetValue implements store.Provider.
func (s *Store) SetValue(ctx context.Context, path string, data []byte) error {
	path = keypath.Clean(path)
	if data == nil {
		data = []byte{}
	}
	return s.inTx(ctx, "set value "+path, func(tx *sql.Tx) error {
		if err := insertAncestors(ctx, tx, path); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO testns_keys (path, value) VALUES (?, ?)
			 ON CONFLICT(path) DO UPDATE SET value = excluded.value`, path, data)
		return err
	})
}

// Value implements store.Provider.
func (s *Store) Value(ctx context.Context, path string) ([]byte, error) {
	path = keypath.Clean(path)
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM testns_keys WHERE path = ?`, path).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("value %s: %w", path, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("value %s: %w", path, classify(err))
	}
	return data, nil
}

// Mount implements store.Provider.
func (s *Store) Mount(ctx context.Context, alias, root string) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO testns_mounts (alias, root) VALUES (?, ?) ON CONFLICT(alias) DO NOTHING`,
		alias, keypath.Clean(root))
	if err != nil {
		return fmt.Errorf("mount %s: %w", alias, classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mount %s: %w", alias, classify(err))
	}
	if n == 0 {
		return fmt.Errorf("mount %s: %w", alias, store.ErrAliasExists)
	}
	return nil
}

// Unmount implements store.Provider.
func (s *Store) Unmount(ctx context.Context, alias string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM testns_mounts WHERE alias = ?`, alias)
	if err != nil {
		return fmt.Errorf("unmount %s: %w", alias, classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unmount %s: %w", alias, classify(err))
	}
	if n == 0 {
		return fmt.Errorf("unmount %s: %w", alias, store.ErrNotMounted)
	}
	return nil
}

// Resolve implements store.Provider.
func (s *Store) Resolve(ctx context.Context, alias string) (string, error) {
	var root string
	err := s.db.QueryRowContext(ctx,
		`SELECT root FROM testns_mounts WHERE alias = ?`, alias).Scan(&root)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("resolve %s: %w", alias, store.ErrNotMounted)
	}
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", alias, classify(err))
	}
	return root, nil
}

// Mounts implements store.Provider.
func (s *Store) Mounts(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT alias, root FROM testns_mounts`)
	if err != nil {
		return nil, fmt.Errorf("list mounts: %w", classify(err))
	}
	defer rows.Close() //nolint:errcheck // rows.Err() below catches read errors; Close error is redundant

	mounts := make(map[string]string)
	for rows.Next() {
		var alias, root string
		if err := rows.Scan(&alias, &root); err != nil {
			return nil, fmt.Errorf("scan mount row: %w", err)
		}
		mounts[alias] = root
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mount rows: %w", classify(err))
	}
	return mounts, nil
}

// Close implements store.Provider.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

// inTx runs fn in a transaction, wrapping any error with op and classifying
// SQLite busy conditions as transient.
func (s *Store) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, classify(err))
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if err := fn(tx); err != nil {
		return fmt.Errorf("%s: %w", op, classify(err))
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, classify(err))
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func exists(ctx context.Context, q querier, path string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM testns_keys WHERE path = ?`, path).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// insertAncestors inserts every missing proper ancestor of path.
func insertAncestors(ctx context.Context, tx *sql.Tx, path string) error {
	for p := keypath.Parent(path); p != keypath.Separator; p = keypath.Parent(p) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO testns_keys (path) VALUES (?) ON CONFLICT(path) DO NOTHING`, p); err != nil {
			return err
		}
	}
	return nil
}

// descendantsPrefix returns the key prefix shared by all descendants of root
// and its length in characters, as counted by SQLite's substr. Prefix
// comparison is exact; LIKE would fold ASCII case and treat % and _ as
// wildcards.
func descendantsPrefix(root string) (string, int) {
	prefix := root + keypath.Separator
	if root == keypath.Separator {
		prefix = keypath.Separator
	}
	return prefix, utf8.RuneCountInString(prefix)
}

// classify marks SQLite busy and locked conditions as transient.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return store.Transient(err)
		}
	}
	return store.Classify(err)
}
