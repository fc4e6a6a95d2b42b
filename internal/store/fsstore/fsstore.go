// Package fsstore implements store.Provider on top of a local directory.
//
// Keys are directories below <base>/tree and an alias is a symlink
// <base>/mnt/<alias> pointing at the bound key directory, so test code may
// also address namespace contents directly through the filesystem using the
// alias path. A key without children that carries a value is a regular file.
// Once such a key gets children it becomes a directory and its value moves
// into a file named ValueFileName inside it. Key segments must not be named
// ValueFileName.
package fsstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/giantswarm/testns/internal/fileutil"
	"github.com/giantswarm/testns/internal/keypath"
	"github.com/giantswarm/testns/internal/store"
)

const (
	treeDirName  = "tree"
	mountDirName = "mnt"

	// ValueFileName holds the value of a key that also has children.
	ValueFileName = ".testns-value"
)

// Compile-time interface checks.
var (
	_ store.Provider = (*Store)(nil)
	_ store.Locator  = (*Store)(nil)
)

// Store is a filesystem-backed store.Provider.
type Store struct {
	base     string
	treeDir  string
	mountDir string
}

// New returns a Store rooted at baseDir, creating its directories if needed.
func New(baseDir string) (*Store, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base directory %s: %w", baseDir, err)
	}
	s := &Store{
		base:     abs,
		treeDir:  filepath.Join(abs, treeDirName),
		mountDir: filepath.Join(abs, mountDirName),
	}
	for _, dir := range []string{s.treeDir, s.mountDir} {
		if err := fileutil.EnsureDir(dir); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// AliasDir returns the filesystem path of alias, whether mounted or not.
func (s *Store) AliasDir(alias string) string {
	return filepath.Join(s.mountDir, alias)
}

// Dir returns the filesystem directory backing the key at path.
func (s *Store) Dir(path string) string {
	return filepath.Join(s.treeDir, filepath.FromSlash(keypath.Clean(path)))
}

// key converts a filesystem path below the tree directory into a key path.
func (s *Store) key(fsPath string) (string, bool) {
	rel, err := filepath.Rel(s.treeDir, fsPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return keypath.Clean(filepath.ToSlash(rel)), true
}

// Create implements store.Provider.
func (s *Store) Create(_ context.Context, path string) error {
	dir := s.Dir(path)
	if err := s.ensureKeyDir(keypath.Parent(keypath.Clean(path))); err != nil {
		return fmt.Errorf("create %s: %w", path, store.Classify(err))
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("create %s: %w", path, store.ErrExists)
		}
		return fmt.Errorf("create %s: %w", path, store.Classify(err))
	}
	return nil
}

// Exists implements store.Provider.
func (s *Store) Exists(_ context.Context, path string) (bool, error) {
	if reserved(keypath.Base(path)) {
		return false, nil
	}
	if _, err := os.Lstat(s.Dir(path)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", path, store.Classify(err))
	}
	return true, nil
}

// ListAll implements store.Provider.
func (s *Store) ListAll(_ context.Context, root string) ([]string, error) {
	rootDir := s.Dir(root)
	var out []string
	err := filepath.WalkDir(rootDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == rootDir || reserved(d.Name()) {
			return nil
		}
		if k, ok := s.key(p); ok {
			out = append(out, k)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("list %s: %w", root, store.ErrNotFound)
		}
		return nil, fmt.Errorf("list %s: %w", root, store.Classify(err))
	}
	return out, nil
}

// Delete implements store.Provider.
func (s *Store) Delete(_ context.Context, path string, recursive bool) error {
	dir := s.Dir(path)
	info, err := os.Lstat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("delete %s: %w", path, store.ErrNotFound)
		}
		return fmt.Errorf("delete %s: %w", path, store.Classify(err))
	}
	if info.IsDir() && !recursive {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("delete %s: %w", path, store.Classify(err))
		}
		for _, e := range entries {
			if !reserved(e.Name()) {
				return fmt.Errorf("delete %s: %w", path, store.ErrNotEmpty)
			}
		}
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete %s: %w", path, store.Classify(err))
	}
	return nil
}

// SetValue implements store.Provider.
func (s *Store) SetValue(_ context.Context, path string, data []byte) error {
	dst := s.Dir(path)
	if info, err := os.Lstat(dst); err == nil && info.IsDir() {
		dst = filepath.Join(dst, ValueFileName)
	} else if err := s.ensureKeyDir(keypath.Parent(keypath.Clean(path))); err != nil {
		return fmt.Errorf("set value %s: %w", path, store.Classify(err))
	}
	if err := fileutil.WriteFileAtomic(dst, data, 0o644); err != nil {
		return fmt.Errorf("set value %s: %w", path, store.Classify(err))
	}
	return nil
}

// Value implements store.Provider.
func (s *Store) Value(_ context.Context, path string) ([]byte, error) {
	file := s.Dir(path)
	info, err := os.Lstat(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("value %s: %w", path, store.ErrNotFound)
		}
		return nil, fmt.Errorf("value %s: %w", path, store.Classify(err))
	}
	if info.IsDir() {
		file = filepath.Join(file, ValueFileName)
	}
	data, err := os.ReadFile(file) //nolint:gosec // G304: path is confined to the tree directory
	if info.IsDir() && errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("value %s: %w", path, store.Classify(err))
	}
	return data, nil
}

// Mount implements store.Provider. Creating the symlink is atomic, so of
// several concurrent mounts of the same alias exactly one succeeds.
func (s *Store) Mount(_ context.Context, alias, root string) error {
	if err := validAlias(alias); err != nil {
		return err
	}
	if err := os.Symlink(s.Dir(root), s.AliasDir(alias)); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("mount %s: %w", alias, store.ErrAliasExists)
		}
		return fmt.Errorf("mount %s: %w", alias, store.Classify(err))
	}
	return nil
}

// Unmount implements store.Provider.
func (s *Store) Unmount(_ context.Context, alias string) error {
	if err := validAlias(alias); err != nil {
		return err
	}
	link := s.AliasDir(alias)
	info, err := os.Lstat(link)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("unmount %s: %w", alias, store.ErrNotMounted)
		}
		return fmt.Errorf("unmount %s: %w", alias, store.Classify(err))
	}
	if info.Mode()&fs.ModeSymlink == 0 {
		return fmt.Errorf("unmount %s: %s is not an alias symlink", alias, link)
	}
	if err := os.Remove(link); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("unmount %s: %w", alias, store.ErrNotMounted)
		}
		return fmt.Errorf("unmount %s: %w", alias, store.Classify(err))
	}
	return nil
}

// Resolve implements store.Provider.
func (s *Store) Resolve(_ context.Context, alias string) (string, error) {
	if err := validAlias(alias); err != nil {
		return "", err
	}
	target, err := os.Readlink(s.AliasDir(alias))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("resolve %s: %w", alias, store.ErrNotMounted)
		}
		return "", fmt.Errorf("resolve %s: %w", alias, store.Classify(err))
	}
	root, ok := s.key(target)
	if !ok {
		return "", fmt.Errorf("resolve %s: target %s lies outside %s", alias, target, s.treeDir)
	}
	return root, nil
}

// Mounts implements store.Provider.
func (s *Store) Mounts(ctx context.Context) (map[string]string, error) {
	entries, err := os.ReadDir(s.mountDir)
	if err != nil {
		return nil, fmt.Errorf("list mounts: %w", store.Classify(err))
	}
	mounts := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.Type()&fs.ModeSymlink == 0 {
			continue
		}
		root, err := s.Resolve(ctx, e.Name())
		if err != nil {
			if errors.Is(err, store.ErrNotMounted) {
				continue
			}
			return nil, err
		}
		mounts[e.Name()] = root
	}
	return mounts, nil
}

// Location implements store.Locator using the process working directory.
// Working directories entered through an alias symlink resolve to the bound
// key path.
func (s *Store) Location() (string, bool) {
	wd, err := os.Getwd()
	if err != nil || !fileutil.WithinDir(wd, s.treeDir) {
		return "", false
	}
	resolved, err := filepath.EvalSymlinks(wd)
	if err != nil {
		return "", false
	}
	tree, err := filepath.EvalSymlinks(s.treeDir)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(tree, resolved)
	if err != nil {
		return "", false
	}
	return keypath.Clean(filepath.ToSlash(rel)), true
}

// Close implements store.Provider. The filesystem store holds no resources.
func (s *Store) Close() error {
	return nil
}

// ensureKeyDir makes sure every key from the tree root down to path is a
// directory, creating missing ones and turning valued leaf files into
// directories that keep their value in ValueFileName.
func (s *Store) ensureKeyDir(path string) error {
	if path == keypath.Separator {
		return nil
	}
	dir := s.treeDir
	for _, seg := range strings.Split(strings.TrimPrefix(path, keypath.Separator), keypath.Separator) {
		dir = filepath.Join(dir, seg)
		if err := s.ensureDir(dir); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ensureDir(dir string) error {
	info, err := os.Lstat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := os.Mkdir(dir, 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
			return err
		}
		return nil
	case err != nil:
		return err
	case info.IsDir():
		return nil
	default:
		return promote(dir)
	}
}

// promote turns the valued leaf file at dir into a directory holding the
// value in ValueFileName.
func promote(dir string) error {
	tmp := filepath.Join(filepath.Dir(dir), fileutil.TempPrefix+"promote-"+filepath.Base(dir))
	if err := os.Rename(dir, tmp); err != nil {
		return fmt.Errorf("promote %s: %w", dir, err)
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		if rbErr := os.Rename(tmp, dir); rbErr != nil {
			return errors.Join(fmt.Errorf("promote %s: %w", dir, err), rbErr)
		}
		return fmt.Errorf("promote %s: %w", dir, err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, ValueFileName)); err != nil {
		return fmt.Errorf("promote %s: %w", dir, err)
	}
	return nil
}

// reserved reports whether name is bookkeeping of the store rather than a key.
func reserved(name string) bool {
	return name == ValueFileName || fileutil.IsTemp(name)
}

// validAlias rejects aliases that would escape the mount directory.
func validAlias(alias string) error {
	if alias == "" || alias == "." || alias == ".." || strings.ContainsAny(alias, `/\`) {
		return fmt.Errorf("invalid alias %q", alias)
	}
	return nil
}
