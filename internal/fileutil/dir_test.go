package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureDir(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		rel []string
	}{
		"single level": {rel: []string{"tree"}},
		"nested":       {rel: []string{"tree", "testns", "abc"}},
		"existing":     {rel: nil},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			dir := filepath.Join(append([]string{t.TempDir()}, tc.rel...)...)

			if err := EnsureDir(dir); err != nil {
				t.Fatalf("EnsureDir() error: %v", err)
			}
			info, err := os.Stat(dir)
			if err != nil {
				t.Fatalf("stat after EnsureDir: %v", err)
			}
			if !info.IsDir() {
				t.Error("expected directory, got file")
			}
		})
	}
}

func TestEnsureDirForFile(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	filePath := filepath.Join(base, "locks", "run.lock")

	if err := EnsureDirForFile(filePath); err != nil {
		t.Fatalf("EnsureDirForFile() error: %v", err)
	}
	info, err := os.Stat(filepath.Dir(filePath))
	if err != nil {
		t.Fatalf("stat parent dir: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected parent to be directory")
	}
}

func TestWithinDir(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	tree := filepath.Join(base, "tree")
	inner := filepath.Join(tree, "root", "key")
	if err := EnsureDir(inner); err != nil {
		t.Fatalf("EnsureDir() error: %v", err)
	}
	other := filepath.Join(base, "treeish")
	if err := EnsureDir(other); err != nil {
		t.Fatalf("EnsureDir() error: %v", err)
	}
	link := filepath.Join(base, "alias")
	if err := os.Symlink(filepath.Join(tree, "root"), link); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	tests := map[string]struct {
		path string
		want bool
	}{
		"same dir":         {path: tree, want: true},
		"nested":           {path: inner, want: true},
		"through symlink":  {path: filepath.Join(link, "key"), want: true},
		"sibling prefix":   {path: other, want: false},
		"parent":           {path: base, want: false},
		"missing resolves": {path: filepath.Join(tree, "missing"), want: false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if got := WithinDir(tc.path, tree); got != tc.want {
				t.Errorf("WithinDir(%q, %q) = %v, want %v", tc.path, tree, got, tc.want)
			}
		})
	}
}
