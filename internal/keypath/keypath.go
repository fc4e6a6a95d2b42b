// Package keypath implements the slash-separated key paths used to address
// items in a namespace, independent of the storage provider behind them.
//
// Every key path is absolute ("/testns/<id>/a/b"). Providers translate key
// paths into their own storage layout.
package keypath

import (
	"path"
	"slices"
	"strings"
)

// Separator separates the segments of a key path.
const Separator = "/"

// Clean returns the canonical form of p: absolute, no trailing separator, no
// "." or ".." segments and no repeated separators.
func Clean(p string) string {
	return path.Clean(Separator + p)
}

// Join joins elem onto base and returns the cleaned result.
func Join(base string, elem ...string) string {
	return Clean(path.Join(append([]string{base}, elem...)...))
}

// Depth returns the number of segments in p. The root "/" has depth 0.
func Depth(p string) int {
	p = Clean(p)
	if p == Separator {
		return 0
	}
	return strings.Count(p, Separator)
}

// Base returns the last segment of p.
func Base(p string) string {
	return path.Base(Clean(p))
}

// Parent returns the parent key path of p. The parent of "/" is "/".
func Parent(p string) string {
	return path.Dir(Clean(p))
}

// Within reports whether p equals root or lies below it.
func Within(p, root string) bool {
	p, root = Clean(p), Clean(root)
	if p == root || root == Separator {
		return true
	}
	return strings.HasPrefix(p, root+Separator)
}

// Rel returns p relative to root, or false when p is not within root.
func Rel(root, p string) (string, bool) {
	if !Within(p, root) {
		return "", false
	}
	rel := strings.TrimPrefix(Clean(p), Clean(root))
	return strings.TrimPrefix(rel, Separator), true
}

// SortDeepestFirst orders paths so that every path comes before all of its
// ancestors: by depth descending, then lexically descending for equal depth.
// The ordering does not depend on how separators compare to other characters.
func SortDeepestFirst(paths []string) {
	slices.SortFunc(paths, func(a, b string) int {
		if da, db := Depth(a), Depth(b); da != db {
			return db - da
		}
		return strings.Compare(b, a)
	})
}
