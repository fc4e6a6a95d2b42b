// Package fileutil provides directory and file helpers for the filesystem
// store and the run lock directory.
//
// EnsureDir creates directories recursively, WithinDir checks containment
// after resolving symlinks, and WriteFileAtomic writes key values via
// temp-file-then-rename.
package fileutil
