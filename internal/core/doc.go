// Package core implements the testns namespace lifecycle engine.
//
// The Coordinator receives the host runner's Start, ScopeSetup and
// ScopeTeardown events. For the root scope it provisions a uniquely named
// root container under the shared temp root, guarded by a run lock, and
// mounts it under the configured alias; at root teardown it unmounts the
// alias and removes the container. Nested scopes record a snapshot of the
// namespace at entry and, at exit, delete everything not in that snapshot,
// deepest items first.
package core
