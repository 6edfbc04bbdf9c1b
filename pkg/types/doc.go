// Package types defines the shared data model for the install engine:
// task descriptors, add-on kinds, verification manifests, task control
// flags, and per-task/batch results. Everything here is either immutable
// after creation or safe for concurrent use; the only concurrently
// mutated state in the engine lives in pkg/progress.
package types
