// Package types defines the shared Go types used by the repository, the
// compute engine and the HTTP layer. These are the canonical in-memory
// representations of fleet samples, separate from the storage row format.
package types
