// Package dashboard orchestrates one dashboard view per call: it reads a
// fresh snapshot from the Sample Repository, runs the compute calculators
// and decides how failures degrade.
//
// The timeline degrades to an empty mapping when the repository fails; every
// other view returns the wrapped error so the HTTP layer can answer with a
// structured error payload. Nothing is cached between calls.
//
// Tier thresholds and the liveness window live in Settings, which can be
// swapped at runtime (config hot reload) without locking the request path.
package dashboard
