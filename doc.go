// Package authvault provides the session and secret lifecycle core for a
// web backend: Redis-backed sessions with an in-process fallback, an
// encrypted-at-rest secret store with scheduled rotation, secret strength
// gating at startup, and HS256 access tokens signed with managed keys.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authvault is the public surface. It exposes [Engine], [Builder],
// [Config], the audit sinks, and the metrics snapshot types. The working
// parts live in subpackages: backend (storage selection and fallback),
// session (record lifecycle and validation), secrets (cipher, store,
// rotation), strength (entropy scoring), and token (access tokens).
//
// Backend selection is per call: when the distributed backend is healthy
// it serves all traffic, otherwise the local in-process backend does.
// State written to the local backend during an outage is not migrated
// back after recovery.
package authvault
