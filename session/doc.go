// Package session manages ephemeral authentication sessions over the shared
// backend pair: creation with per-user concurrency limits, validation with
// device-consistency checks, per-user enumeration and revocation, and TTL
// bookkeeping that is enforced by the backend, never extended by reads.
package session
