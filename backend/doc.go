// Package backend provides the key-value-with-TTL storage contract shared by
// the session and secret stores, with two implementations: a Redis-backed
// distributed store that is authoritative when reachable, and an in-process
// fallback used only while the distributed store is unhealthy.
package backend
