// Package internal holds shared helpers that are not part of the public
// surface: random identifier and token generation, and a keyed mutex used
// to serialize per-user session creation.
package internal
