// Package secrets stores long-lived credential material (signing keys,
// connection strings, third-party API keys) encrypted at rest, tagged by
// category, with per-entry expiry and scheduled rotation.
//
// The Store persists through the shared backend selection (distributed when
// healthy, in-process fallback otherwise) and encrypts values with the
// process-wide CipherBox whenever the process runs in production posture.
// The Manager seeds records from configuration at startup, exposes typed
// getters that fail hard on absence, and rotates due secrets in a daily
// sweep driven by the Sweeper.
package secrets
