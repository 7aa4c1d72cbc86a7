// Package token issues and verifies the HS256 access tokens that front
// session records. Signing keys are resolved through a callback on each
// operation, so key rotation in the secret store is picked up live.
package token
