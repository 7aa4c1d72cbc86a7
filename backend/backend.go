package backend

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable wraps any failure of the distributed backend. Callers treat
// it as a routing signal (fall back to the local store), never as a terminal
// error for the session or secret operation itself.
var ErrUnavailable = errors.New("backend unavailable")

// Backend is the key-value-with-TTL contract shared by the distributed and
// local stores. All operations are idempotent; a Get on an absent or expired
// key reports found=false, never an error.
//
// Replace is the transactional read-modify-write carrier: it rewrites an
// existing value while preserving its remaining TTL, and reports false when
// the key no longer exists. Managers use Get+Replace so that write-backs
// (for example a refreshed last-accessed timestamp) never extend the TTL
// clock set at creation.
type Backend interface {
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Replace(ctx context.Context, key string, value []byte) (bool, error)
	Delete(ctx context.Context, key string) error

	AddToSet(ctx context.Context, set, member string) error
	RemoveFromSet(ctx context.Context, set, member string) error
	SetMembers(ctx context.Context, set string) ([]string, error)
	ExpireSet(ctx context.Context, set string, ttl time.Duration) error
}
