package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iaminawe/authvault/backend"
	"github.com/iaminawe/authvault/internal"
)

// ErrSecretNotFound is returned by typed getters and Rotate when the
// requested entry is absent or expired. For mandatory credentials this is a
// hard failure: a missing signing key must stop request authentication, not
// authenticate against an empty key.
var ErrSecretNotFound = errors.New("secret not found")

// Category tags a stored secret by the kind of credential it holds.
type Category string

const (
	CategoryDatabase    Category = "database"
	CategorySigning     Category = "signing"
	CategoryEmail       Category = "email"
	CategoryOAuth       Category = "oauth"
	CategoryExternalAPI Category = "external-api"
	CategoryEncryption  Category = "encryption"
)

// Rotation token shapes per category: signing and encryption material gets a
// wide hex token, everything else a generic url-safe random token.
const (
	keyMaterialTokenBytes   = 48 // 96 hex characters
	genericSecretTokenBytes = 32
)

// Record is the persisted form of one secret. Value holds ciphertext when
// Encrypted is true, plaintext otherwise.
type Record struct {
	Key                  string     `json:"key"`
	Value                string     `json:"value"`
	Category             Category   `json:"category"`
	Encrypted            bool       `json:"encrypted"`
	CreatedAt            time.Time  `json:"created_at"`
	ExpiresAt            *time.Time `json:"expires_at,omitempty"`
	RotationIntervalDays int        `json:"rotation_interval_days,omitempty"`
}

// RotationDue reports whether the record's rotation interval has elapsed.
func (r Record) RotationDue(now time.Time) bool {
	if r.RotationIntervalDays <= 0 {
		return false
	}
	return !now.Before(r.CreatedAt.AddDate(0, 0, r.RotationIntervalDays))
}

// SetOptions carries the optional expiry and rotation metadata of Set.
type SetOptions struct {
	ExpiresAt            *time.Time
	RotationIntervalDays int
}

const (
	secretKeyPrefix = "secret:"
	secretIndexKey  = "secrets:index"
)

// Store is the category-tagged, encrypted-at-rest key-value layer. Values
// are encrypted only in production posture so local debugging can read them
// in place. Persistence goes through the same backend selection as sessions:
// the distributed store when healthy, the in-process fallback otherwise.
type Store struct {
	backends   *backend.Selector
	box        *CipherBox
	production bool
	logger     *slog.Logger
	now        func() time.Time
}

func NewStore(backends *backend.Selector, box *CipherBox, production bool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backends:   backends,
		box:        box,
		production: production,
		logger:     logger.With("component", "secrets.store"),
		now:        time.Now,
	}
}

func storageKey(key string) string {
	return secretKeyPrefix + key
}

// Set writes a secret, encrypting the value in production posture. An
// ExpiresAt in the past deletes any existing entry instead of writing one.
func (s *Store) Set(ctx context.Context, key, value string, category Category, opts SetOptions) error {
	rec := Record{
		Key:                  key,
		Value:                value,
		Category:             category,
		CreatedAt:            s.now(),
		ExpiresAt:            opts.ExpiresAt,
		RotationIntervalDays: opts.RotationIntervalDays,
	}

	var ttl time.Duration
	if opts.ExpiresAt != nil {
		ttl = opts.ExpiresAt.Sub(s.now())
		if ttl <= 0 {
			return s.Delete(ctx, key)
		}
	}

	if s.production {
		enc, err := s.box.Encrypt(value)
		if err != nil {
			return fmt.Errorf("encrypt %s: %w", key, err)
		}
		rec.Value = enc
		rec.Encrypted = true
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}

	b := s.backends.Current()
	if err := b.Put(ctx, storageKey(key), data, ttl); err != nil {
		return err
	}
	return b.AddToSet(ctx, secretIndexKey, key)
}

// Get returns the plaintext value. Expired entries are deleted as a side
// effect and reported absent. A decryption failure is logged and reported as
// absent rather than surfaced: an unreadable secret is an unavailable one.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	rec, found, err := s.load(ctx, key)
	if err != nil || !found {
		return "", false, err
	}

	if rec.ExpiresAt != nil && !s.now().Before(*rec.ExpiresAt) {
		if err := s.Delete(ctx, key); err != nil {
			s.logger.Warn("expired secret cleanup failed", "key", key, "error", err)
		}
		return "", false, nil
	}

	if !rec.Encrypted {
		return rec.Value, true, nil
	}

	plain, err := s.box.Decrypt(rec.Value)
	if err != nil {
		s.logger.Error("secret decryption failed", "key", key, "error", err)
		return "", false, nil
	}
	return plain, true, nil
}

// Delete removes the entry and its index membership. Idempotent.
func (s *Store) Delete(ctx context.Context, key string) error {
	b := s.backends.Current()
	if err := b.Delete(ctx, storageKey(key)); err != nil {
		return err
	}
	return b.RemoveFromSet(ctx, secretIndexKey, key)
}

// List returns the metadata of stored secrets, optionally filtered by
// category. Values are blanked: enumeration is for lifecycle bookkeeping,
// not bulk plaintext access. Stale index members are pruned lazily here.
func (s *Store) List(ctx context.Context, category Category) ([]Record, error) {
	b := s.backends.Current()
	keys, err := b.SetMembers(ctx, secretIndexKey)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(keys))
	for _, key := range keys {
		rec, found, err := s.load(ctx, key)
		if err != nil {
			return nil, err
		}
		if !found {
			if err := b.RemoveFromSet(ctx, secretIndexKey, key); err != nil {
				s.logger.Warn("index prune failed", "key", key, "error", err)
			}
			continue
		}
		if rec.ExpiresAt != nil && !s.now().Before(*rec.ExpiresAt) {
			if err := s.Delete(ctx, key); err != nil {
				s.logger.Warn("expired secret cleanup failed", "key", key, "error", err)
			}
			continue
		}
		if category != "" && rec.Category != category {
			continue
		}
		rec.Value = ""
		records = append(records, rec)
	}
	return records, nil
}

// Rotate replaces the value of an existing secret with a newly generated one
// whose shape depends on category, preserving expiry and rotation metadata
// and resetting CreatedAt. The new plaintext is returned so the caller can
// propagate it to dependents.
func (s *Store) Rotate(ctx context.Context, key string) (string, error) {
	rec, found, err := s.load(ctx, key)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	}

	var next string
	switch rec.Category {
	case CategorySigning, CategoryEncryption:
		next, err = internal.NewHexToken(keyMaterialTokenBytes)
	default:
		next, err = internal.NewURLToken(genericSecretTokenBytes)
	}
	if err != nil {
		return "", fmt.Errorf("generate replacement for %s: %w", key, err)
	}

	opts := SetOptions{
		ExpiresAt:            rec.ExpiresAt,
		RotationIntervalDays: rec.RotationIntervalDays,
	}
	if err := s.Set(ctx, key, next, rec.Category, opts); err != nil {
		return "", err
	}
	return next, nil
}

// load fetches and decodes the raw record without expiry side effects.
func (s *Store) load(ctx context.Context, key string) (Record, bool, error) {
	var rec Record

	data, found, err := s.backends.Current().Get(ctx, storageKey(key))
	if err != nil || !found {
		return rec, false, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Error("corrupt secret record", "key", key, "error", err)
		return rec, false, nil
	}
	return rec, true, nil
}
