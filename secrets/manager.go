package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrSigningKeyRequired is returned by Bootstrap when no signing key is
// configured. Every other credential is optional; the signing key is not.
var ErrSigningKeyRequired = errors.New("signing key is required")

// Well-known secret keys seeded by Bootstrap.
const (
	KeySigning        = "auth.signing_key"
	KeyRefreshSigning = "auth.refresh_signing_key"
	KeyDatabaseURL    = "database.url"

	emailKeyPrefix    = "email."
	oauthKeyPrefix    = "oauth."
	externalKeyPrefix = "external."
)

// Bootstrap is the credential material recognized at startup, one record per
// populated field. Only SigningKey is mandatory.
type Bootstrap struct {
	SigningKey        string
	RefreshSigningKey string
	DatabaseURL       string
	SMTPUser          string
	SMTPPassword      string

	// OAuthClientSecrets maps provider name to client secret.
	OAuthClientSecrets map[string]string
	// ExternalAPIKeys maps integration name to API key.
	ExternalAPIKeys map[string]string

	// SigningRotationDays schedules rotation for the signing-category keys;
	// zero disables it.
	SigningRotationDays int
	// APIKeyRotationDays schedules rotation for external API keys; zero
	// disables it.
	APIKeyRotationDays int
}

// Auditor receives secret lifecycle events. err is nil on success.
type Auditor interface {
	SecretEvent(ctx context.Context, event, key string, err error)
}

// Secret lifecycle event names emitted to the Auditor.
const (
	EventRotated        = "secret_rotated"
	EventRotationFailed = "secret_rotation_failed"
)

// Manager owns the SecretRecord lifecycle: it seeds secrets from
// configuration, exposes typed getters, and runs the rotation sweep.
type Manager struct {
	store   *Store
	logger  *slog.Logger
	auditor Auditor
	now     func() time.Time
}

func NewManager(store *Store, logger *slog.Logger, auditor Auditor) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:   store,
		logger:  logger.With("component", "secrets.manager"),
		auditor: auditor,
		now:     time.Now,
	}
}

// Bootstrap seeds one record per recognized credential. Existing values are
// overwritten: configuration is the source of truth at process start.
func (m *Manager) Bootstrap(ctx context.Context, b Bootstrap) error {
	if b.SigningKey == "" {
		return ErrSigningKeyRequired
	}

	type seed struct {
		key      string
		value    string
		category Category
		rotation int
	}

	seeds := []seed{
		{KeySigning, b.SigningKey, CategorySigning, b.SigningRotationDays},
	}
	if b.RefreshSigningKey != "" {
		seeds = append(seeds, seed{KeyRefreshSigning, b.RefreshSigningKey, CategorySigning, b.SigningRotationDays})
	}
	if b.DatabaseURL != "" {
		seeds = append(seeds, seed{KeyDatabaseURL, b.DatabaseURL, CategoryDatabase, 0})
	}
	if b.SMTPUser != "" {
		seeds = append(seeds, seed{emailKeyPrefix + "smtp_user", b.SMTPUser, CategoryEmail, 0})
	}
	if b.SMTPPassword != "" {
		seeds = append(seeds, seed{emailKeyPrefix + "smtp_password", b.SMTPPassword, CategoryEmail, 0})
	}
	for provider, secret := range b.OAuthClientSecrets {
		if secret == "" {
			continue
		}
		seeds = append(seeds, seed{oauthKeyPrefix + provider, secret, CategoryOAuth, 0})
	}
	for name, key := range b.ExternalAPIKeys {
		if key == "" {
			continue
		}
		seeds = append(seeds, seed{externalKeyPrefix + name, key, CategoryExternalAPI, b.APIKeyRotationDays})
	}

	for _, s := range seeds {
		opts := SetOptions{RotationIntervalDays: s.rotation}
		if err := m.store.Set(ctx, s.key, s.value, s.category, opts); err != nil {
			return fmt.Errorf("bootstrap %s: %w", s.key, err)
		}
	}

	m.logger.Info("secrets bootstrapped", "count", len(seeds))
	return nil
}

// Get returns the plaintext value for key, or ErrSecretNotFound.
func (m *Manager) Get(ctx context.Context, key string) (string, error) {
	value, found, err := m.store.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	}
	return value, nil
}

// SigningKey returns the token-signing key. Absence is a hard failure.
func (m *Manager) SigningKey(ctx context.Context) (string, error) {
	return m.Get(ctx, KeySigning)
}

// RefreshSigningKey returns the refresh-token signing key.
func (m *Manager) RefreshSigningKey(ctx context.Context) (string, error) {
	return m.Get(ctx, KeyRefreshSigning)
}

// DatabaseURL returns the database connection string.
func (m *Manager) DatabaseURL(ctx context.Context) (string, error) {
	return m.Get(ctx, KeyDatabaseURL)
}

// EmailSecret returns a mail credential by kind, e.g. "smtp_user" or
// "smtp_password".
func (m *Manager) EmailSecret(ctx context.Context, kind string) (string, error) {
	return m.Get(ctx, emailKeyPrefix+kind)
}

// OAuthSecret returns the client secret for an OAuth provider.
func (m *Manager) OAuthSecret(ctx context.Context, provider string) (string, error) {
	return m.Get(ctx, oauthKeyPrefix+provider)
}

// ExternalAPIKey returns the API key for a named external integration.
func (m *Manager) ExternalAPIKey(ctx context.Context, name string) (string, error) {
	return m.Get(ctx, externalKeyPrefix+name)
}

// Set stores or replaces a secret.
func (m *Manager) Set(ctx context.Context, key, value string, category Category, opts SetOptions) error {
	return m.store.Set(ctx, key, value, category, opts)
}

// Delete removes a secret.
func (m *Manager) Delete(ctx context.Context, key string) error {
	return m.store.Delete(ctx, key)
}

// List enumerates secret metadata, optionally filtered by category.
func (m *Manager) List(ctx context.Context, category Category) ([]Record, error) {
	return m.store.List(ctx, category)
}

// Rotate replaces one secret's value and returns the new plaintext. Callers
// are responsible for propagating the new value to dependents.
func (m *Manager) Rotate(ctx context.Context, key string) (string, error) {
	next, err := m.store.Rotate(ctx, key)
	m.emit(ctx, key, err)
	return next, err
}

// RunSweep rotates every secret whose rotation interval has elapsed. Each
// rotation runs under its own timeout, and a failure for one key never
// aborts the sweep for the others.
func (m *Manager) RunSweep(ctx context.Context, perKeyTimeout time.Duration) (rotated, failed int) {
	if perKeyTimeout <= 0 {
		perKeyTimeout = 10 * time.Second
	}

	records, err := m.store.List(ctx, "")
	if err != nil {
		m.logger.Error("rotation sweep could not list secrets", "error", err)
		return 0, 0
	}

	now := m.now()
	for _, rec := range records {
		if !rec.RotationDue(now) {
			continue
		}

		keyCtx, cancel := context.WithTimeout(ctx, perKeyTimeout)
		_, err := m.store.Rotate(keyCtx, rec.Key)
		cancel()

		m.emit(ctx, rec.Key, err)
		if err != nil {
			failed++
			m.logger.Error("secret rotation failed", "key", rec.Key, "error", err)
			continue
		}
		rotated++
		m.logger.Info("secret rotated", "key", rec.Key, "category", string(rec.Category))
	}

	m.logger.Info("rotation sweep finished", "rotated", rotated, "failed", failed)
	return rotated, failed
}

func (m *Manager) emit(ctx context.Context, key string, err error) {
	if m.auditor == nil {
		return
	}
	event := EventRotated
	if err != nil {
		event = EventRotationFailed
	}
	m.auditor.SecretEvent(ctx, event, key, err)
}
