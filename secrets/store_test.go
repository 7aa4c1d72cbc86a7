package secrets

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iaminawe/authvault/backend"
)

func newTestStore(t *testing.T, production bool) *Store {
	t.Helper()

	box, err := NewCipherBox(validHexKey, production)
	require.NoError(t, err)

	sel := backend.NewSelector(nil, backend.NewMemory())
	return NewStore(sel, box, production, slog.Default())
}

func TestStoreSetGetPlaintextOutsideProduction(t *testing.T) {
	s := newTestStore(t, false)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "database.url", "postgres://localhost/garage", CategoryDatabase, SetOptions{}))

	rec, found, err := s.load(ctx, "database.url")
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, rec.Encrypted)
	assert.Equal(t, "postgres://localhost/garage", rec.Value)

	value, found, err := s.Get(ctx, "database.url")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "postgres://localhost/garage", value)
}

func TestStoreEncryptsInProduction(t *testing.T) {
	s := newTestStore(t, true)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "auth.signing_key", "a-very-long-signing-key-material", CategorySigning, SetOptions{}))

	rec, found, err := s.load(ctx, "auth.signing_key")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, rec.Encrypted)
	assert.NotEqual(t, "a-very-long-signing-key-material", rec.Value)

	value, found, err := s.Get(ctx, "auth.signing_key")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "a-very-long-signing-key-material", value)
}

func TestStoreGetAbsent(t *testing.T) {
	s := newTestStore(t, false)

	_, found, err := s.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStoreExpiredEntryDeletedOnRead(t *testing.T) {
	s := newTestStore(t, false)
	ctx := context.Background()

	expiresAt := time.Now().Add(time.Hour)
	require.NoError(t, s.Set(ctx, "api", "key", CategoryExternalAPI, SetOptions{ExpiresAt: &expiresAt}))

	// Warp the store clock past the logical expiry; the backend entry is
	// still live, so the lazy cleanup path must fire.
	s.now = func() time.Time { return expiresAt.Add(time.Minute) }

	_, found, err := s.Get(ctx, "api")
	require.NoError(t, err)
	assert.False(t, found)

	// Entry and index membership are gone.
	_, found, err = s.load(ctx, "api")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStoreSetWithPastExpiryDeletes(t *testing.T) {
	s := newTestStore(t, false)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v", CategoryDatabase, SetOptions{}))

	past := time.Now().Add(-time.Minute)
	require.NoError(t, s.Set(ctx, "k", "v2", CategoryDatabase, SetOptions{ExpiresAt: &past}))

	_, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStoreListFiltersAndBlanksValues(t *testing.T) {
	s := newTestStore(t, false)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "auth.signing_key", "sk", CategorySigning, SetOptions{RotationIntervalDays: 90}))
	require.NoError(t, s.Set(ctx, "database.url", "db", CategoryDatabase, SetOptions{}))
	require.NoError(t, s.Set(ctx, "oauth.google", "cs", CategoryOAuth, SetOptions{}))

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
	for _, rec := range all {
		assert.Empty(t, rec.Value, "List must not expose values")
	}

	signing, err := s.List(ctx, CategorySigning)
	require.NoError(t, err)
	require.Len(t, signing, 1)
	assert.Equal(t, "auth.signing_key", signing[0].Key)
	assert.Equal(t, 90, signing[0].RotationIntervalDays)
}

func TestStoreListPrunesStaleIndex(t *testing.T) {
	s := newTestStore(t, false)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "gone", "v", CategoryDatabase, SetOptions{}))

	// Remove the record directly, leaving the index member dangling.
	require.NoError(t, s.backends.Current().Delete(ctx, storageKey("gone")))

	records, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, records)

	members, err := s.backends.Current().SetMembers(ctx, secretIndexKey)
	require.NoError(t, err)
	assert.Empty(t, members, "stale index member must be pruned")
}

func TestStoreRotateShapes(t *testing.T) {
	s := newTestStore(t, false)
	ctx := context.Background()

	tests := []struct {
		key      string
		category Category
		check    func(t *testing.T, next string)
	}{
		{
			key:      "auth.signing_key",
			category: CategorySigning,
			check: func(t *testing.T, next string) {
				assert.GreaterOrEqual(t, len(next), 64, "signing rotation must produce a wide token")
				assert.Regexp(t, "^[0-9a-f]+$", next)
			},
		},
		{
			key:      "vault.master",
			category: CategoryEncryption,
			check: func(t *testing.T, next string) {
				assert.GreaterOrEqual(t, len(next), 64)
				assert.Regexp(t, "^[0-9a-f]+$", next)
			},
		},
		{
			key:      "external.stripe",
			category: CategoryExternalAPI,
			check: func(t *testing.T, next string) {
				assert.NotEmpty(t, next)
				assert.Less(t, len(next), 64, "generic rotation uses the compact token shape")
			},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			require.NoError(t, s.Set(ctx, tt.key, "original-value", tt.category, SetOptions{RotationIntervalDays: 30}))

			next, err := s.Rotate(ctx, tt.key)
			require.NoError(t, err)
			assert.NotEqual(t, "original-value", next)
			tt.check(t, next)

			// The stored value now resolves to the new plaintext and
			// rotation metadata is preserved.
			value, found, err := s.Get(ctx, tt.key)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, next, value)

			rec, found, err := s.load(ctx, tt.key)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, 30, rec.RotationIntervalDays)
		})
	}
}

func TestStoreRotateUnknownKey(t *testing.T) {
	s := newTestStore(t, false)

	_, err := s.Rotate(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestStoreDeleteIdempotent(t *testing.T) {
	s := newTestStore(t, false)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v", CategoryDatabase, SetOptions{}))
	require.NoError(t, s.Delete(ctx, "k"))
	require.NoError(t, s.Delete(ctx, "k"))

	_, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRecordRotationDue(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	rec := Record{CreatedAt: now.AddDate(0, 0, -31), RotationIntervalDays: 30}
	assert.True(t, rec.RotationDue(now))

	rec = Record{CreatedAt: now.AddDate(0, 0, -29), RotationIntervalDays: 30}
	assert.False(t, rec.RotationDue(now))

	rec = Record{CreatedAt: now.AddDate(0, 0, -365)}
	assert.False(t, rec.RotationDue(now), "zero interval disables rotation")
}
