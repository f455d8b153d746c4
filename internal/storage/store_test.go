package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/unclutter/internal/common"
	"github.com/Veraticus/unclutter/internal/model"
	"github.com/Veraticus/unclutter/internal/service"
)

// clock is a settable time source shared by a store under test.
type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

type storeFactory func(t *testing.T, c *clock) service.TokenStore

func createTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	store, err := NewSQLiteStorage(memoryPath)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func backends() map[string]storeFactory {
	factories := map[string]storeFactory{
		"sqlite": func(t *testing.T, c *clock) service.TokenStore {
			t.Helper()
			store := createTestStorage(t)
			store.now = c.Now
			return store
		},
		"keyring": func(t *testing.T, c *clock) service.TokenStore {
			t.Helper()
			store, err := NewKeyringTokenStore(KeyringOptions{
				ServiceName:  "unclutter-test",
				FileDir:      t.TempDir(),
				FilePassword: "test",
				Backends:     []keyring.BackendType{keyring.FileBackend},
			})
			require.NoError(t, err)
			store.now = c.Now
			return store
		},
	}

	// Redis needs a live server; CI sets UNCLUTTER_TEST_REDIS_ADDR when one is available.
	if addr := os.Getenv("UNCLUTTER_TEST_REDIS_ADDR"); addr != "" {
		factories["redis"] = func(t *testing.T, c *clock) service.TokenStore {
			t.Helper()
			store, err := NewRedisTokenStore(context.Background(), RedisOptions{
				Addr:   addr,
				Prefix: "unclutter-test:" + t.Name() + ":",
			})
			require.NoError(t, err)
			store.now = c.Now
			t.Cleanup(func() { _ = store.Close() })
			return store
		}
	}

	return factories
}

func testCredential(id string, expiresAt time.Time) *model.Credential {
	return &model.Credential{
		ID:           id,
		Email:        "student@mcmaster.ca",
		AccessToken:  "access-" + id,
		RefreshToken: "refresh-" + id,
		TokenType:    "Bearer",
		TokenExpiry:  expiresAt.Add(-time.Hour),
		ExpiresAt:    expiresAt,
	}
}

func TestTokenStores(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			t.Run("put then get", func(t *testing.T) {
				c := &clock{now: time.Now()}
				store := factory(t, c)
				ctx := context.Background()

				cred := testCredential("abc", c.now.Add(time.Hour))
				require.NoError(t, store.Put(ctx, cred))

				got, err := store.Get(ctx, "abc")
				require.NoError(t, err)
				assert.Equal(t, cred.ID, got.ID)
				assert.Equal(t, cred.Email, got.Email)
				assert.Equal(t, cred.AccessToken, got.AccessToken)
				assert.Equal(t, cred.RefreshToken, got.RefreshToken)
				assert.Equal(t, cred.TokenType, got.TokenType)
				assert.WithinDuration(t, cred.ExpiresAt, got.ExpiresAt, time.Millisecond)
				assert.WithinDuration(t, cred.TokenExpiry, got.TokenExpiry, time.Millisecond)
				assert.False(t, got.CreatedAt.IsZero())
			})

			t.Run("put replaces", func(t *testing.T) {
				c := &clock{now: time.Now()}
				store := factory(t, c)
				ctx := context.Background()

				cred := testCredential("abc", c.now.Add(time.Hour))
				require.NoError(t, store.Put(ctx, cred))
				cred.AccessToken = "rotated"
				require.NoError(t, store.Put(ctx, cred))

				got, err := store.Get(ctx, "abc")
				require.NoError(t, err)
				assert.Equal(t, "rotated", got.AccessToken)
			})

			t.Run("missing is not found", func(t *testing.T) {
				store := factory(t, &clock{now: time.Now()})

				_, err := store.Get(context.Background(), "nope")
				assert.ErrorIs(t, err, common.ErrNotFound)
			})

			t.Run("expired is not found", func(t *testing.T) {
				c := &clock{now: time.Now()}
				store := factory(t, c)
				ctx := context.Background()

				require.NoError(t, store.Put(ctx, testCredential("abc", c.now.Add(time.Minute))))
				c.now = c.now.Add(2 * time.Minute)

				_, err := store.Get(ctx, "abc")
				assert.ErrorIs(t, err, common.ErrNotFound)
			})

			t.Run("delete is idempotent", func(t *testing.T) {
				c := &clock{now: time.Now()}
				store := factory(t, c)
				ctx := context.Background()

				require.NoError(t, store.Put(ctx, testCredential("abc", c.now.Add(time.Hour))))
				require.NoError(t, store.Delete(ctx, "abc"))
				require.NoError(t, store.Delete(ctx, "abc"))

				_, err := store.Get(ctx, "abc")
				assert.ErrorIs(t, err, common.ErrNotFound)
			})

			t.Run("rejects invalid input", func(t *testing.T) {
				store := factory(t, &clock{now: time.Now()})
				ctx := context.Background()

				assert.ErrorIs(t, store.Put(ctx, nil), ErrNilParameter)
				assert.ErrorIs(t, store.Put(ctx, &model.Credential{AccessToken: "x"}), ErrInvalidCredential)
				assert.ErrorIs(t, store.Put(ctx, &model.Credential{ID: "x"}), ErrInvalidCredential)
				_, err := store.Get(ctx, " ")
				assert.ErrorIs(t, err, ErrEmptyString)
				assert.ErrorIs(t, store.Delete(ctx, ""), ErrEmptyString)
			})
		})
	}
}

func TestPurgeExpired(t *testing.T) {
	tests := []struct {
		name    string
		factory storeFactory
	}{
		{name: "sqlite", factory: backends()["sqlite"]},
		{name: "keyring", factory: backends()["keyring"]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &clock{now: time.Now()}
			store := tt.factory(t, c)
			ctx := context.Background()

			require.NoError(t, store.Put(ctx, testCredential("short", c.now.Add(time.Minute))))
			require.NoError(t, store.Put(ctx, testCredential("long", c.now.Add(time.Hour))))
			forever := testCredential("forever", time.Time{})
			forever.TokenExpiry = time.Time{}
			require.NoError(t, store.Put(ctx, forever))

			c.now = c.now.Add(10 * time.Minute)

			n, err := store.PurgeExpired(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			_, err = store.Get(ctx, "long")
			assert.NoError(t, err)
			_, err = store.Get(ctx, "forever")
			assert.NoError(t, err)

			n, err = store.PurgeExpired(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestSQLiteStorage_Migrate(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	var version int
	require.NoError(t, store.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version))
	assert.Equal(t, ExpectedSchemaVersion, version)

	// Running again is a no-op.
	require.NoError(t, store.Migrate(ctx))

	var indexCount int
	require.NoError(t, store.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='index' AND name='idx_credentials_expires_at'
	`).Scan(&indexCount))
	assert.Equal(t, 1, indexCount)
}

func TestSQLiteStorage_ExpiredGetDeletesRow(t *testing.T) {
	c := &clock{now: time.Now()}
	store := createTestStorage(t)
	store.now = c.Now
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testCredential("abc", c.now.Add(time.Minute))))
	c.now = c.now.Add(time.Hour)

	_, err := store.Get(ctx, "abc")
	require.ErrorIs(t, err, common.ErrNotFound)

	n, err := store.CountCredentials(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLiteStorage_FileDatabase(t *testing.T) {
	path := t.TempDir() + "/nested/unclutter.db"

	store, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Migrate(context.Background()))
	assert.Equal(t, path, store.Path())
	assert.FileExists(t, path)
}

func TestNewSQLiteStorage_EmptyPath(t *testing.T) {
	_, err := NewSQLiteStorage("  ")
	assert.ErrorIs(t, err, ErrEmptyString)
}

func TestRedisTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	ttl, err := redisTTL(&model.Credential{ID: "a"}, now)
	require.NoError(t, err)
	assert.Zero(t, ttl)

	ttl, err = redisTTL(&model.Credential{ID: "a", ExpiresAt: now.Add(90 * time.Minute)}, now)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, ttl)

	_, err = redisTTL(&model.Credential{ID: "a", ExpiresAt: now.Add(-time.Second)}, now)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestNewRedisTokenStoreFromClient_DefaultPrefix(t *testing.T) {
	store := NewRedisTokenStoreFromClient(nil, "")
	assert.Equal(t, DefaultRedisPrefix+"abc", store.key("abc"))
	assert.NoError(t, store.Close())
}
