// Package testutil provides shared fixtures for package tests: a migrated in-memory
// credential store, a scripted message source, and a fake Google OAuth and Gmail backend.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/unclutter/internal/model"
	"github.com/Veraticus/unclutter/internal/storage"
)

// TestStore wraps an in-memory credential store.
type TestStore struct {
	*storage.SQLiteStorage
	t *testing.T
}

// SetupTokenStore creates a new in-memory credential store seeded with creds.
// It automatically handles migrations and cleanup.
//
// Example:
//
//	store := testutil.SetupTokenStore(t, testutil.Credential("session-1", time.Hour))
func SetupTokenStore(t *testing.T, creds ...*model.Credential) *TestStore {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	for _, cred := range creds {
		if err := store.Put(ctx, cred); err != nil {
			t.Fatalf("failed to seed credential %q: %v", cred.ID, err)
		}
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestStore{SQLiteStorage: store, t: t}
}

// MustGet returns the stored credential or fails the test.
func (s *TestStore) MustGet(id string) *model.Credential {
	s.t.Helper()
	cred, err := s.Get(context.Background(), id)
	if err != nil {
		s.t.Fatalf("credential %q: %v", id, err)
	}
	return cred
}

// Credential builds a credential whose session lasts ttl from now. A zero ttl never expires.
// The access token is already valid for an hour so no refresh is attempted.
func Credential(id string, ttl time.Duration) *model.Credential {
	now := time.Now()
	cred := &model.Credential{
		ID:           id,
		Email:        "student@mcmaster.ca",
		AccessToken:  "access-" + id,
		RefreshToken: "refresh-" + id,
		TokenType:    "Bearer",
		TokenExpiry:  now.Add(time.Hour),
		CreatedAt:    now,
	}
	if ttl > 0 {
		cred.ExpiresAt = now.Add(ttl)
	}
	return cred
}
