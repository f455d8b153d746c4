package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/99designs/keyring"

	"github.com/Veraticus/unclutter/internal/common"
	"github.com/Veraticus/unclutter/internal/model"
)

// KeyringOptions configures NewKeyringTokenStore.
type KeyringOptions struct {
	ServiceName string
	FileDir     string
	// FilePassword unlocks the encrypted file backend used when no OS keychain is available.
	FilePassword string
	// Backends restricts the backends tried, in order. Empty means the platform defaults.
	Backends []keyring.BackendType
}

// KeyringTokenStore keeps credentials in the operating system keyring, one item per id.
type KeyringTokenStore struct {
	ring keyring.Keyring
	now  func() time.Time
}

// NewKeyringTokenStore opens the keyring described by opts.
func NewKeyringTokenStore(opts KeyringOptions) (*KeyringTokenStore, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = "unclutter"
	}
	if opts.FilePassword == "" {
		opts.FilePassword = opts.ServiceName + "-file-key"
	}
	backends := opts.Backends
	if len(backends) == 0 {
		backends = []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		}
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName:              opts.ServiceName,
		AllowedBackends:          backends,
		FileDir:                  opts.FileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(opts.FilePassword),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}

	return &KeyringTokenStore{ring: ring, now: time.Now}, nil
}

// Get retrieves a credential by session id.
func (k *KeyringTokenStore) Get(ctx context.Context, id string) (*model.Credential, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	item, err := k.ring.Get(id)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, fmt.Errorf("credential %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting credential %q: %w", id, err)
	}

	var cred model.Credential
	if err := json.Unmarshal(item.Data, &cred); err != nil {
		return nil, fmt.Errorf("%w: credential %s: %v", common.ErrDatabaseCorrupted, id, err)
	}

	if cred.Expired(k.now()) {
		if delErr := k.Delete(ctx, id); delErr != nil {
			return nil, delErr
		}
		return nil, fmt.Errorf("credential %s: %w", id, common.ErrNotFound)
	}

	return &cred, nil
}

// Put stores a credential.
func (k *KeyringTokenStore) Put(ctx context.Context, cred *model.Credential) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCredential(cred); err != nil {
		return err
	}

	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = k.now()
	}

	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to encode credential: %w", err)
	}

	err = k.ring.Set(keyring.Item{
		Key:         cred.ID,
		Data:        data,
		Label:       "unclutter " + cred.ID,
		Description: "OAuth credential",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", cred.ID, err)
	}
	return nil
}

// Delete removes a credential. Deleting an unknown id is not an error.
func (k *KeyringTokenStore) Delete(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	err := k.ring.Remove(id)
	if err != nil && !isKeyringMissing(err) {
		return fmt.Errorf("deleting credential %q: %w", id, err)
	}
	return nil
}

// PurgeExpired walks every stored item and removes lapsed sessions.
func (k *KeyringTokenStore) PurgeExpired(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	keys, err := k.ring.Keys()
	if err != nil {
		return 0, fmt.Errorf("listing keyring items: %w", err)
	}

	now := k.now()
	purged := 0
	for _, key := range keys {
		if ctx.Err() != nil {
			return purged, ctx.Err()
		}

		item, err := k.ring.Get(key)
		if err != nil {
			continue
		}
		var cred model.Credential
		if err := json.Unmarshal(item.Data, &cred); err != nil {
			continue
		}
		if !cred.Expired(now) {
			continue
		}
		if err := k.ring.Remove(key); err != nil && !isKeyringMissing(err) {
			return purged, fmt.Errorf("deleting credential %q: %w", key, err)
		}
		purged++
	}

	return purged, nil
}

// Close is a no-op; keyring handles hold no resources.
func (k *KeyringTokenStore) Close() error {
	return nil
}

// isKeyringMissing reports whether a Remove failed only because the item was absent.
// The file backend surfaces a plain os error rather than keyring.ErrKeyNotFound.
func isKeyringMissing(err error) bool {
	return errors.Is(err, keyring.ErrKeyNotFound) || errors.Is(err, fs.ErrNotExist)
}
