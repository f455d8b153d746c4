package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Veraticus/unclutter/internal/common"
	"github.com/Veraticus/unclutter/internal/model"
)

// DefaultRedisPrefix namespaces credential keys.
const DefaultRedisPrefix = "unclutter:token:"

// RedisTokenStore keeps credentials as JSON values whose key TTL tracks the session expiry.
type RedisTokenStore struct {
	rdb    redis.Cmdable
	closer func() error
	now    func() time.Time
	prefix string
}

// RedisOptions configures NewRedisTokenStore.
type RedisOptions struct {
	Addr     string
	Password string
	Prefix   string
	DB       int
}

// NewRedisTokenStore connects to Redis and verifies the connection.
func NewRedisTokenStore(ctx context.Context, opts RedisOptions) (*RedisTokenStore, error) {
	if err := validateString(opts.Addr, "addr"); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	store := NewRedisTokenStoreFromClient(rdb, opts.Prefix)
	store.closer = rdb.Close
	return store, nil
}

// NewRedisTokenStoreFromClient wraps an existing client. The caller keeps ownership of it.
func NewRedisTokenStoreFromClient(rdb redis.Cmdable, prefix string) *RedisTokenStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisTokenStore{
		rdb:    rdb,
		prefix: prefix,
		now:    time.Now,
		closer: func() error { return nil },
	}
}

func (r *RedisTokenStore) key(id string) string {
	return r.prefix + id
}

// Get retrieves a credential by session id.
func (r *RedisTokenStore) Get(ctx context.Context, id string) (*model.Credential, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	data, err := r.rdb.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("credential %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	var cred model.Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("%w: credential %s: %v", common.ErrDatabaseCorrupted, id, err)
	}

	// Key expiry has one-second resolution, so the session check still applies.
	if cred.Expired(r.now()) {
		if delErr := r.Delete(ctx, id); delErr != nil {
			return nil, delErr
		}
		return nil, fmt.Errorf("credential %s: %w", id, common.ErrNotFound)
	}

	return &cred, nil
}

// Put stores a credential. A credential without ExpiresAt is kept indefinitely.
func (r *RedisTokenStore) Put(ctx context.Context, cred *model.Credential) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCredential(cred); err != nil {
		return err
	}

	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = r.now()
	}

	ttl, err := redisTTL(cred, r.now())
	if err != nil {
		return err
	}

	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to encode credential: %w", err)
	}

	if err := r.rdb.Set(ctx, r.key(cred.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// Delete removes a credential. Deleting an unknown id is not an error.
func (r *RedisTokenStore) Delete(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	if err := r.rdb.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// PurgeExpired is a no-op: Redis expires keys itself.
func (r *RedisTokenStore) PurgeExpired(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return 0, nil
}

// Close releases the client if the store created it.
func (r *RedisTokenStore) Close() error {
	return r.closer()
}

// redisTTL converts the session expiry into a key TTL. Zero means no expiry.
func redisTTL(cred *model.Credential, now time.Time) (time.Duration, error) {
	if cred.ExpiresAt.IsZero() {
		return 0, nil
	}
	ttl := cred.ExpiresAt.Sub(now)
	if ttl <= 0 {
		return 0, fmt.Errorf("%w: credential %s already expired", ErrInvalidCredential, cred.ID)
	}
	return ttl, nil
}
