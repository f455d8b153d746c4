package storage

import (
	"context"
	"fmt"

	"github.com/Veraticus/unclutter/internal/common"
	"github.com/Veraticus/unclutter/internal/config"
	"github.com/Veraticus/unclutter/internal/service"
)

// Open returns the token store selected by cfg, migrated and ready for use.
func Open(ctx context.Context, cfg config.TokenConfig) (service.TokenStore, error) {
	switch cfg.Backend {
	case config.BackendSQLite, "":
		store, err := NewSQLiteStorage(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil
	case config.BackendRedis:
		return NewRedisTokenStore(ctx, RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
	case config.BackendKeyring:
		return NewKeyringTokenStore(KeyringOptions{
			ServiceName: cfg.Keyring.Service,
			FileDir:     cfg.Keyring.FileDir,
		})
	default:
		return nil, fmt.Errorf("%w: unknown token backend %q", common.ErrInvalidConfig, cfg.Backend)
	}
}
