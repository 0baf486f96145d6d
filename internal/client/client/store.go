package client

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/tokenkeeper/internal/client/config"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/repositories/metadata"
)

// OpenStore opens the session repository selected by cfg.StoreBackend and
// wraps it in an EncryptedRepository when a passphrase is configured. The
// returned func releases the underlying connection.
func OpenStore(ctx context.Context, cfg *config.Config) (metadata.Repository, func() error, error) {
	var (
		repo   metadata.Repository
		closer func() error
	)

	switch cfg.StoreBackend {
	case config.BackendSQLite, "":
		db, err := InitDatabase(ctx, cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("error initializing database: %w", err)
		}
		repo, closer = metadata.NewSQLiteRepository(db), db.Close

	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("error connecting to redis at %s: %w", cfg.RedisAddr, err)
		}
		repo, closer = metadata.NewRedisRepository(rdb, ""), rdb.Close

	case config.BackendMemory:
		repo, closer = metadata.NewMemoryRepository(), func() error { return nil }

	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.StoreBackend)
	}

	if cfg.EncryptionPassphrase != "" {
		enc, err := metadata.NewEncryptedRepository(ctx, repo, []byte(cfg.EncryptionPassphrase))
		if err != nil {
			_ = closer()
			return nil, nil, fmt.Errorf("error enabling store encryption: %w", err)
		}
		repo = enc
	}

	return repo, closer, nil
}
