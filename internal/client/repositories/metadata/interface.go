// Package metadata provides the persistent key/value store the token store
// is built on. Values are opaque bytes; a missing key reads as (nil, nil).
package metadata

import (
	"context"
)

type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}

// Transactional is implemented by repositories that can apply several writes
// atomically.
type Transactional interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
}

var (
	_ Transactional = (*SQLiteRepository)(nil)

	_ Repository = (*SQLiteRepository)(nil)
	_ Repository = (*MemoryRepository)(nil)
	_ Repository = (*RedisRepository)(nil)
	_ Repository = (*EncryptedRepository)(nil)
)
