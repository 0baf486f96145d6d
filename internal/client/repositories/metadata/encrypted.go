package metadata

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/cryptox"
)

// saltKey holds the argon2 salt in the wrapped repository, unencrypted.
const saltKey = "crypto.salt"

// EncryptedRepository seals every value with AES-GCM before handing it to the
// wrapped Repository. The key is derived from a passphrase and a per-store
// salt that is created on first use.
type EncryptedRepository struct {
	inner Repository
	salt  []byte
	key   []byte
}

func NewEncryptedRepository(ctx context.Context, inner Repository, passphrase []byte) (*EncryptedRepository, error) {
	salt, err := inner.Get(ctx, saltKey)
	if err != nil {
		return nil, err
	}
	if len(salt) == 0 {
		salt = common.GenerateRandByteArray(cryptox.SaltSize)
		if err := inner.Set(ctx, saltKey, salt); err != nil {
			return nil, err
		}
	}
	return &EncryptedRepository{
		inner: inner,
		salt:  salt,
		key:   cryptox.DeriveKey(passphrase, salt),
	}, nil
}

func (r *EncryptedRepository) Get(ctx context.Context, key string) ([]byte, error) {
	sealed, err := r.inner.Get(ctx, key)
	if err != nil || sealed == nil {
		return nil, err
	}
	plain, err := cryptox.Open(r.key, sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata[%s]: %w", key, err)
	}
	return plain, nil
}

func (r *EncryptedRepository) Set(ctx context.Context, key string, value []byte) error {
	sealed, err := cryptox.Seal(r.key, value)
	if err != nil {
		return fmt.Errorf("failed to seal metadata[%s]: %w", key, err)
	}
	return r.inner.Set(ctx, key, sealed)
}

func (r *EncryptedRepository) Delete(ctx context.Context, key string) error {
	return r.inner.Delete(ctx, key)
}

// List skips entries that cannot be opened with the current key.
func (r *EncryptedRepository) List(ctx context.Context) (map[string][]byte, error) {
	all, err := r.inner.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(all))
	for k, sealed := range all {
		if k == saltKey {
			continue
		}
		plain, err := cryptox.Open(r.key, sealed)
		if err != nil {
			continue
		}
		out[k] = plain
	}
	return out, nil
}

// Clear wipes the wrapped store and writes the salt back so the derived key
// stays usable.
func (r *EncryptedRepository) Clear(ctx context.Context) error {
	if err := r.inner.Clear(ctx); err != nil {
		return err
	}
	return r.inner.Set(ctx, saltKey, r.salt)
}
