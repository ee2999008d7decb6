package keychain

import (
	"context"
	"fmt"

	"github.com/jun/gophnote/internal/crypto"
)

// Encrypted seals secrets with an Encryptor before handing them to the
// underlying Store.
type Encrypted struct {
	store Store
	enc   crypto.Encryptor
}

func NewEncrypted(store Store, enc crypto.Encryptor) *Encrypted {
	return &Encrypted{store: store, enc: enc}
}

func (e *Encrypted) Set(ctx context.Context, service, account string, secret []byte) error {
	sealed, err := e.enc.Encrypt(ctx, secret)
	if err != nil {
		return fmt.Errorf("failed to encrypt keychain item: %w", err)
	}
	return e.store.Set(ctx, service, account, sealed)
}

func (e *Encrypted) Get(ctx context.Context, service, account string) ([]byte, error) {
	sealed, err := e.store.Get(ctx, service, account)
	if err != nil || sealed == nil {
		return nil, err
	}
	secret, err := e.enc.Decrypt(ctx, sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt keychain item: %w", err)
	}
	return secret, nil
}

func (e *Encrypted) Delete(ctx context.Context, service, account string) error {
	return e.store.Delete(ctx, service, account)
}
