package storage

import (
	"context"
	"fmt"

	"github.com/hugh/serviexpress/pkg/crypto"
)

// sealedContentType marks stored bytes as age ciphertext.
const sealedContentType = "application/age-encryption"

// SealedStore encrypts documents before they reach the underlying store and
// decrypts them on the way out.
type SealedStore struct {
	inner     DocumentStore
	encryptor *crypto.Encryptor
}

func NewSealedStore(inner DocumentStore, encryptor *crypto.Encryptor) *SealedStore {
	return &SealedStore{inner: inner, encryptor: encryptor}
}

// Put ignores contentType; every sealed object is stored as age ciphertext.
func (s *SealedStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	sealed, err := s.encryptor.Encrypt(data)
	if err != nil {
		return fmt.Errorf("sealing %s: %w", key, err)
	}
	return s.inner.Put(ctx, key, sealed, sealedContentType)
}

func (s *SealedStore) Get(ctx context.Context, key string) ([]byte, error) {
	sealed, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	data, err := s.encryptor.Decrypt(sealed)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", key, err)
	}
	return data, nil
}

func (s *SealedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

func (s *SealedStore) List(ctx context.Context, prefix string) ([]Object, error) {
	return s.inner.List(ctx, prefix)
}
