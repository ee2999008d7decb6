package crypto

import (
	"bytes"
	"context"
	"errors"
)

var mockPrefix = []byte("mock:")

// ErrNotMockCiphertext is returned by MockEncryptor for input it did not produce.
var ErrNotMockCiphertext = errors.New("crypto: ciphertext was not produced by MockEncryptor")

// MockEncryptor implements Encryptor for local development (no KMS required).
// It prefixes the plaintext so stored values are recognisable.
type MockEncryptor struct{}

func NewMockEncryptor() *MockEncryptor {
	return &MockEncryptor{}
}

func (m *MockEncryptor) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	out := make([]byte, 0, len(mockPrefix)+len(plaintext))
	out = append(out, mockPrefix...)
	return append(out, plaintext...), nil
}

func (m *MockEncryptor) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	if !bytes.HasPrefix(ciphertext, mockPrefix) {
		return nil, ErrNotMockCiphertext
	}
	return append([]byte(nil), ciphertext[len(mockPrefix):]...), nil
}
