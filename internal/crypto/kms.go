// Package crypto encrypts credential bytes before they reach a shared store.
package crypto

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

// Encryptor defines the interface for encryption and decryption.
type Encryptor interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// KMSClient is the subset of *kms.Client methods used by KMSService.
type KMSClient interface {
	Encrypt(ctx context.Context, params *kms.EncryptInput, optFns ...func(*kms.Options)) (*kms.EncryptOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// KMSService implements Encryptor using AWS KMS.
type KMSService struct {
	client KMSClient
	keyID  string
}

// NewKMSService creates a new KMSService.
// keyID can be a key ID, key ARN, or alias name (e.g., "alias/gophnote-keychain").
func NewKMSService(client KMSClient, keyID string) *KMSService {
	return &KMSService{
		client: client,
		keyID:  keyID,
	}
}

// Encrypt encrypts plaintext under the configured key.
func (s *KMSService) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	result, err := s.client.Encrypt(ctx, &kms.EncryptInput{
		KeyId:     aws.String(s.keyID),
		Plaintext: plaintext,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt data: %w", err)
	}
	return result.CiphertextBlob, nil
}

// Decrypt decrypts a ciphertext blob produced by Encrypt.
func (s *KMSService) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	result, err := s.client.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob: ciphertext,
		KeyId:          aws.String(s.keyID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt data: %w", err)
	}
	return result.Plaintext, nil
}
