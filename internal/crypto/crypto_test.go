package crypto

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/kms"
)

type fakeKMS struct {
	keyID string
	fail  error
}

func (f *fakeKMS) Encrypt(_ context.Context, in *kms.EncryptInput, _ ...func(*kms.Options)) (*kms.EncryptOutput, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	f.keyID = *in.KeyId
	out := append([]byte("enc|"), in.Plaintext...)
	return &kms.EncryptOutput{CiphertextBlob: out}, nil
}

func (f *fakeKMS) Decrypt(_ context.Context, in *kms.DecryptInput, _ ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	return &kms.DecryptOutput{Plaintext: bytes.TrimPrefix(in.CiphertextBlob, []byte("enc|"))}, nil
}

func TestKMSService_RoundTrip(t *testing.T) {
	client := &fakeKMS{}
	s := NewKMSService(client, "alias/gophnote-keychain")
	ctx := context.Background()

	ct, err := s.Encrypt(ctx, []byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if client.keyID != "alias/gophnote-keychain" {
		t.Errorf("Expected key alias to be passed, got %q", client.keyID)
	}
	pt, err := s.Decrypt(ctx, ct)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if string(pt) != "secret" {
		t.Errorf("Expected 'secret', got %q", pt)
	}
}

func TestKMSService_WrapsErrors(t *testing.T) {
	denied := errors.New("AccessDenied")
	s := NewKMSService(&fakeKMS{fail: denied}, "k")
	if _, err := s.Encrypt(context.Background(), []byte("x")); !errors.Is(err, denied) {
		t.Errorf("Expected wrapped error, got %v", err)
	}
	if _, err := s.Decrypt(context.Background(), []byte("x")); !errors.Is(err, denied) {
		t.Errorf("Expected wrapped error, got %v", err)
	}
}

func TestMockEncryptor(t *testing.T) {
	m := NewMockEncryptor()
	ct, _ := m.Encrypt(context.Background(), []byte("abc"))
	if string(ct) != "mock:abc" {
		t.Errorf("Expected 'mock:abc', got %q", ct)
	}
	pt, err := m.Decrypt(context.Background(), ct)
	if err != nil || string(pt) != "abc" {
		t.Errorf("Decrypt = %q, %v", pt, err)
	}
	if _, err := m.Decrypt(context.Background(), []byte("abc")); !errors.Is(err, ErrNotMockCiphertext) {
		t.Errorf("Expected ErrNotMockCiphertext, got %v", err)
	}
}
