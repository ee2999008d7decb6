package keychain

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jun/gophnote/internal/crypto"
)

type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func keyOf(key map[string]types.AttributeValue) string {
	return key["item_key"].(*types.AttributeValueMemberS).Value
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[keyOf(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[keyOf(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, keyOf(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func TestStores(t *testing.T) {
	stores := []struct {
		name  string
		store Store
	}{
		{"memory", NewMemory()},
		{"dynamo fallback", NewDynamo(nil, "Keychain")},
		{"dynamo", NewDynamo(newFakeDynamo(), "Keychain")},
		{"encrypted", NewEncrypted(NewMemory(), crypto.NewMockEncryptor())},
	}

	for _, tt := range stores {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := tt.store

			got, err := s.Get(ctx, "gophnote", "www.example.com")
			if err != nil || got != nil {
				t.Fatalf("Expected (nil, nil) for a missing entry, got %v, %v", got, err)
			}

			if err := s.Set(ctx, "gophnote", "www.example.com", []byte("cred-1")); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			if err := s.Set(ctx, "gophnote", "other.example.com", []byte("cred-2")); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			got, err = s.Get(ctx, "gophnote", "www.example.com")
			if err != nil || !bytes.Equal(got, []byte("cred-1")) {
				t.Errorf("Get = %q, %v", got, err)
			}

			if err := s.Delete(ctx, "gophnote", "www.example.com"); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if err := s.Delete(ctx, "gophnote", "www.example.com"); err != nil {
				t.Errorf("second Delete should be a no-op, got %v", err)
			}
			got, _ = s.Get(ctx, "gophnote", "www.example.com")
			if got != nil {
				t.Errorf("Expected entry to be gone, got %q", got)
			}
			got, _ = s.Get(ctx, "gophnote", "other.example.com")
			if !bytes.Equal(got, []byte("cred-2")) {
				t.Errorf("other account should be untouched, got %q", got)
			}
		})
	}
}

func TestEncrypted_StoresCiphertext(t *testing.T) {
	inner := NewMemory()
	s := NewEncrypted(inner, crypto.NewMockEncryptor())
	ctx := context.Background()

	if err := s.Set(ctx, "gophnote", "host", []byte("token")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	raw, _ := inner.Get(ctx, "gophnote", "host")
	if string(raw) != "mock:token" {
		t.Errorf("Expected sealed bytes in the inner store, got %q", raw)
	}
}

func TestMemory_CopiesSecrets(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	secret := []byte("abc")
	m.Set(ctx, "s", "a", secret)
	secret[0] = 'x'

	got, _ := m.Get(ctx, "s", "a")
	if string(got) != "abc" {
		t.Errorf("stored secret changed with caller's slice: %q", got)
	}
}
