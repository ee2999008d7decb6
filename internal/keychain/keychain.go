// Package keychain stores small secrets by service and account.
package keychain

import (
	"context"
	"sync"
)

// Store is a secure key-value store. Get returns (nil, nil) when nothing is
// stored; Delete of a missing entry is not an error.
type Store interface {
	Set(ctx context.Context, service, account string, secret []byte) error
	Get(ctx context.Context, service, account string) ([]byte, error)
	Delete(ctx context.Context, service, account string) error
}

func itemKey(service, account string) string {
	return service + "#" + account
}

// Memory keeps secrets in process memory.
type Memory struct {
	mu    sync.RWMutex
	items map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string][]byte)}
}

func (m *Memory) Set(_ context.Context, service, account string, secret []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[itemKey(service, account)] = append([]byte(nil), secret...)
	return nil
}

func (m *Memory) Get(_ context.Context, service, account string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[itemKey(service, account)]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Delete(_ context.Context, service, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, itemKey(service, account))
	return nil
}
