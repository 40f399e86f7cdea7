package store

import (
	"context"
	"slices"
	"sync"
)

// Memory 内存账号存储，进程退出即丢失，用于测试与本地试玩
type Memory struct {
	mu       sync.RWMutex
	accounts map[string]*Account
}

// NewMemory 创建空存储
func NewMemory() *Memory {
	return &Memory{accounts: make(map[string]*Account)}
}

var _ Store = (*Memory)(nil)

func (m *Memory) Create(ctx context.Context, acc *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[acc.Username]; ok {
		return ErrAccountExists
	}
	m.accounts[acc.Username] = acc.Clone()
	return nil
}

func (m *Memory) Load(ctx context.Context, username string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acc, ok := m.accounts[username]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return acc.Clone(), nil
}

func (m *Memory) Save(ctx context.Context, acc *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[acc.Username] = acc.Clone()
	return nil
}

func (m *Memory) List(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.accounts))
	for name := range m.accounts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func (m *Memory) Close() error { return nil }
