package repository

import (
	"bytes"
	"context"
	"sync"

	"github.com/amirasaad/ledger/pkg/repository"
)

// MemorySnapshotStore holds snapshots in process memory. Used in tests and
// when STORE_DRIVER=memory.
type MemorySnapshotStore struct {
	mu      sync.RWMutex
	current []byte
	backup  []byte
	saves   int
}

// NewMemorySnapshotStore creates an empty store.
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{}
}

func (m *MemorySnapshotStore) Save(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backup = m.current
	m.current = bytes.Clone(data)
	m.saves++
	return nil
}

func (m *MemorySnapshotStore) Load(ctx context.Context) ([]byte, error) {
	return m.get(ctx, func() []byte { return m.current })
}

func (m *MemorySnapshotStore) LoadBackup(ctx context.Context) ([]byte, error) {
	return m.get(ctx, func() []byte { return m.backup })
}

// Saves reports how many times Save succeeded.
func (m *MemorySnapshotStore) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

func (m *MemorySnapshotStore) get(ctx context.Context, slot func() []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data := slot()
	if data == nil {
		return nil, repository.ErrNoSnapshot
	}
	return bytes.Clone(data), nil
}

var (
	_ repository.SnapshotStore = (*MemorySnapshotStore)(nil)
	_ repository.SnapshotStore = (*FileSnapshotStore)(nil)
	_ repository.SnapshotStore = (*GormSnapshotStore)(nil)
	_ repository.SnapshotStore = (*RedisSnapshotStore)(nil)
	_ repository.BackupLoader  = (*MemorySnapshotStore)(nil)
)
