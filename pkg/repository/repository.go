// Package repository defines the Durable Store contract the ledger persists
// its snapshots through.
package repository

import (
	"context"
	"errors"
)

// ErrNoSnapshot is returned by Load when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no snapshot stored")

// SnapshotStore is a byte sink/source for serialized ledger snapshots.
// Implementations keep one prior generation as a backup.
type SnapshotStore interface {
	// Save replaces the current snapshot, demoting the previous one to backup.
	Save(ctx context.Context, data []byte) error
	// Load returns the current snapshot or ErrNoSnapshot.
	Load(ctx context.Context) ([]byte, error)
}

// BackupLoader is implemented by stores that can return the prior generation.
type BackupLoader interface {
	LoadBackup(ctx context.Context) ([]byte, error)
}
