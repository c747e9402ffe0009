package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/amirasaad/ledger/pkg/repository"
)

// FileSnapshotStore writes snapshots to a single file, keeping the previous
// generation alongside it with a .bak suffix.
type FileSnapshotStore struct {
	path   string
	logger *slog.Logger
}

// NewFileSnapshotStore creates a store writing to path.
func NewFileSnapshotStore(path string, logger *slog.Logger) *FileSnapshotStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSnapshotStore{path: path, logger: logger}
}

// Path returns the current snapshot file.
func (s *FileSnapshotStore) Path() string { return s.path }

func (s *FileSnapshotStore) backup() string { return s.path + ".bak" }

// Save writes data to a temporary file, moves the current snapshot to the
// backup slot and renames the temporary file into place.
func (s *FileSnapshotStore) Save(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if err := os.Rename(s.path, s.backup()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_ = os.Remove(tmp)
		return fmt.Errorf("rotate snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	s.logger.Debug("Snapshot saved", "store", "file", "path", s.path, "bytes", len(data))
	return nil
}

// Load reads the current snapshot file.
func (s *FileSnapshotStore) Load(ctx context.Context) ([]byte, error) {
	return s.read(ctx, s.path)
}

// LoadBackup reads the previous generation.
func (s *FileSnapshotStore) LoadBackup(ctx context.Context) ([]byte, error) {
	return s.read(ctx, s.backup())
}

func (s *FileSnapshotStore) read(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, repository.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return data, nil
}
