package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/amirasaad/ledger/pkg/domain"
	"github.com/amirasaad/ledger/pkg/repository"
	"gorm.io/gorm"
)

// generations is how many snapshot rows survive a save: current plus backup.
const generations = 2

// GormSnapshotStore keeps snapshots as rows of the ledger_snapshots table.
type GormSnapshotStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewGormSnapshotStore creates a store over db.
func NewGormSnapshotStore(db *gorm.DB, logger *slog.Logger) *GormSnapshotStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &GormSnapshotStore{db: db, logger: logger}
}

// Migrate creates or updates the snapshot table.
func (s *GormSnapshotStore) Migrate(ctx context.Context) error {
	return WrapError(func() error {
		return s.db.WithContext(ctx).AutoMigrate(&Snapshot{})
	})
}

// Close releases the underlying connection pool.
func (s *GormSnapshotStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save inserts a new row and prunes everything older than the backup.
func (s *GormSnapshotStore) Save(ctx context.Context, data []byte) error {
	err := WrapError(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			row := Snapshot{Data: data, Size: len(data)}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			keep := tx.Model(&Snapshot{}).Select("id").Order("id DESC").Limit(generations)
			return tx.Where("id NOT IN (?)", keep).Delete(&Snapshot{}).Error
		})
	})
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	s.logger.Debug("Snapshot saved", "store", "postgres", "bytes", len(data))
	return nil
}

// Load returns the newest row.
func (s *GormSnapshotStore) Load(ctx context.Context) ([]byte, error) {
	return s.nth(ctx, 0)
}

// LoadBackup returns the row before the newest.
func (s *GormSnapshotStore) LoadBackup(ctx context.Context) ([]byte, error) {
	return s.nth(ctx, 1)
}

func (s *GormSnapshotStore) nth(ctx context.Context, offset int) ([]byte, error) {
	var row Snapshot
	err := WrapError(func() error {
		return s.db.WithContext(ctx).Order("id DESC").Offset(offset).Take(&row).Error
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, repository.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return row.Data, nil
}
