package repository

import "time"

// Snapshot is one persisted generation of the ledger document.
type Snapshot struct {
	ID        uint      `gorm:"primaryKey"`
	Data      []byte    `gorm:"type:bytea;not null"`
	Size      int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"index"`
}

// TableName pins the table name used for ledger snapshots.
func (Snapshot) TableName() string { return "ledger_snapshots" }
