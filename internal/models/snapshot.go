package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SnapshotTypeVodSync marks snapshots produced by the sync pipeline
const SnapshotTypeVodSync = "vod_sync"

// Snapshot is a point-in-time, gzip-compressed copy of a provider's full
// catalog. Snapshots are immutable; old ones are pruned keeping the most
// recent few per provider.
type Snapshot struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ProviderID string    `gorm:"type:varchar(36);not null;index:idx_snapshots_provider_type" json:"provider_id"`
	Type       string    `gorm:"type:varchar(50);not null;index:idx_snapshots_provider_type" json:"type"`
	Data       []byte    `gorm:"type:bytea;not null" json:"-"`
	CreatedAt  time.Time `gorm:"not null;index" json:"created_at"`
}

// TableName specifies the table name for Snapshot
func (Snapshot) TableName() string {
	return "snapshots"
}

// BeforeCreate assigns a UUID if none is set
func (s *Snapshot) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}
