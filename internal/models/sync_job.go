package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SyncJobStatus represents the lifecycle state of a sync run
type SyncJobStatus string

const (
	SyncStatusProcessing SyncJobStatus = "processing"
	SyncStatusCompleted  SyncJobStatus = "completed"
	SyncStatusFailed     SyncJobStatus = "failed"
	SyncStatusCancelled  SyncJobStatus = "cancelled"
)

// SyncJob tracks one sync run for a provider. At most one job per provider
// may be in the processing state at any time.
type SyncJob struct {
	ID             string        `gorm:"type:varchar(36);primaryKey" json:"id"`
	ProviderID     string        `gorm:"type:varchar(36);not null;index:idx_sync_jobs_provider_status" json:"provider_id"`
	Status         SyncJobStatus `gorm:"type:varchar(20);not null;default:processing;index:idx_sync_jobs_provider_status" json:"status"`
	TotalItems     int           `gorm:"not null;default:0" json:"total_items"`
	ProcessedItems int           `gorm:"not null;default:0" json:"processed_items"`
	MoviesCount    int           `gorm:"not null;default:0" json:"movies_count"`
	SeriesCount    int           `gorm:"not null;default:0" json:"series_count"`
	ChannelsCount  int           `gorm:"not null;default:0" json:"channels_count"`
	Error          *string       `gorm:"type:text" json:"error,omitempty"`
	StartedAt      time.Time     `gorm:"not null" json:"started_at"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
}

// TableName specifies the table name for SyncJob
func (SyncJob) TableName() string {
	return "sync_jobs"
}

// BeforeCreate assigns a UUID if none is set
func (j *SyncJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	return nil
}

// IsTerminal reports whether the job has reached a final state
func (s SyncJobStatus) IsTerminal() bool {
	return s == SyncStatusCompleted || s == SyncStatusFailed || s == SyncStatusCancelled
}
