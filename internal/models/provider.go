package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Provider represents one upstream Stalker portal catalog source
type Provider struct {
	ID                     string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name                   string     `gorm:"type:varchar(255);not null" json:"name"`
	URL                    string     `gorm:"type:text;not null" json:"url"`
	Mac                    string     `gorm:"type:varchar(17);not null" json:"mac"`
	Bearer                 string     `gorm:"type:text" json:"-"`
	Adid                   string     `gorm:"type:varchar(64)" json:"-"`
	IsActive               bool       `gorm:"not null" json:"is_active"`
	FirstFullSyncCompleted bool       `gorm:"not null;default:false" json:"first_full_sync_completed"`
	LastSync               *time.Time `json:"last_sync,omitempty"`
	CreatedAt              time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"not null" json:"updated_at"`

	// Associations
	Categories []Category `gorm:"foreignKey:ProviderID;constraint:OnDelete=CASCADE" json:"-"`
	Channels   []Channel  `gorm:"foreignKey:ProviderID;constraint:OnDelete=CASCADE" json:"-"`
	Movies     []Movie    `gorm:"foreignKey:ProviderID;constraint:OnDelete=CASCADE" json:"-"`
	Series     []Series   `gorm:"foreignKey:ProviderID;constraint:OnDelete=CASCADE" json:"-"`
}

// TableName specifies the table name for Provider
func (Provider) TableName() string {
	return "providers"
}

// BeforeCreate assigns a UUID if none is set
func (p *Provider) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}
