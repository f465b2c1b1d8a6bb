package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CategoryType represents the kind of content a category groups
type CategoryType string

const (
	CategoryTypeChannel CategoryType = "CHANNEL"
	CategoryTypeMovie   CategoryType = "MOVIE"
	CategoryTypeSeries  CategoryType = "SERIES"
)

// Category represents an upstream genre/category, scoped to a provider.
// (ProviderID, ExternalID) is the natural key used for upserts.
type Category struct {
	ID         string       `gorm:"type:varchar(36);primaryKey" json:"id"`
	ProviderID string       `gorm:"type:varchar(36);not null;uniqueIndex:idx_categories_provider_external" json:"provider_id"`
	ExternalID string       `gorm:"type:varchar(64);not null;uniqueIndex:idx_categories_provider_external" json:"external_id"`
	Name       string       `gorm:"type:varchar(255);not null" json:"name"`
	Type       CategoryType `gorm:"type:varchar(20);not null;index" json:"type"`
	CreatedAt  time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName specifies the table name for Category
func (Category) TableName() string {
	return "categories"
}

// BeforeCreate assigns a UUID if none is set
func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}
