package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Channel represents a live TV channel from an upstream portal
type Channel struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ProviderID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_channels_provider_external" json:"provider_id"`
	ExternalID string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_channels_provider_external" json:"external_id"`
	CategoryID *string   `gorm:"type:varchar(36);index" json:"category_id,omitempty"`
	Name       string    `gorm:"type:varchar(255);not null" json:"name"`
	Number     *int      `json:"number,omitempty"`
	Logo       *string   `gorm:"type:text" json:"logo,omitempty"`
	Cmd        *string   `gorm:"type:text" json:"cmd,omitempty"`
	IsActive   bool      `gorm:"not null" json:"is_active"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

// TableName specifies the table name for Channel
func (Channel) TableName() string {
	return "channels"
}

// BeforeCreate assigns a UUID if none is set
func (c *Channel) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// Movie represents a VOD movie from an upstream portal
type Movie struct {
	ID              string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	ProviderID      string     `gorm:"type:varchar(36);not null;uniqueIndex:idx_movies_provider_external" json:"provider_id"`
	ExternalID      string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_movies_provider_external" json:"external_id"`
	CategoryID      *string    `gorm:"type:varchar(36);index" json:"category_id,omitempty"`
	Name            string     `gorm:"type:varchar(512);not null" json:"name"`
	OriginalName    *string    `gorm:"type:varchar(512)" json:"original_name,omitempty"`
	Description     *string    `gorm:"type:text" json:"description,omitempty"`
	Poster          *string    `gorm:"type:text" json:"poster,omitempty"`
	Year            *int       `json:"year,omitempty"`
	Director        *string    `gorm:"type:varchar(512)" json:"director,omitempty"`
	Actors          *string    `gorm:"type:text" json:"actors,omitempty"`
	Country         *string    `gorm:"type:varchar(255)" json:"country,omitempty"`
	RatingImdb      *float64   `json:"rating_imdb,omitempty"`
	RatingKinopoisk *float64   `json:"rating_kinopoisk,omitempty"`
	KinopoiskID     *string    `gorm:"type:varchar(64)" json:"kinopoisk_id,omitempty"`
	Genres          *string    `gorm:"type:varchar(512)" json:"genres,omitempty"`
	Duration        *int       `json:"duration,omitempty"`
	AddedAt         *time.Time `json:"added_at,omitempty"`
	IsHd            bool       `gorm:"not null;default:false" json:"is_hd"`
	HighQuality     bool       `gorm:"not null;default:false" json:"high_quality"`
	Censored        bool       `gorm:"not null;default:false" json:"censored"`
	Cmd             *string    `gorm:"type:text" json:"cmd,omitempty"`
	IsActive        bool       `gorm:"not null" json:"is_active"`
	CreatedAt       time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"not null" json:"updated_at"`
}

// TableName specifies the table name for Movie
func (Movie) TableName() string {
	return "movies"
}

// BeforeCreate assigns a UUID if none is set
func (m *Movie) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

// Series represents a VOD series from an upstream portal
type Series struct {
	ID              string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	ProviderID      string     `gorm:"type:varchar(36);not null;uniqueIndex:idx_series_provider_external" json:"provider_id"`
	ExternalID      string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_series_provider_external" json:"external_id"`
	CategoryID      *string    `gorm:"type:varchar(36);index" json:"category_id,omitempty"`
	Name            string     `gorm:"type:varchar(512);not null" json:"name"`
	OriginalName    *string    `gorm:"type:varchar(512)" json:"original_name,omitempty"`
	Description     *string    `gorm:"type:text" json:"description,omitempty"`
	Poster          *string    `gorm:"type:text" json:"poster,omitempty"`
	Year            *int       `json:"year,omitempty"`
	YearEnd         *int       `json:"year_end,omitempty"`
	Director        *string    `gorm:"type:varchar(512)" json:"director,omitempty"`
	Actors          *string    `gorm:"type:text" json:"actors,omitempty"`
	Country         *string    `gorm:"type:varchar(255)" json:"country,omitempty"`
	RatingImdb      *float64   `json:"rating_imdb,omitempty"`
	RatingKinopoisk *float64   `json:"rating_kinopoisk,omitempty"`
	KinopoiskID     *string    `gorm:"type:varchar(64)" json:"kinopoisk_id,omitempty"`
	Genres          *string    `gorm:"type:varchar(512)" json:"genres,omitempty"`
	EpisodeCount    int        `gorm:"not null;default:0" json:"episode_count"`
	AddedAt         *time.Time `json:"added_at,omitempty"`
	IsHd            bool       `gorm:"not null;default:false" json:"is_hd"`
	HighQuality     bool       `gorm:"not null;default:false" json:"high_quality"`
	Censored        bool       `gorm:"not null;default:false" json:"censored"`
	Cmd             *string    `gorm:"type:text" json:"cmd,omitempty"`
	IsActive        bool       `gorm:"not null" json:"is_active"`
	CreatedAt       time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"not null" json:"updated_at"`
}

// TableName specifies the table name for Series
func (Series) TableName() string {
	return "series"
}

// BeforeCreate assigns a UUID if none is set
func (s *Series) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}
