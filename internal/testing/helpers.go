package testing

import (
	"fmt"
	"testing"
	"time"

	"github.com/ronika/stalkarr/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB creates an in-memory SQLite database for testing
func TestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// Run migrations
	if err := db.AutoMigrate(
		&models.Provider{},
		&models.Category{},
		&models.Channel{},
		&models.Movie{},
		&models.Series{},
		&models.SyncJob{},
		&models.Snapshot{},
	); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

// CreateProvider creates a test provider
func CreateProvider(db *gorm.DB, overrides ...func(*models.Provider)) *models.Provider {
	provider := &models.Provider{
		Name:     "Test Portal",
		URL:      "http://portal.example.com/",
		Mac:      "00:1A:79:00:00:01",
		IsActive: true,
	}

	for _, override := range overrides {
		override(provider)
	}

	db.Create(provider)
	return provider
}

// CreateCategory creates a test category
func CreateCategory(db *gorm.DB, providerID string, overrides ...func(*models.Category)) *models.Category {
	category := &models.Category{
		ProviderID: providerID,
		ExternalID: fmt.Sprintf("cat_%d", time.Now().UnixNano()),
		Name:       "Test Category",
		Type:       models.CategoryTypeMovie,
	}

	for _, override := range overrides {
		override(category)
	}

	db.Create(category)
	return category
}

// CreateChannel creates a test channel
func CreateChannel(db *gorm.DB, providerID string, overrides ...func(*models.Channel)) *models.Channel {
	number := 1
	cmd := "ffmpeg http://localhost/ch/1"
	channel := &models.Channel{
		ProviderID: providerID,
		ExternalID: fmt.Sprintf("ch_%d", time.Now().UnixNano()),
		Name:       "Test Channel",
		Number:     &number,
		Cmd:        &cmd,
		IsActive:   true,
	}

	for _, override := range overrides {
		override(channel)
	}

	db.Create(channel)
	return channel
}

// CreateMovie creates a test movie
func CreateMovie(db *gorm.DB, providerID string, overrides ...func(*models.Movie)) *models.Movie {
	year := 2024
	movie := &models.Movie{
		ProviderID: providerID,
		ExternalID: fmt.Sprintf("mov_%d", time.Now().UnixNano()),
		Name:       "Test Movie",
		Year:       &year,
		IsActive:   true,
	}

	for _, override := range overrides {
		override(movie)
	}

	db.Create(movie)
	return movie
}

// CreateSeries creates a test series
func CreateSeries(db *gorm.DB, providerID string, overrides ...func(*models.Series)) *models.Series {
	year := 2024
	series := &models.Series{
		ProviderID:   providerID,
		ExternalID:   fmt.Sprintf("ser_%d", time.Now().UnixNano()),
		Name:         "Test Series",
		Year:         &year,
		EpisodeCount: 8,
		IsActive:     true,
	}

	for _, override := range overrides {
		override(series)
	}

	db.Create(series)
	return series
}

// CreateSyncJob creates a test sync job
func CreateSyncJob(db *gorm.DB, providerID string, overrides ...func(*models.SyncJob)) *models.SyncJob {
	job := &models.SyncJob{
		ProviderID: providerID,
		Status:     models.SyncStatusProcessing,
		StartedAt:  time.Now(),
	}

	for _, override := range overrides {
		override(job)
	}

	db.Create(job)
	return job
}

// WithExternalID sets the external id for a movie
func WithExternalID(id string) func(*models.Movie) {
	return func(movie *models.Movie) {
		movie.ExternalID = id
	}
}

// WithSeriesExternalID sets the external id for a series
func WithSeriesExternalID(id string) func(*models.Series) {
	return func(series *models.Series) {
		series.ExternalID = id
	}
}

// WithCategoryType sets the type for a category
func WithCategoryType(ctype models.CategoryType) func(*models.Category) {
	return func(category *models.Category) {
		category.Type = ctype
	}
}

// WithJobStatus sets the status for a sync job
func WithJobStatus(status models.SyncJobStatus) func(*models.SyncJob) {
	return func(job *models.SyncJob) {
		job.Status = status
	}
}

// WithFirstFullSyncCompleted marks the provider as having finished a full sync
func WithFirstFullSyncCompleted() func(*models.Provider) {
	return func(provider *models.Provider) {
		provider.FirstFullSyncCompleted = true
	}
}

// AssertCount verifies the count of records in a table
func AssertCount(t *testing.T, db *gorm.DB, model interface{}, expected int64, message string) {
	t.Helper()
	var count int64
	db.Model(model).Count(&count)
	if count != expected {
		t.Fatalf("%s: expected count %d, got %d", message, expected, count)
	}
}
