package sync

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"time"

	apperrors "github.com/ronika/stalkarr/internal/errors"
	"github.com/ronika/stalkarr/internal/logger"
	"github.com/ronika/stalkarr/internal/models"
	"gorm.io/gorm"
)

// uncategorized groups entities whose category reference did not resolve
const uncategorized = "uncategorized"

// SnapshotBuilder assembles point-in-time catalog snapshots after a sync
// finishes and prunes old ones per provider
type SnapshotBuilder struct {
	db        *gorm.DB
	retention int
	logger    *logger.Logger
}

// NewSnapshotBuilder creates a builder keeping retention snapshots per provider
func NewSnapshotBuilder(db *gorm.DB, retention int, log *logger.Logger) *SnapshotBuilder {
	if log == nil {
		log = logger.AppLogger()
	}
	if retention <= 0 {
		retention = DefaultOptions().SnapshotRetention
	}
	return &SnapshotBuilder{db: db, retention: retention, logger: log}
}

// SnapshotCategory is one category's slice of the catalog
type SnapshotCategory struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Type        string           `json:"type"`
	HasMovies   bool             `json:"has_movies"`
	HasSeries   bool             `json:"has_series"`
	HasChannels bool             `json:"has_channels"`
	Movies      []models.Movie   `json:"movies,omitempty"`
	Series      []models.Series  `json:"series,omitempty"`
	Channels    []models.Channel `json:"channels,omitempty"`
}

// SnapshotPayload is the decompressed snapshot document
type SnapshotPayload struct {
	ProviderID    string             `json:"provider_id"`
	GeneratedAt   time.Time          `json:"generated_at"`
	MoviesCount   int                `json:"movies_count"`
	SeriesCount   int                `json:"series_count"`
	ChannelsCount int                `json:"channels_count"`
	Categories    []SnapshotCategory `json:"categories"`
}

// Build captures the provider's active catalog grouped by category, stores
// it compressed, and prunes snapshots beyond the retention window
func (b *SnapshotBuilder) Build(providerID string) (*models.Snapshot, error) {
	log := b.logger.WithFields(map[string]interface{}{
		"component":   "snapshot",
		"provider_id": providerID,
	})

	var categories []models.Category
	if err := b.db.Where("provider_id = ?", providerID).
		Order("name").Find(&categories).Error; err != nil {
		return nil, apperrors.DatabaseError("failed to load categories", err)
	}

	var movies []models.Movie
	if err := b.db.Where("provider_id = ? AND is_active = ?", providerID, true).
		Find(&movies).Error; err != nil {
		return nil, apperrors.DatabaseError("failed to load movies", err)
	}

	var series []models.Series
	if err := b.db.Where("provider_id = ? AND is_active = ?", providerID, true).
		Find(&series).Error; err != nil {
		return nil, apperrors.DatabaseError("failed to load series", err)
	}

	var channels []models.Channel
	if err := b.db.Where("provider_id = ? AND is_active = ?", providerID, true).
		Find(&channels).Error; err != nil {
		return nil, apperrors.DatabaseError("failed to load channels", err)
	}

	payload := SnapshotPayload{
		ProviderID:    providerID,
		GeneratedAt:   time.Now().UTC(),
		MoviesCount:   len(movies),
		SeriesCount:   len(series),
		ChannelsCount: len(channels),
		Categories:    groupByCategory(categories, movies, series, channels),
	}

	data, err := compressPayload(payload)
	if err != nil {
		return nil, err
	}

	snapshot := models.Snapshot{
		ProviderID: providerID,
		Type:       models.SnapshotTypeVodSync,
		Data:       data,
	}
	if err := b.db.Create(&snapshot).Error; err != nil {
		return nil, apperrors.DatabaseError("failed to store snapshot", err)
	}

	if err := b.prune(providerID); err != nil {
		log.Error("Snapshot pruning failed", err)
	}

	log.WithFields(map[string]interface{}{
		"action":     "snapshot_built",
		"movies":     payload.MoviesCount,
		"series":     payload.SeriesCount,
		"channels":   payload.ChannelsCount,
		"categories": len(payload.Categories),
		"bytes":      len(data),
	}).Info("Snapshot stored")
	return &snapshot, nil
}

// compressPayload serializes and gzips the snapshot document
func compressPayload(payload SnapshotPayload) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(payload); err != nil {
		zw.Close()
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to serialize snapshot")
	}
	if err := zw.Close(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to compress snapshot")
	}
	return buf.Bytes(), nil
}

// Latest returns the newest snapshot row for a provider
func (b *SnapshotBuilder) Latest(providerID string) (*models.Snapshot, error) {
	var snapshot models.Snapshot
	err := b.db.Where("provider_id = ? AND type = ?", providerID, models.SnapshotTypeVodSync).
		Order("created_at DESC").First(&snapshot).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperrors.NotFoundError("snapshot", providerID)
	}
	if err != nil {
		return nil, apperrors.DatabaseError("failed to load snapshot", err)
	}
	return &snapshot, nil
}

// Decode decompresses a stored snapshot back into its payload
func Decode(snapshot *models.Snapshot) (*SnapshotPayload, error) {
	zr, err := gzip.NewReader(bytes.NewReader(snapshot.Data))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "corrupt snapshot data")
	}
	defer zr.Close()

	var payload SnapshotPayload
	if err := json.NewDecoder(zr).Decode(&payload); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "corrupt snapshot payload")
	}
	return &payload, nil
}

// prune deletes everything past the newest retention snapshots
func (b *SnapshotBuilder) prune(providerID string) error {
	var keep []string
	if err := b.db.Model(&models.Snapshot{}).
		Where("provider_id = ? AND type = ?", providerID, models.SnapshotTypeVodSync).
		Order("created_at DESC").
		Limit(b.retention).
		Pluck("id", &keep).Error; err != nil {
		return err
	}
	if len(keep) < b.retention {
		return nil
	}
	return b.db.Where("provider_id = ? AND type = ? AND id NOT IN ?",
		providerID, models.SnapshotTypeVodSync, keep).
		Delete(&models.Snapshot{}).Error
}

// groupByCategory assembles the per-category slices, routing entities with
// unresolved categories into a synthetic uncategorized bucket
func groupByCategory(categories []models.Category, movies []models.Movie, series []models.Series, channels []models.Channel) []SnapshotCategory {
	index := make(map[string]*SnapshotCategory, len(categories)+1)
	ordered := make([]*SnapshotCategory, 0, len(categories)+1)

	for _, c := range categories {
		sc := &SnapshotCategory{ID: c.ID, Name: c.Name, Type: string(c.Type)}
		index[c.ID] = sc
		ordered = append(ordered, sc)
	}

	bucket := func(categoryID *string) *SnapshotCategory {
		if categoryID != nil {
			if sc, ok := index[*categoryID]; ok {
				return sc
			}
		}
		if sc, ok := index[uncategorized]; ok {
			return sc
		}
		sc := &SnapshotCategory{ID: uncategorized, Name: "Uncategorized", Type: uncategorized}
		index[uncategorized] = sc
		ordered = append(ordered, sc)
		return sc
	}

	for _, m := range movies {
		sc := bucket(m.CategoryID)
		sc.Movies = append(sc.Movies, m)
		sc.HasMovies = true
	}
	for _, s := range series {
		sc := bucket(s.CategoryID)
		sc.Series = append(sc.Series, s)
		sc.HasSeries = true
	}
	for _, ch := range channels {
		sc := bucket(ch.CategoryID)
		sc.Channels = append(sc.Channels, ch)
		sc.HasChannels = true
	}

	// Empty categories add noise to every snapshot, drop them
	out := make([]SnapshotCategory, 0, len(ordered))
	for _, sc := range ordered {
		if sc.HasMovies || sc.HasSeries || sc.HasChannels {
			out = append(out, *sc)
		}
	}
	return out
}
