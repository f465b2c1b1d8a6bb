package sync

import (
	"strconv"
	"strings"
	"time"

	"github.com/ronika/stalkarr/internal/logger"
	"github.com/ronika/stalkarr/internal/models"
	"github.com/ronika/stalkarr/internal/portal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ItemKind reports how a reconciled VOD item was classified
type ItemKind int

const (
	KindMovie ItemKind = iota
	KindSeries
)

// dateSentinel is the upstream's "no date" placeholder
const dateSentinel = "0000-00-00 00:00:00"

// Reconciler maps normalized upstream records onto local entities.
// All writes are idempotent upserts keyed by (providerID, externalID).
type Reconciler struct {
	db     *gorm.DB
	logger *logger.Logger
}

// NewReconciler creates a reconciler on the given store
func NewReconciler(db *gorm.DB, log *logger.Logger) *Reconciler {
	if log == nil {
		log = logger.AppLogger()
	}
	return &Reconciler{db: db, logger: log}
}

// conflictTarget is the upsert key shared by all synced entities
var conflictTarget = []clause.Column{{Name: "provider_id"}, {Name: "external_id"}}

// UpsertCategory stores one upstream category and returns the local row
func (r *Reconciler) UpsertCategory(providerID string, genre portal.Genre, ctype models.CategoryType) (*models.Category, error) {
	name := genre.Title
	if name == "" {
		name = genre.Alias
	}

	category := models.Category{
		ProviderID: providerID,
		ExternalID: genre.ID.String(),
		Name:       name,
		Type:       ctype,
	}

	err := r.db.Clauses(clause.OnConflict{
		Columns:   conflictTarget,
		DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
	}).Create(&category).Error
	if err != nil {
		return nil, err
	}

	// The upsert path does not report the surviving row's ID, so read it back
	var saved models.Category
	if err := r.db.Where("provider_id = ? AND external_id = ?", providerID, category.ExternalID).
		First(&saved).Error; err != nil {
		return nil, err
	}
	return &saved, nil
}

// UpsertChannel stores one channel record. baseHost is the portal's
// scheme://host, used to resolve relative logo paths.
func (r *Reconciler) UpsertChannel(providerID string, categoryID *string, ch portal.Channel, baseHost string) error {
	channel := models.Channel{
		ProviderID: providerID,
		ExternalID: ch.ExternalID,
		CategoryID: categoryID,
		Name:       ch.Name,
		Number:     intPtr(ch.Number),
		Logo:       strPtr(normalizeLogoURL(ch.Logo, baseHost)),
		Cmd:        strPtr(ch.Cmd),
		IsActive:   true,
	}

	return r.db.Clauses(clause.OnConflict{
		Columns: conflictTarget,
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "number", "logo", "cmd", "category_id", "updated_at",
		}),
	}).Create(&channel).Error
}

// UpsertItem stores one VOD record as a Movie or Series depending on its
// discriminant. Unresolvable category references yield a nil CategoryID;
// the item is still saved. New rows start active; re-syncs never touch
// is_active, so a manually deactivated row stays deactivated.
func (r *Reconciler) UpsertItem(providerID string, categoryMap map[string]string, item portal.Item) (ItemKind, error) {
	var categoryID *string
	if item.CategoryID != "" {
		if localID, ok := categoryMap[item.CategoryID]; ok {
			categoryID = &localID
		}
	}

	if item.IsSeries {
		return KindSeries, r.upsertSeries(providerID, categoryID, item)
	}
	return KindMovie, r.upsertMovie(providerID, categoryID, item)
}

func (r *Reconciler) upsertMovie(providerID string, categoryID *string, item portal.Item) error {
	movie := models.Movie{
		ProviderID:      providerID,
		ExternalID:      item.ExternalID,
		CategoryID:      categoryID,
		Name:            item.Name,
		OriginalName:    strPtr(item.OriginalName),
		Description:     strPtr(item.Description),
		Poster:          strPtr(item.Poster),
		Year:            parseIntPtr(item.Year),
		Director:        strPtr(item.Director),
		Actors:          strPtr(item.Actors),
		Country:         strPtr(item.Country),
		RatingImdb:      parseFloatPtr(item.RatingImdb),
		RatingKinopoisk: parseFloatPtr(item.RatingKinopoisk),
		KinopoiskID:     strPtr(item.KinopoiskID),
		Genres:          strPtr(item.Genres),
		Duration:        parseIntPtr(item.Duration),
		AddedAt:         parseDatePtr(item.Added),
		IsHd:            item.IsHd,
		HighQuality:     item.HighQuality,
		Censored:        item.Censored,
		Cmd:             strPtr(item.Cmd),
		IsActive:        true,
	}

	return r.db.Clauses(clause.OnConflict{
		Columns: conflictTarget,
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "original_name", "description", "poster", "year", "director",
			"actors", "country", "rating_imdb", "rating_kinopoisk", "kinopoisk_id",
			"genres", "duration", "added_at", "is_hd", "high_quality", "censored",
			"cmd", "category_id", "updated_at",
		}),
	}).Create(&movie).Error
}

func (r *Reconciler) upsertSeries(providerID string, categoryID *string, item portal.Item) error {
	series := models.Series{
		ProviderID:      providerID,
		ExternalID:      item.ExternalID,
		CategoryID:      categoryID,
		Name:            item.Name,
		OriginalName:    strPtr(item.OriginalName),
		Description:     strPtr(item.Description),
		Poster:          strPtr(item.Poster),
		Year:            parseIntPtr(item.Year),
		YearEnd:         parseIntPtr(item.YearEnd),
		Director:        strPtr(item.Director),
		Actors:          strPtr(item.Actors),
		Country:         strPtr(item.Country),
		RatingImdb:      parseFloatPtr(item.RatingImdb),
		RatingKinopoisk: parseFloatPtr(item.RatingKinopoisk),
		KinopoiskID:     strPtr(item.KinopoiskID),
		Genres:          strPtr(item.Genres),
		EpisodeCount:    item.EpisodeCount,
		AddedAt:         parseDatePtr(item.Added),
		IsHd:            item.IsHd,
		HighQuality:     item.HighQuality,
		Censored:        item.Censored,
		Cmd:             strPtr(item.Cmd),
		IsActive:        true,
	}

	return r.db.Clauses(clause.OnConflict{
		Columns: conflictTarget,
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "original_name", "description", "poster", "year", "year_end",
			"director", "actors", "country", "rating_imdb", "rating_kinopoisk",
			"kinopoisk_id", "genres", "episode_count", "added_at", "is_hd",
			"high_quality", "censored", "cmd", "category_id", "updated_at",
		}),
	}).Create(&series).Error
}

// normalizeLogoURL resolves the portal's three logo formats: full URLs,
// absolute paths, and bare filenames under the standard logo directory
func normalizeLogoURL(logo, baseHost string) string {
	switch {
	case logo == "":
		return ""
	case strings.HasPrefix(logo, "http://") || strings.HasPrefix(logo, "https://"):
		return logo
	case strings.HasPrefix(logo, "/"):
		return baseHost + logo
	default:
		return baseHost + "/misc/logos/320/" + logo
	}
}

// parseIntPtr returns nil for non-numeric or missing input
func parseIntPtr(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

// parseFloatPtr returns nil for non-numeric or missing input
func parseFloatPtr(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

// parseDatePtr handles the upstream "0000-00-00 00:00:00" sentinel and
// malformed dates by yielding nil
func parseDatePtr(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" || s == dateSentinel {
		return nil
	}
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		return nil
	}
	return &t
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func intPtr(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}
