package sync

import (
	"context"

	"github.com/ronika/stalkarr/internal/classifier"
	apperrors "github.com/ronika/stalkarr/internal/errors"
	"github.com/ronika/stalkarr/internal/models"
	"github.com/ronika/stalkarr/internal/portal"
)

// syncChannelCategories upserts the portal's TV genres and returns a map
// from upstream genre id to local category id
func (w *Walker) syncChannelCategories(ctx context.Context, client PortalClient, providerID string) (map[string]string, error) {
	genres, err := client.GetGenres(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUpstream, "failed to fetch channel genres")
	}

	categoryMap := make(map[string]string, len(genres))
	for _, genre := range genres {
		saved, err := w.reconciler.UpsertCategory(providerID, genre, models.CategoryTypeChannel)
		if err != nil {
			w.logger.WithFields(map[string]interface{}{
				"component":   "walker",
				"provider_id": providerID,
				"genre":       genre.Title,
			}).Error("Failed to save channel genre, skipping", err)
			continue
		}
		categoryMap[genre.ID.String()] = saved.ID
	}
	return categoryMap, nil
}

// syncVodCategories upserts the portal's VOD categories, typed by title
// keywords, and returns the upstream-ordered list plus the id map
func (w *Walker) syncVodCategories(ctx context.Context, client PortalClient, providerID string) ([]portal.Genre, map[string]string, error) {
	categories, err := client.GetVodCategories(ctx)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.CodeUpstream, "failed to fetch vod categories")
	}

	categoryMap := make(map[string]string, len(categories))
	for _, category := range categories {
		if classifier.IsWildcardCategory(category.ID.String(), category.Title) {
			continue
		}
		ctype := classifier.CategoryType(category.Title, category.Alias)
		saved, err := w.reconciler.UpsertCategory(providerID, category, ctype)
		if err != nil {
			w.logger.WithFields(map[string]interface{}{
				"component":   "walker",
				"provider_id": providerID,
				"category":    category.Title,
			}).Error("Failed to save vod category, skipping", err)
			continue
		}
		categoryMap[category.ID.String()] = saved.ID
	}
	return categories, categoryMap, nil
}
