package classifier

import (
	"strings"

	"github.com/ronika/stalkarr/internal/models"
)

// seriesKeywords mark VOD categories that hold series rather than movies.
// Portals encode this only in the category title/alias text.
var seriesKeywords = []string{
	"SERIES",
	"SERIALS",
	"WEB_SERIES",
	"TV_SERIALS",
	"ANIME",
	"DOCUMENTARY",
	"DRAMA",
	"SHOWS",
}

// CategoryType determines whether a VOD category groups movies or series,
// based on its title and alias text
func CategoryType(title, alias string) models.CategoryType {
	combined := strings.ToUpper(title + " " + alias)
	for _, keyword := range seriesKeywords {
		if strings.Contains(combined, keyword) {
			return models.CategoryTypeSeries
		}
	}
	return models.CategoryTypeMovie
}

// IsWildcardCategory reports whether a category is the "all items"
// pseudo-category. It must be excluded from per-category walks (it would
// duplicate every item) but is still used for the total-count probe.
func IsWildcardCategory(externalID, title string) bool {
	if externalID == "*" {
		return true
	}
	return strings.Contains(strings.ToLower(title), "all")
}
