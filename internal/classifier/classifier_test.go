package classifier

import (
	"testing"

	"github.com/ronika/stalkarr/internal/models"
)

func TestCategoryType(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		alias    string
		expected models.CategoryType
	}{
		{"plain movie category", "Action Movies", "action", models.CategoryTypeMovie},
		{"series by title", "TV Series", "tv", models.CategoryTypeSeries},
		{"serials by alias", "Russian", "ru_serials", models.CategoryTypeSeries},
		{"web series", "Web_Series HD", "web", models.CategoryTypeSeries},
		{"anime", "Anime", "anime", models.CategoryTypeSeries},
		{"documentary", "Documentary", "docs", models.CategoryTypeSeries},
		{"shows", "Talk Shows", "talk", models.CategoryTypeSeries},
		{"case insensitive", "series", "", models.CategoryTypeSeries},
		{"empty", "", "", models.CategoryTypeMovie},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategoryType(tt.title, tt.alias); got != tt.expected {
				t.Errorf("CategoryType(%q, %q) = %s, want %s", tt.title, tt.alias, got, tt.expected)
			}
		})
	}
}

func TestIsWildcardCategory(t *testing.T) {
	tests := []struct {
		name       string
		externalID string
		title      string
		expected   bool
	}{
		{"star id", "*", "Everything", true},
		{"all in title", "10", "All Movies", true},
		{"all case insensitive", "10", "ALL", true},
		{"regular category", "7", "Comedy", false},
		{"all as substring of word still matches", "3", "Football", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsWildcardCategory(tt.externalID, tt.title); got != tt.expected {
				t.Errorf("IsWildcardCategory(%q, %q) = %v, want %v", tt.externalID, tt.title, got, tt.expected)
			}
		})
	}
}
