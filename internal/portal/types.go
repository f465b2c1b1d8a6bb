package portal

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// envelope is the outer wrapper every Stalker portal response uses
type envelope struct {
	Js json.RawMessage `json:"js"`
}

// FlexString decodes a JSON value that may arrive as a string or a number.
// Portals are inconsistent about this, even across pages of one listing.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(data)
	return nil
}

// String returns the underlying string value
func (f FlexString) String() string {
	return string(f)
}

// Int parses the value as an integer, returning 0 on failure
func (f FlexString) Int() int {
	n, err := strconv.Atoi(strings.TrimSpace(string(f)))
	if err != nil {
		return 0
	}
	return n
}

// Bool interprets the portal's "1"/1/true truthiness convention
func (f FlexString) Bool() bool {
	switch strings.TrimSpace(strings.ToLower(string(f))) {
	case "1", "true":
		return true
	default:
		return false
	}
}

// Genre is a category entry from get_genres / get_categories
type Genre struct {
	ID    FlexString `json:"id"`
	Title string     `json:"title"`
	Alias string     `json:"alias"`
}

// rawListing is the inner payload of a paginated get_ordered_list response
type rawListing struct {
	Data       json.RawMessage `json:"data"`
	TotalItems FlexString      `json:"total_items"`
	Total      FlexString      `json:"total"`
}

// rawChannel is one channel record as the portal sends it
type rawChannel struct {
	ID        FlexString `json:"id"`
	Name      string     `json:"name"`
	Number    FlexString `json:"number"`
	Logo      string     `json:"logo"`
	Cmd       string     `json:"cmd"`
	TvGenreID FlexString `json:"tv_genre_id"`
}

// Channel is a normalized live TV channel record
type Channel struct {
	ExternalID string
	Name       string
	Number     int
	Logo       string
	Cmd        string
	GenreID    string
}

// ChannelPage is one page of the channel listing
type ChannelPage struct {
	Channels []Channel
	Total    int
}

// rawItem is one VOD record as the portal sends it. Field names carry the
// portal's historical aliases; normalization happens in normalizeItem.
type rawItem struct {
	ID              FlexString `json:"id"`
	Name            string     `json:"name"`
	OName           string     `json:"o_name"`
	Description     string     `json:"description"`
	ScreenshotURI   string     `json:"screenshot_uri"`
	Pic             string     `json:"pic"`
	Cover           string     `json:"cover"`
	Year            FlexString `json:"year"`
	YearEnd         FlexString `json:"year_end"`
	Director        string     `json:"director"`
	Actors          string     `json:"actors"`
	Country         string     `json:"country"`
	RatingImdb      FlexString `json:"rating_imdb"`
	RatingKinopoisk FlexString `json:"rating_kinopoisk"`
	KinopoiskID     FlexString `json:"kinopoisk_id"`
	GenresStr       string     `json:"genres_str"`
	Duration        FlexString `json:"duration"`
	Added           string     `json:"added"`
	LastPlayed      string     `json:"last_played"`
	HD              FlexString `json:"hd"`
	HighQuality     FlexString `json:"high_quality"`
	Censored        FlexString `json:"censored"`
	HasFiles        FlexString `json:"has_files"`
	Cmd             string     `json:"cmd"`
	CategoryID      FlexString `json:"category_id"`
	IsSeries        FlexString `json:"is_series"`
}

// Item is a normalized VOD record. IsSeries is the tagged-union discriminant,
// resolved once here instead of re-checking '1' vs 1 at every call site.
type Item struct {
	ExternalID      string
	IsSeries        bool
	Name            string
	OriginalName    string
	Description     string
	Poster          string
	Year            string
	YearEnd         string
	Director        string
	Actors          string
	Country         string
	RatingImdb      string
	RatingKinopoisk string
	KinopoiskID     string
	Genres          string
	Duration        string
	Added           string
	LastPlayed      string
	IsHd            bool
	HighQuality     bool
	Censored        bool
	EpisodeCount    int
	Cmd             string
	CategoryID      string
}

// ItemPage is one page of a VOD listing
type ItemPage struct {
	Items []Item
	Total int
}

// Season is one season entry for a series
type Season struct {
	ID   FlexString `json:"id"`
	Name string     `json:"name"`
}

// rawSeason carries the portal's season field aliases
type rawSeason struct {
	ID         FlexString `json:"id"`
	SeasonID   FlexString `json:"season_id"`
	Name       string     `json:"name"`
	SeasonName string     `json:"season_name"`
}

// Episode is one episode entry within a season
type Episode struct {
	ID   string
	Name string
	Cmd  string
}

// rawEpisode is one episode record as the portal sends it
type rawEpisode struct {
	ID   FlexString `json:"id"`
	Name string     `json:"name"`
	Cmd  string     `json:"cmd"`
}

// EpisodePage is one page of a season's episode listing
type EpisodePage struct {
	Episodes []Episode
	Total    int
}

// File is a resolved playable file for a movie or episode
type File struct {
	ID  string
	Cmd string
}

// rawFile is a file record as the portal sends it
type rawFile struct {
	ID  FlexString `json:"id"`
	Cmd string     `json:"cmd"`
}

// normalizeItem resolves a raw VOD record into the tagged Item form
func normalizeItem(r rawItem) Item {
	name := r.Name
	if name == "" {
		name = r.OName
	}

	// Poster aliases in priority order
	poster := r.ScreenshotURI
	if poster == "" {
		poster = r.Pic
	}
	if poster == "" {
		poster = r.Cover
	}

	return Item{
		ExternalID:      r.ID.String(),
		IsSeries:        r.IsSeries.Bool(),
		Name:            name,
		OriginalName:    r.OName,
		Description:     r.Description,
		Poster:          poster,
		Year:            r.Year.String(),
		YearEnd:         r.YearEnd.String(),
		Director:        r.Director,
		Actors:          r.Actors,
		Country:         r.Country,
		RatingImdb:      r.RatingImdb.String(),
		RatingKinopoisk: r.RatingKinopoisk.String(),
		KinopoiskID:     r.KinopoiskID.String(),
		Genres:          r.GenresStr,
		Duration:        r.Duration.String(),
		Added:           r.Added,
		LastPlayed:      r.LastPlayed,
		IsHd:            r.HD.Bool(),
		HighQuality:     r.HighQuality.Bool(),
		Censored:        r.Censored.Bool(),
		EpisodeCount:    r.HasFiles.Int(),
		Cmd:             r.Cmd,
		CategoryID:      r.CategoryID.String(),
	}
}

// normalizeChannel resolves a raw channel record
func normalizeChannel(r rawChannel) Channel {
	return Channel{
		ExternalID: r.ID.String(),
		Name:       r.Name,
		Number:     r.Number.Int(),
		Logo:       r.Logo,
		Cmd:        r.Cmd,
		GenreID:    r.TvGenreID.String(),
	}
}
