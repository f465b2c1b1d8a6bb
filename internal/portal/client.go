package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ronika/stalkarr/internal/circuitbreaker"
	apperrors "github.com/ronika/stalkarr/internal/errors"
	"github.com/ronika/stalkarr/internal/logger"
	"github.com/ronika/stalkarr/internal/retry"
)

const (
	// DefaultPageSize is the fixed page size of Stalker ordered-list endpoints
	DefaultPageSize = 14

	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "Mozilla/5.0 (QtEmbedded; U; Linux; C) AppleWebKit/533.3 (KHTML, like Gecko) MAG200 stbapp ver: 2 rev: 250 Safari/533.3"
	defaultTimezone  = "America/Toronto"

	endpointPath = "server/load.php"
)

// Client talks to one Stalker portal. Safe for concurrent use; the walker
// fetches pages of one batch in parallel through a single client.
type Client struct {
	baseURL    string
	mac        string
	bearer     string
	adid       string
	userAgent  string
	timezone   string
	pageSize   int
	httpClient *http.Client
	logger     *logger.Logger
	circuitBrk *circuitbreaker.CircuitBreaker
	retryCfg   retry.Config

	mu    sync.RWMutex
	token string
}

// Config holds portal client configuration
type Config struct {
	BaseURL        string
	Mac            string
	Bearer         string
	Adid           string
	Token          string // previously acquired session token, may be empty
	UserAgent      string
	Timezone       string
	PageSize       int
	Timeout        time.Duration
	MaxFailures    uint
	BreakerTimeout time.Duration
	RetryAttempts  int
	Logger         *logger.Logger
}

// NewClient creates a new Stalker portal client
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timezone == "" {
		cfg.Timezone = defaultTimezone
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.BreakerTimeout == 0 {
		cfg.BreakerTimeout = 60 * time.Second
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.AppLogger()
	}

	baseURL := cfg.BaseURL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	cb := circuitbreaker.New(circuitbreaker.Config{
		MaxFailures: cfg.MaxFailures,
		Timeout:     cfg.BreakerTimeout,
	})

	return &Client{
		baseURL:   baseURL,
		mac:       cfg.Mac,
		bearer:    cfg.Bearer,
		adid:      cfg.Adid,
		userAgent: cfg.UserAgent,
		timezone:  cfg.Timezone,
		pageSize:  cfg.PageSize,
		token:     cfg.Token,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger:     cfg.Logger,
		circuitBrk: cb,
		retryCfg: retry.Config{
			MaxAttempts:       cfg.RetryAttempts,
			InitialBackoff:    500 * time.Millisecond,
			MaxBackoff:        10 * time.Second,
			BackoffMultiplier: 2.0,
			JitterFraction:    0.1,
		},
	}
}

// PageSize returns the portal's listing page size
func (c *Client) PageSize() int {
	return c.pageSize
}

// TotalPages computes the page count for a reported item total
func (c *Client) TotalPages(total int) int {
	if total <= 0 {
		return 0
	}
	return (total + c.pageSize - 1) / c.pageSize
}

// BaseHost returns the scheme://host portion of the portal URL, used for
// resolving relative logo paths
func (c *Client) BaseHost() string {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return strings.TrimSuffix(c.baseURL, "/")
	}
	return fmt.Sprintf("%s://%s", u.Scheme, u.Host)
}

// Handshake acquires a fresh session token. Portal tokens expire quickly,
// so a sync run always starts with a handshake.
func (c *Client) Handshake(ctx context.Context) error {
	raw, err := c.request(ctx, "stb", "handshake", nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeHandshakeFailed, "portal handshake failed")
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return apperrors.Wrap(err, apperrors.CodeHandshakeFailed, "malformed handshake response")
	}
	if resp.Token == "" {
		return apperrors.New(apperrors.CodeHandshakeFailed, "handshake returned no token")
	}

	c.mu.Lock()
	c.token = resp.Token
	c.mu.Unlock()

	return nil
}

// GetGenres returns the ITV genre list (channel categories)
func (c *Client) GetGenres(ctx context.Context) ([]Genre, error) {
	raw, err := c.call(ctx, "itv", "get_genres", nil)
	if err != nil {
		return nil, err
	}

	var genres []Genre
	if err := json.Unmarshal(raw, &genres); err != nil {
		return nil, apperrors.UpstreamError("malformed genre list", err)
	}
	return genres, nil
}

// GetVodCategories returns all VOD categories (movies and series mixed)
func (c *Client) GetVodCategories(ctx context.Context) ([]Genre, error) {
	raw, err := c.call(ctx, "vod", "get_categories", nil)
	if err != nil {
		return nil, err
	}

	var categories []Genre
	if err := json.Unmarshal(raw, &categories); err != nil {
		return nil, apperrors.UpstreamError("malformed category list", err)
	}
	return categories, nil
}

// GetChannels fetches one page of the channel listing for a genre.
// Pass "*" to list across all genres.
func (c *Client) GetChannels(ctx context.Context, genreID string, page int) (*ChannelPage, error) {
	params := url.Values{}
	params.Set("genre", genreID)
	params.Set("force_ch_link_check", "")
	params.Set("fav", "0")
	params.Set("sortby", "number")
	params.Set("hd", "0")
	params.Set("p", strconv.Itoa(page))

	raw, err := c.call(ctx, "itv", "get_ordered_list", params)
	if err != nil {
		return nil, err
	}

	listing, total, err := decodeListing(raw)
	if err != nil {
		return nil, err
	}

	var rawChannels []rawChannel
	if len(listing) > 0 {
		if err := json.Unmarshal(listing, &rawChannels); err != nil {
			return nil, apperrors.UpstreamError("malformed channel page", err)
		}
	}

	result := &ChannelPage{Total: total, Channels: make([]Channel, 0, len(rawChannels))}
	for _, r := range rawChannels {
		result.Channels = append(result.Channels, normalizeChannel(r))
	}
	return result, nil
}

// GetVodPage fetches one page of the VOD listing for a category.
// Pass "*" to list across all categories (used only for the total probe).
func (c *Client) GetVodPage(ctx context.Context, categoryID string, page int) (*ItemPage, error) {
	params := url.Values{}
	params.Set("category", categoryID)
	params.Set("genre", "0")
	params.Set("sortby", "")
	params.Set("p", strconv.Itoa(page))

	raw, err := c.call(ctx, "vod", "get_ordered_list", params)
	if err != nil {
		return nil, err
	}

	listing, total, err := decodeListing(raw)
	if err != nil {
		return nil, err
	}

	var rawItems []rawItem
	if len(listing) > 0 {
		if err := json.Unmarshal(listing, &rawItems); err != nil {
			return nil, apperrors.UpstreamError("malformed vod page", err)
		}
	}

	result := &ItemPage{Total: total, Items: make([]Item, 0, len(rawItems))}
	for _, r := range rawItems {
		result.Items = append(result.Items, normalizeItem(r))
	}
	return result, nil
}

// GetSeriesSeasons lists seasons for a series
func (c *Client) GetSeriesSeasons(ctx context.Context, seriesID string) ([]Season, error) {
	params := url.Values{}
	params.Set("movie_id", seriesID)

	raw, err := c.call(ctx, "vod", "get_ordered_list", params)
	if err != nil {
		return nil, err
	}

	listing, _, err := decodeListing(raw)
	if err != nil {
		return nil, err
	}

	var rawSeasons []rawSeason
	if len(listing) > 0 {
		if err := json.Unmarshal(listing, &rawSeasons); err != nil {
			return nil, apperrors.UpstreamError("malformed season list", err)
		}
	}

	seasons := make([]Season, 0, len(rawSeasons))
	for _, r := range rawSeasons {
		id := r.SeasonID
		if id.String() == "" {
			id = r.ID
		}
		name := r.SeasonName
		if name == "" {
			name = r.Name
		}
		seasons = append(seasons, Season{ID: id, Name: name})
	}
	return seasons, nil
}

// GetSeriesEpisodes fetches one page of a season's episode listing
func (c *Client) GetSeriesEpisodes(ctx context.Context, seriesID, seasonID string, page int) (*EpisodePage, error) {
	params := url.Values{}
	params.Set("movie_id", seriesID)
	params.Set("season_id", seasonID)
	params.Set("p", strconv.Itoa(page))

	raw, err := c.call(ctx, "vod", "get_ordered_list", params)
	if err != nil {
		return nil, err
	}

	listing, total, err := decodeListing(raw)
	if err != nil {
		return nil, err
	}

	var rawEpisodes []rawEpisode
	if len(listing) > 0 {
		if err := json.Unmarshal(listing, &rawEpisodes); err != nil {
			return nil, apperrors.UpstreamError("malformed episode page", err)
		}
	}

	episodePage := &EpisodePage{Total: total, Episodes: make([]Episode, 0, len(rawEpisodes))}
	for _, r := range rawEpisodes {
		episodePage.Episodes = append(episodePage.Episodes, Episode{
			ID:   r.ID.String(),
			Name: r.Name,
			Cmd:  r.Cmd,
		})
	}
	return episodePage, nil
}

// GetMovieFile resolves the playable file for a movie
func (c *Client) GetMovieFile(ctx context.Context, movieID string) (*File, error) {
	params := url.Values{}
	params.Set("movie_id", movieID)
	return c.getFile(ctx, params, "movie file")
}

// GetSeriesFile resolves the playable file for one episode of a series
func (c *Client) GetSeriesFile(ctx context.Context, seriesID, seasonID, episodeID string) (*File, error) {
	params := url.Values{}
	params.Set("movie_id", seriesID)
	params.Set("season_id", seasonID)
	params.Set("episode_id", episodeID)
	return c.getFile(ctx, params, "series file")
}

func (c *Client) getFile(ctx context.Context, params url.Values, what string) (*File, error) {
	raw, err := c.call(ctx, "vod", "get_ordered_list", params)
	if err != nil {
		return nil, err
	}

	listing, _, err := decodeListing(raw)
	if err != nil {
		return nil, err
	}

	var files []rawFile
	if len(listing) > 0 {
		if err := json.Unmarshal(listing, &files); err != nil {
			return nil, apperrors.UpstreamError(fmt.Sprintf("malformed %s response", what), err)
		}
	}
	if len(files) == 0 {
		return nil, apperrors.NotFoundError(what, params.Get("movie_id"))
	}

	return &File{ID: files[0].ID.String(), Cmd: files[0].Cmd}, nil
}

// CreateLink exchanges an opaque cmd token for a playable stream URL.
// kind is "itv", "vod" or "series".
func (c *Client) CreateLink(ctx context.Context, cmd, kind string) (string, error) {
	// Some playlists carry direct URLs in cmd already
	if strings.HasPrefix(cmd, "http") && !strings.Contains(cmd, "localhost") {
		return cmd, nil
	}

	params := url.Values{}
	params.Set("cmd", cmd)
	params.Set("force_ch_link_check", "0")

	reqType := kind
	if kind == "series" {
		reqType = "vod"
		params.Set("series", "1")
	}

	raw, err := c.call(ctx, reqType, "create_link", params)
	if err != nil {
		return "", err
	}

	var resp struct {
		Cmd string `json:"cmd"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", apperrors.UpstreamError("malformed create_link response", err)
	}
	if resp.Cmd == "" {
		return "", apperrors.New(apperrors.CodeUpstream, "create_link returned no cmd")
	}

	// Portals prefix the URL with a player hint like "ffmpeg http://..."
	fields := strings.Fields(resp.Cmd)
	return fields[len(fields)-1], nil
}

// call performs a portal request with a single re-handshake on auth expiry
func (c *Client) call(ctx context.Context, reqType, action string, params url.Values) (json.RawMessage, error) {
	raw, err := c.request(ctx, reqType, action, params)
	if err == nil || !apperrors.IsAuthExpired(err) {
		return raw, err
	}

	c.logger.WithFields(map[string]interface{}{
		"action": action,
	}).Warn("portal session expired, performing re-handshake")

	if hsErr := c.Handshake(ctx); hsErr != nil {
		return nil, hsErr
	}
	return c.request(ctx, reqType, action, params)
}

// request performs one portal HTTP request with retry and circuit breaker.
// Auth expiry is surfaced as-is so call can re-handshake exactly once.
func (c *Client) request(ctx context.Context, reqType, action string, params url.Values) (json.RawMessage, error) {
	reqURL, err := url.Parse(c.baseURL + endpointPath)
	if err != nil {
		return nil, apperrors.UpstreamError("invalid portal url", err)
	}

	q := url.Values{}
	q.Set("type", reqType)
	q.Set("action", action)
	q.Set("JsHttpRequest", "1-xml")
	for key, values := range params {
		for _, v := range values {
			q.Add(key, v)
		}
	}
	reqURL.RawQuery = q.Encode()

	operation := func() (json.RawMessage, error) {
		var raw json.RawMessage
		err := c.circuitBrk.Execute(func() error {
			var opErr error
			raw, opErr = c.doRequest(ctx, reqURL.String())
			return opErr
		})
		return raw, err
	}

	raw, err := retry.DoWithResult(ctx, c.retryCfg, operation, apperrors.IsRetryable)
	if err != nil {
		c.logger.WithFields(map[string]interface{}{
			"action": action,
			"type":   reqType,
			"error":  err.Error(),
		}).Debug("portal request failed")
		return nil, err
	}
	return raw, nil
}

func (c *Client) doRequest(ctx context.Context, requestURL string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, apperrors.UpstreamError("failed to build request", err)
	}

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()

	cookie := fmt.Sprintf("mac=%s; timezone=%s; adid=%s;", strings.ToLower(c.mac), c.timezone, c.adid)
	if token != "" {
		cookie += fmt.Sprintf(" st=%s;", token)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-User-Agent", "Model: MAG270; Link: WiFi")
	req.Header.Set("Referer", c.baseURL+"c/")
	req.Header.Set("Authorization", "Bearer "+c.bearer)
	req.Header.Set("Cookie", cookie)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, apperrors.Wrap(err, apperrors.CodeUpstreamTimeout, "portal request timed out")
		}
		return nil, apperrors.Wrap(err, apperrors.CodeServiceUnavailable, "portal unreachable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, apperrors.AuthExpiredError(fmt.Sprintf("portal rejected session (status %d)", resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, apperrors.New(apperrors.CodeRateLimited, "portal rate limit exceeded")
	case resp.StatusCode >= 500:
		return nil, apperrors.New(apperrors.CodeServiceUnavailable, fmt.Sprintf("portal error (status %d)", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperrors.New(apperrors.CodeUpstream, fmt.Sprintf("portal error (status %d): %s", resp.StatusCode, string(body)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.UpstreamError("failed to read portal response", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, apperrors.UpstreamError("portal response is not valid JSON", err)
	}
	js := bytes.TrimSpace(env.Js)
	if len(js) == 0 || bytes.Equal(js, []byte("null")) {
		// Some portals answer auth failures with 200 and an empty or null
		// envelope instead of a 401
		return nil, apperrors.AuthExpiredError("portal returned empty envelope")
	}
	return env.Js, nil
}

// decodeListing unpacks a get_ordered_list payload into its data array and total
func decodeListing(raw json.RawMessage) (json.RawMessage, int, error) {
	var listing rawListing
	if err := json.Unmarshal(raw, &listing); err != nil {
		return nil, 0, apperrors.UpstreamError("malformed listing envelope", err)
	}

	total := listing.TotalItems.Int()
	if total == 0 {
		total = listing.Total.Int()
	}
	return listing.Data, total, nil
}
