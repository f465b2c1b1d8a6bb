package api

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/ronika/stalkarr/internal/models"
	"github.com/ronika/stalkarr/internal/portal"
	"github.com/ronika/stalkarr/internal/sync"
	apptesting "github.com/ronika/stalkarr/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeCatalog implements both the sync engine's and the API's portal
// surface so one fake drives a whole server
type fakeCatalog struct {
	handshakeErr error
	genres       []portal.Genre
	categories   []portal.Genre
	vodPages     map[string]map[int][]portal.Item
	seasons      []portal.Season
	episodes     []portal.Episode
	file         *portal.File
	streamURL    string
}

func (f *fakeCatalog) Handshake(ctx context.Context) error { return f.handshakeErr }

func (f *fakeCatalog) GetGenres(ctx context.Context) ([]portal.Genre, error) {
	return f.genres, nil
}

func (f *fakeCatalog) GetVodCategories(ctx context.Context) ([]portal.Genre, error) {
	return f.categories, nil
}

func (f *fakeCatalog) GetChannels(ctx context.Context, genreID string, page int) (*portal.ChannelPage, error) {
	return &portal.ChannelPage{}, nil
}

func (f *fakeCatalog) GetVodPage(ctx context.Context, categoryID string, page int) (*portal.ItemPage, error) {
	var items []portal.Item
	if pages, ok := f.vodPages[categoryID]; ok {
		items = pages[page]
	}
	return &portal.ItemPage{Items: items}, nil
}

func (f *fakeCatalog) TotalPages(total int) int {
	if total <= 0 {
		return 0
	}
	return (total + portal.DefaultPageSize - 1) / portal.DefaultPageSize
}

func (f *fakeCatalog) BaseHost() string { return "http://portal.example.com" }

func (f *fakeCatalog) GetSeriesSeasons(ctx context.Context, seriesID string) ([]portal.Season, error) {
	return f.seasons, nil
}

func (f *fakeCatalog) GetSeriesEpisodes(ctx context.Context, seriesID, seasonID string, page int) (*portal.EpisodePage, error) {
	return &portal.EpisodePage{Episodes: f.episodes, Total: len(f.episodes)}, nil
}

func (f *fakeCatalog) GetMovieFile(ctx context.Context, movieID string) (*portal.File, error) {
	return f.file, nil
}

func (f *fakeCatalog) GetSeriesFile(ctx context.Context, seriesID, seasonID, episodeID string) (*portal.File, error) {
	return f.file, nil
}

func (f *fakeCatalog) CreateLink(ctx context.Context, cmd, kind string) (string, error) {
	return f.streamURL, nil
}

func testServer(t *testing.T, catalog *fakeCatalog) (*Server, *gorm.DB, *sync.Orchestrator) {
	t.Helper()
	db := apptesting.TestDB(t)
	orchestrator := sync.NewOrchestrator(db, sync.DefaultOptions(),
		func(*models.Provider) sync.PortalClient { return catalog }, nil)
	server := NewServer(db, orchestrator,
		func(*models.Provider) CatalogClient { return catalog }, nil)
	return server, db, orchestrator
}

func doRequest(server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	server, _, _ := testServer(t, &fakeCatalog{})
	w := doRequest(server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestCreateAndListProviders(t *testing.T) {
	server, _, _ := testServer(t, &fakeCatalog{})

	w := doRequest(server, http.MethodPost, "/api/v1/providers", CreateProviderRequest{
		Name: "My Portal",
		URL:  "http://portal.example.com/",
		Mac:  "00:1A:79:00:00:01",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created ProviderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "My Portal", created.Name)

	w = doRequest(server, http.MethodGet, "/api/v1/providers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Providers []ProviderResponse `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Len(t, listed.Providers, 1)
}

func TestCreateProviderValidation(t *testing.T) {
	server, _, _ := testServer(t, &fakeCatalog{})

	w := doRequest(server, http.MethodPost, "/api/v1/providers", map[string]string{
		"name": "missing url and mac",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetProviderWithStats(t *testing.T) {
	server, db, _ := testServer(t, &fakeCatalog{})
	provider := apptesting.CreateProvider(db)
	apptesting.CreateMovie(db, provider.ID)
	apptesting.CreateSeries(db, provider.ID)

	w := doRequest(server, http.MethodGet, "/api/v1/providers/"+provider.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ProviderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Stats)
	assert.Equal(t, int64(1), resp.Stats.Movies)
	assert.Equal(t, int64(1), resp.Stats.Series)
}

func TestGetProviderNotFound(t *testing.T) {
	server, _, _ := testServer(t, &fakeCatalog{})
	w := doRequest(server, http.MethodGet, "/api/v1/providers/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTriggerSyncAndPoll(t *testing.T) {
	catalog := &fakeCatalog{
		categories: []portal.Genre{{ID: "7", Title: "Movies"}},
		vodPages: map[string]map[int][]portal.Item{
			"7": {1: {
				{ExternalID: "m1", Name: "One", CategoryID: "7"},
				{ExternalID: "m2", Name: "Two", CategoryID: "7"},
			}},
		},
	}
	server, _, orchestrator := testServer(t, catalog)
	db := server.db
	provider := apptesting.CreateProvider(db)

	w := doRequest(server, http.MethodPost, "/api/v1/providers/"+provider.ID+"/sync?mode=full", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var trigger SyncTriggerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &trigger))
	assert.NotEmpty(t, trigger.JobID)
	assert.Equal(t, models.SyncStatusProcessing, trigger.Status)

	orchestrator.Wait()

	w = doRequest(server, http.MethodGet, "/api/v1/providers/"+provider.ID+"/sync", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var status SyncStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Nil(t, status.ActiveJob)
	assert.NotNil(t, status.LastSync)
	require.NotNil(t, status.Stats)
	assert.Equal(t, int64(2), status.Stats.Movies)
}

func TestTriggerSyncInvalidMode(t *testing.T) {
	server, db, _ := testServer(t, &fakeCatalog{})
	provider := apptesting.CreateProvider(db)

	w := doRequest(server, http.MethodPost, "/api/v1/providers/"+provider.ID+"/sync?mode=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTriggerSyncJoinsActiveJob(t *testing.T) {
	server, db, _ := testServer(t, &fakeCatalog{})
	provider := apptesting.CreateProvider(db)
	job := apptesting.CreateSyncJob(db, provider.ID)

	w := doRequest(server, http.MethodPost, "/api/v1/providers/"+provider.ID+"/sync", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var trigger SyncTriggerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &trigger))
	assert.Equal(t, job.ID, trigger.JobID)
}

func TestCancelSync(t *testing.T) {
	server, db, _ := testServer(t, &fakeCatalog{})
	provider := apptesting.CreateProvider(db)
	apptesting.CreateSyncJob(db, provider.ID)

	w := doRequest(server, http.MethodPost, "/api/v1/providers/"+provider.ID+"/sync/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp SyncTriggerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.SyncStatusCancelled, resp.Status)

	// No active job left to cancel
	w = doRequest(server, http.MethodPost, "/api/v1/providers/"+provider.ID+"/sync/cancel", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetSnapshot(t *testing.T) {
	server, db, orchestrator := testServer(t, &fakeCatalog{})
	provider := apptesting.CreateProvider(db)
	apptesting.CreateMovie(db, provider.ID)
	_, err := orchestrator.Snapshots().Build(provider.ID)
	require.NoError(t, err)

	w := doRequest(server, http.MethodGet, "/api/v1/providers/"+provider.ID+"/snapshot", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	defer zr.Close()

	var payload sync.SnapshotPayload
	require.NoError(t, json.NewDecoder(zr).Decode(&payload))
	assert.Equal(t, provider.ID, payload.ProviderID)
	assert.Equal(t, 1, payload.MoviesCount)
}

func TestGetSnapshotNotFound(t *testing.T) {
	server, db, _ := testServer(t, &fakeCatalog{})
	provider := apptesting.CreateProvider(db)

	w := doRequest(server, http.MethodGet, "/api/v1/providers/"+provider.ID+"/snapshot", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCleanContent(t *testing.T) {
	server, db, _ := testServer(t, &fakeCatalog{})
	provider := apptesting.CreateProvider(db)
	apptesting.CreateMovie(db, provider.ID)

	w := doRequest(server, http.MethodDelete, "/api/v1/providers/"+provider.ID+"/content", nil)
	require.Equal(t, http.StatusOK, w.Code)
	apptesting.AssertCount(t, db, &models.Movie{}, 0, "movies after clean")
}

func TestListSeasons(t *testing.T) {
	catalog := &fakeCatalog{
		seasons: []portal.Season{{ID: "s1", Name: "Season 1"}, {ID: "s2", Name: "Season 2"}},
	}
	server, db, _ := testServer(t, catalog)
	provider := apptesting.CreateProvider(db)

	w := doRequest(server, http.MethodGet,
		"/api/v1/providers/"+provider.ID+"/series/42/seasons", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Seasons []SeasonResponse `json:"seasons"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Seasons, 2)
	assert.Equal(t, "Season 1", resp.Seasons[0].Name)
}

func TestListEpisodes(t *testing.T) {
	catalog := &fakeCatalog{
		episodes: []portal.Episode{{ID: "e1", Name: "Pilot", Cmd: "/media/1.mpg"}},
	}
	server, db, _ := testServer(t, catalog)
	provider := apptesting.CreateProvider(db)

	w := doRequest(server, http.MethodGet,
		"/api/v1/providers/"+provider.ID+"/series/42/seasons/s1/episodes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Pilot")

	w = doRequest(server, http.MethodGet,
		"/api/v1/providers/"+provider.ID+"/series/42/seasons/s1/episodes?p=zero", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetMovieFile(t *testing.T) {
	catalog := &fakeCatalog{file: &portal.File{ID: "f1", Cmd: "/media/file_99.mpg"}}
	server, db, _ := testServer(t, catalog)
	provider := apptesting.CreateProvider(db)

	w := doRequest(server, http.MethodGet,
		"/api/v1/providers/"+provider.ID+"/movies/99/file", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp FileResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "/media/file_99.mpg", resp.Cmd)
}

func TestCreateStreamLink(t *testing.T) {
	catalog := &fakeCatalog{streamURL: "http://edge.example.com/play/abc"}
	server, db, _ := testServer(t, catalog)
	provider := apptesting.CreateProvider(db)

	w := doRequest(server, http.MethodPost,
		"/api/v1/providers/"+provider.ID+"/stream", StreamRequest{
			Cmd:  "/media/file_99.mpg",
			Kind: "vod",
		})
	require.Equal(t, http.StatusOK, w.Code)

	var resp StreamResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "http://edge.example.com/play/abc", resp.URL)

	w = doRequest(server, http.MethodPost,
		"/api/v1/providers/"+provider.ID+"/stream", map[string]string{
			"cmd":  "/media/file.mpg",
			"kind": "dvd",
		})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
