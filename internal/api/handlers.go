package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	apperrors "github.com/ronika/stalkarr/internal/errors"
	"github.com/ronika/stalkarr/internal/models"
	"github.com/ronika/stalkarr/internal/sync"
	"gorm.io/gorm"
)

func (s *Server) healthCheck(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.Ping()
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

func (s *Server) listProviders(c *gin.Context) {
	var providers []models.Provider
	if err := s.db.Order("created_at").Find(&providers).Error; err != nil {
		respondError(c, apperrors.DatabaseError("failed to list providers", err))
		return
	}

	out := make([]ProviderResponse, 0, len(providers))
	for i := range providers {
		out = append(out, toProviderResponse(&providers[i], nil))
	}
	c.JSON(http.StatusOK, gin.H{"providers": out})
}

func (s *Server) createProvider(c *gin.Context) {
	var req CreateProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.ValidationError(err.Error()))
		return
	}

	provider := models.Provider{
		Name:     req.Name,
		URL:      req.URL,
		Mac:      req.Mac,
		Bearer:   req.Bearer,
		Adid:     req.Adid,
		IsActive: true,
	}
	if err := s.db.Create(&provider).Error; err != nil {
		respondError(c, apperrors.DatabaseError("failed to create provider", err))
		return
	}
	c.JSON(http.StatusCreated, toProviderResponse(&provider, nil))
}

func (s *Server) getProvider(c *gin.Context) {
	provider, stats, _, err := s.orchestrator.Status(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProviderResponse(provider, stats))
}

func (s *Server) deleteProvider(c *gin.Context) {
	id := c.Param("id")

	result := s.db.Delete(&models.Provider{}, "id = ?", id)
	if result.Error != nil {
		respondError(c, apperrors.DatabaseError("failed to delete provider", result.Error))
		return
	}
	if result.RowsAffected == 0 {
		respondError(c, apperrors.NotFoundError("provider", id))
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) cleanContent(c *gin.Context) {
	if err := s.orchestrator.CleanContent(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleaned"})
}

func (s *Server) triggerSync(c *gin.Context) {
	mode, err := sync.ParseMode(c.Query("mode"))
	if err != nil {
		respondError(c, err)
		return
	}

	job, _, err := s.orchestrator.StartSync(c.Request.Context(), c.Param("id"), mode)
	if err != nil {
		respondError(c, err)
		return
	}

	// Same shape whether this call started the run or joined an active one
	c.JSON(http.StatusOK, SyncTriggerResponse{
		JobID:  job.ID,
		Status: job.Status,
	})
}

func (s *Server) syncStatus(c *gin.Context) {
	provider, stats, active, err := s.orchestrator.Status(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SyncStatusResponse{
		LastSync:  provider.LastSync,
		Stats:     stats,
		ActiveJob: toActiveJobResponse(active),
	})
}

func (s *Server) cancelSync(c *gin.Context) {
	job, err := s.orchestrator.CancelSync(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SyncTriggerResponse{
		JobID:  job.ID,
		Status: job.Status,
	})
}

func (s *Server) getSnapshot(c *gin.Context) {
	snapshot, err := s.orchestrator.Snapshots().Latest(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	// Stored gzipped; hand the compressed bytes straight to the client
	c.Header("Content-Encoding", "gzip")
	c.Header("X-Snapshot-ID", snapshot.ID)
	c.Header("X-Snapshot-Created", snapshot.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
	c.Data(http.StatusOK, "application/json", snapshot.Data)
}

// portalFor loads a provider and returns a handshaken portal client
func (s *Server) portalFor(c *gin.Context) (*models.Provider, CatalogClient, bool) {
	var provider models.Provider
	if err := s.db.First(&provider, "id = ?", c.Param("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			respondError(c, apperrors.NotFoundError("provider", c.Param("id")))
		} else {
			respondError(c, apperrors.DatabaseError("failed to load provider", err))
		}
		return nil, nil, false
	}

	client := s.newClient(&provider)
	if err := client.Handshake(c.Request.Context()); err != nil {
		respondError(c, err)
		return nil, nil, false
	}
	return &provider, client, true
}

func (s *Server) listSeasons(c *gin.Context) {
	_, client, ok := s.portalFor(c)
	if !ok {
		return
	}

	seasons, err := client.GetSeriesSeasons(c.Request.Context(), c.Param("seriesId"))
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]SeasonResponse, 0, len(seasons))
	for _, season := range seasons {
		out = append(out, SeasonResponse{ID: season.ID.String(), Name: season.Name})
	}
	c.JSON(http.StatusOK, gin.H{"seasons": out})
}

func (s *Server) listEpisodes(c *gin.Context) {
	_, client, ok := s.portalFor(c)
	if !ok {
		return
	}

	page := 1
	if p := c.Query("p"); p != "" {
		parsed, err := strconv.Atoi(p)
		if err != nil || parsed < 1 {
			respondError(c, apperrors.ValidationError("p must be a positive integer"))
			return
		}
		page = parsed
	}

	episodes, err := client.GetSeriesEpisodes(c.Request.Context(),
		c.Param("seriesId"), c.Param("seasonId"), page)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]EpisodeResponse, 0, len(episodes.Episodes))
	for _, ep := range episodes.Episodes {
		out = append(out, EpisodeResponse{ID: ep.ID, Name: ep.Name, Cmd: ep.Cmd})
	}
	c.JSON(http.StatusOK, gin.H{"episodes": out, "total": episodes.Total})
}

func (s *Server) getMovieFile(c *gin.Context) {
	_, client, ok := s.portalFor(c)
	if !ok {
		return
	}

	file, err := client.GetMovieFile(c.Request.Context(), c.Param("movieId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, FileResponse{ID: file.ID, Cmd: file.Cmd})
}

func (s *Server) getEpisodeFile(c *gin.Context) {
	_, client, ok := s.portalFor(c)
	if !ok {
		return
	}

	file, err := client.GetSeriesFile(c.Request.Context(),
		c.Param("seriesId"), c.Param("seasonId"), c.Param("episodeId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, FileResponse{ID: file.ID, Cmd: file.Cmd})
}

func (s *Server) createStreamLink(c *gin.Context) {
	var req StreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.ValidationError(err.Error()))
		return
	}

	_, client, ok := s.portalFor(c)
	if !ok {
		return
	}

	streamURL, err := client.CreateLink(c.Request.Context(), req.Cmd, req.Kind)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StreamResponse{URL: streamURL})
}
