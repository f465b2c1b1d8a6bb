package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/ronika/stalkarr/internal/logger"
	"github.com/ronika/stalkarr/internal/models"
	"github.com/ronika/stalkarr/internal/portal"
	"github.com/ronika/stalkarr/internal/sync"
	"gorm.io/gorm"
)

// CatalogClient is the portal surface the API consumes directly, for the
// drill-down routes that bypass the sync engine
type CatalogClient interface {
	Handshake(ctx context.Context) error
	GetSeriesSeasons(ctx context.Context, seriesID string) ([]portal.Season, error)
	GetSeriesEpisodes(ctx context.Context, seriesID, seasonID string, page int) (*portal.EpisodePage, error)
	GetMovieFile(ctx context.Context, movieID string) (*portal.File, error)
	GetSeriesFile(ctx context.Context, seriesID, seasonID, episodeID string) (*portal.File, error)
	CreateLink(ctx context.Context, cmd, kind string) (string, error)
}

// ClientFactory builds a portal client for a provider
type ClientFactory func(provider *models.Provider) CatalogClient

// Server represents the API server
type Server struct {
	router       *gin.Engine
	db           *gorm.DB
	orchestrator *sync.Orchestrator
	newClient    ClientFactory
	logger       *logger.Logger
	httpServer   *http.Server
}

// NewServer creates a new API server instance
func NewServer(db *gorm.DB, orchestrator *sync.Orchestrator, newClient ClientFactory, log *logger.Logger) *Server {
	if log == nil {
		log = logger.AppLogger()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(errorHandlerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}))

	s := &Server{
		router:       router,
		db:           db,
		orchestrator: orchestrator,
		newClient:    newClient,
		logger:       log,
	}

	s.setupRoutes()

	return s
}

// Run starts the API server on the specified port
func (s *Server) Run(port int) error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.GET("/health", s.healthCheck)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		// Provider endpoints
		v1.GET("/providers", s.listProviders)
		v1.POST("/providers", s.createProvider)
		v1.GET("/providers/:id", s.getProvider)
		v1.DELETE("/providers/:id", s.deleteProvider)
		v1.DELETE("/providers/:id/content", s.cleanContent)

		// Sync endpoints
		v1.POST("/providers/:id/sync", s.triggerSync)
		v1.GET("/providers/:id/sync", s.syncStatus)
		v1.POST("/providers/:id/sync/cancel", s.cancelSync)

		// Snapshot
		v1.GET("/providers/:id/snapshot", s.getSnapshot)

		// Drill-down and streaming
		v1.GET("/providers/:id/series/:seriesId/seasons", s.listSeasons)
		v1.GET("/providers/:id/series/:seriesId/seasons/:seasonId/episodes", s.listEpisodes)
		v1.GET("/providers/:id/movies/:movieId/file", s.getMovieFile)
		v1.GET("/providers/:id/series/:seriesId/seasons/:seasonId/episodes/:episodeId/file", s.getEpisodeFile)
		v1.POST("/providers/:id/stream", s.createStreamLink)
	}
}
