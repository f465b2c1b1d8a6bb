package api

import (
	"time"

	"github.com/ronika/stalkarr/internal/models"
	"github.com/ronika/stalkarr/internal/sync"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CreateProviderRequest represents a new provider registration
type CreateProviderRequest struct {
	Name   string `json:"name" binding:"required"`
	URL    string `json:"url" binding:"required,url"`
	Mac    string `json:"mac" binding:"required"`
	Bearer string `json:"bearer,omitempty"`
	Adid   string `json:"adid,omitempty"`
}

// ProviderResponse represents a provider with its content counts
type ProviderResponse struct {
	ID                     string              `json:"id"`
	Name                   string              `json:"name"`
	URL                    string              `json:"url"`
	Mac                    string              `json:"mac"`
	IsActive               bool                `json:"is_active"`
	FirstFullSyncCompleted bool                `json:"first_full_sync_completed"`
	LastSync               *time.Time          `json:"last_sync,omitempty"`
	Stats                  *sync.ProviderStats `json:"stats,omitempty"`
}

// SyncTriggerResponse is the response of a sync trigger call. The same
// shape is returned whether a run was started or one was already active.
type SyncTriggerResponse struct {
	JobID  string               `json:"jobId"`
	Status models.SyncJobStatus `json:"status"`
}

// ActiveJobResponse represents a running sync job in the polling contract
type ActiveJobResponse struct {
	ID             string               `json:"id"`
	Status         models.SyncJobStatus `json:"status"`
	TotalItems     int                  `json:"totalItems"`
	ProcessedItems int                  `json:"processedItems"`
	MoviesCount    int                  `json:"moviesCount"`
	SeriesCount    int                  `json:"seriesCount"`
	ChannelsCount  int                  `json:"channelsCount"`
	Error          *string              `json:"error,omitempty"`
	StartedAt      time.Time            `json:"startedAt"`
}

// SyncStatusResponse is the polling contract for a provider's sync state
type SyncStatusResponse struct {
	LastSync  *time.Time          `json:"lastSync"`
	Stats     *sync.ProviderStats `json:"stats"`
	ActiveJob *ActiveJobResponse  `json:"activeJob"`
}

// SeasonResponse represents one season of a series
type SeasonResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EpisodeResponse represents one episode within a season
type EpisodeResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Cmd  string `json:"cmd"`
}

// FileResponse represents a resolved playable file
type FileResponse struct {
	ID  string `json:"id"`
	Cmd string `json:"cmd"`
}

// StreamRequest asks for an opaque cmd to be exchanged for a stream URL
type StreamRequest struct {
	Cmd  string `json:"cmd" binding:"required"`
	Kind string `json:"kind" binding:"required,oneof=itv vod series"`
}

// StreamResponse carries the playable stream URL
type StreamResponse struct {
	URL string `json:"url"`
}

func toProviderResponse(p *models.Provider, stats *sync.ProviderStats) ProviderResponse {
	return ProviderResponse{
		ID:                     p.ID,
		Name:                   p.Name,
		URL:                    p.URL,
		Mac:                    p.Mac,
		IsActive:               p.IsActive,
		FirstFullSyncCompleted: p.FirstFullSyncCompleted,
		LastSync:               p.LastSync,
		Stats:                  stats,
	}
}

func toActiveJobResponse(job *models.SyncJob) *ActiveJobResponse {
	if job == nil {
		return nil
	}
	return &ActiveJobResponse{
		ID:             job.ID,
		Status:         job.Status,
		TotalItems:     job.TotalItems,
		ProcessedItems: job.ProcessedItems,
		MoviesCount:    job.MoviesCount,
		SeriesCount:    job.SeriesCount,
		ChannelsCount:  job.ChannelsCount,
		Error:          job.Error,
		StartedAt:      job.StartedAt,
	}
}
