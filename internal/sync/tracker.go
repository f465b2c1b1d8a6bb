package sync

import (
	"errors"
	"sync"
	"time"

	apperrors "github.com/ronika/stalkarr/internal/errors"
	"github.com/ronika/stalkarr/internal/models"
	"gorm.io/gorm"
)

// Tracker owns SyncJob records. A single Tracker instance is shared by the
// API handlers and the orchestrator; Start serializes through a mutex so two
// concurrent trigger requests cannot both create a processing job for the
// same provider.
type Tracker struct {
	db *gorm.DB
	mu sync.Mutex
}

// NewTracker creates a job tracker on the given store
func NewTracker(db *gorm.DB) *Tracker {
	return &Tracker{db: db}
}

// Progress carries partial counter updates. Nil fields are left untouched.
// Counters only ever grow during a job, so updates stay monotonic.
type Progress struct {
	TotalItems     *int
	ProcessedItems *int
	MoviesCount    *int
	SeriesCount    *int
	ChannelsCount  *int
}

// Start atomically creates a new processing job for a provider. If one is
// already processing, the existing job is returned with created=false.
func (t *Tracker) Start(providerID string) (*models.SyncJob, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	existing, err := t.Active(providerID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	job := &models.SyncJob{
		ProviderID: providerID,
		Status:     models.SyncStatusProcessing,
		StartedAt:  time.Now().UTC(),
	}
	if err := t.db.Create(job).Error; err != nil {
		return nil, false, apperrors.DatabaseError("failed to create sync job", err)
	}
	return job, true, nil
}

// Active returns the provider's processing job, or nil if none
func (t *Tracker) Active(providerID string) (*models.SyncJob, error) {
	var job models.SyncJob
	err := t.db.Where("provider_id = ? AND status = ?", providerID, models.SyncStatusProcessing).
		Order("started_at DESC").
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.DatabaseError("failed to query active job", err)
	}
	return &job, nil
}

// Get fetches one job by id
func (t *Tracker) Get(jobID string) (*models.SyncJob, error) {
	var job models.SyncJob
	err := t.db.First(&job, "id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFoundError("sync job", jobID)
	}
	if err != nil {
		return nil, apperrors.DatabaseError("failed to load sync job", err)
	}
	return &job, nil
}

// Status returns a job's current status. The walker polls this at batch
// boundaries to observe out-of-band cancellation.
func (t *Tracker) Status(jobID string) (models.SyncJobStatus, error) {
	job, err := t.Get(jobID)
	if err != nil {
		return "", err
	}
	return job.Status, nil
}

// UpdateProgress applies a partial counter update to a job
func (t *Tracker) UpdateProgress(jobID string, p Progress) error {
	updates := map[string]interface{}{}
	if p.TotalItems != nil {
		updates["total_items"] = *p.TotalItems
	}
	if p.ProcessedItems != nil {
		updates["processed_items"] = *p.ProcessedItems
	}
	if p.MoviesCount != nil {
		updates["movies_count"] = *p.MoviesCount
	}
	if p.SeriesCount != nil {
		updates["series_count"] = *p.SeriesCount
	}
	if p.ChannelsCount != nil {
		updates["channels_count"] = *p.ChannelsCount
	}
	if len(updates) == 0 {
		return nil
	}

	if err := t.db.Model(&models.SyncJob{}).Where("id = ?", jobID).Updates(updates).Error; err != nil {
		return apperrors.DatabaseError("failed to update job progress", err)
	}
	return nil
}

// Complete finalizes a job as completed
func (t *Tracker) Complete(jobID string) error {
	return t.finalize(jobID, models.SyncStatusCompleted, nil)
}

// Fail finalizes a job as failed with an error message
func (t *Tracker) Fail(jobID string, message string) error {
	return t.finalize(jobID, models.SyncStatusFailed, &message)
}

// Cancel requests cancellation of a processing job. The walker observes the
// status change at its next batch boundary; at most one batch of extra work
// happens after this returns.
func (t *Tracker) Cancel(jobID string) error {
	job, err := t.Get(jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return apperrors.ValidationError("job is not processing")
	}
	return t.finalize(jobID, models.SyncStatusCancelled, nil)
}

// finalize moves a processing job to a terminal state exactly once
func (t *Tracker) finalize(jobID string, status models.SyncJobStatus, message *string) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":       status,
		"completed_at": now,
	}
	if message != nil {
		updates["error"] = *message
	}

	result := t.db.Model(&models.SyncJob{}).
		Where("id = ? AND status = ?", jobID, models.SyncStatusProcessing).
		Updates(updates)
	if result.Error != nil {
		return apperrors.DatabaseError("failed to finalize job", result.Error)
	}
	if result.RowsAffected == 0 {
		// Already finalized elsewhere (e.g. cancelled while completing)
		return nil
	}
	return nil
}
