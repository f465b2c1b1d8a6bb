package sync

import (
	"context"
	stdsync "sync"
	"time"

	apperrors "github.com/ronika/stalkarr/internal/errors"
	"github.com/ronika/stalkarr/internal/logger"
	"github.com/ronika/stalkarr/internal/models"
	"gorm.io/gorm"
)

// Mode selects how a sync run walks the catalog
type Mode string

const (
	// ModeAuto derives the plan from the provider's current state
	ModeAuto Mode = "auto"
	// ModeFull forces a full walk with the large batch size
	ModeFull Mode = "full"
	// ModeIncremental forces the early-terminating incremental walk
	ModeIncremental Mode = "incremental"
)

// ParseMode validates a mode string, defaulting empty to auto
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeFull:
		return ModeFull, nil
	case ModeIncremental:
		return ModeIncremental, nil
	default:
		return "", apperrors.ValidationError("mode must be auto, full or incremental")
	}
}

// Plan is the resolved shape of one sync run
type Plan struct {
	NeedsChannelSync bool
	NeedsVodSync     bool
	Incremental      bool
	FirstFullSync    bool
}

// PlanSync resolves the run plan from the requested mode and the provider's
// current state. Channels re-sync only when none exist yet; forced modes
// override the VOD heuristics but not the channel one.
func PlanSync(mode Mode, channelCount, vodCount int64, firstFullSyncCompleted bool) Plan {
	plan := Plan{NeedsChannelSync: channelCount == 0}

	switch mode {
	case ModeFull:
		plan.NeedsVodSync = true
	case ModeIncremental:
		plan.NeedsVodSync = true
		plan.Incremental = true
	default:
		plan.FirstFullSync = !firstFullSyncCompleted
		plan.Incremental = vodCount > 0 && !plan.FirstFullSync
		plan.NeedsVodSync = vodCount == 0 || plan.Incremental || plan.FirstFullSync
	}
	return plan
}

// ClientFactory builds a portal client for a provider. Injected so tests
// can substitute a fake portal.
type ClientFactory func(provider *models.Provider) PortalClient

// Orchestrator runs provider syncs: it resolves the plan, creates the job,
// and executes the walk in a detached goroutine, sequencing channels before
// VOD and finishing with a catalog snapshot.
type Orchestrator struct {
	db        *gorm.DB
	tracker   *Tracker
	walker    *Walker
	snapshots *SnapshotBuilder
	newClient ClientFactory
	logger    *logger.Logger

	wg stdsync.WaitGroup
}

// NewOrchestrator wires the sync engine over the given store
func NewOrchestrator(db *gorm.DB, opts Options, newClient ClientFactory, log *logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.AppLogger()
	}
	tracker := NewTracker(db)
	return &Orchestrator{
		db:        db,
		tracker:   tracker,
		walker:    NewWalker(db, tracker, opts, log),
		snapshots: NewSnapshotBuilder(db, opts.SnapshotRetention, log),
		newClient: newClient,
		logger:    log,
	}
}

// Tracker exposes the job tracker for the HTTP layer
func (o *Orchestrator) Tracker() *Tracker {
	return o.tracker
}

// Snapshots exposes the snapshot store for the HTTP layer
func (o *Orchestrator) Snapshots() *SnapshotBuilder {
	return o.snapshots
}

// StartSync validates the provider, handshakes with the portal, and starts
// a background sync run. If a job is already processing for the provider,
// that job is returned with started=false and no new work begins.
func (o *Orchestrator) StartSync(ctx context.Context, providerID string, mode Mode) (*models.SyncJob, bool, error) {
	var provider models.Provider
	if err := o.db.First(&provider, "id = ?", providerID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, false, apperrors.NotFoundError("provider", providerID)
		}
		return nil, false, apperrors.DatabaseError("failed to load provider", err)
	}

	client := o.newClient(&provider)

	// Handshake before creating a job so bad credentials fail the request,
	// not a background run
	if err := client.Handshake(ctx); err != nil {
		return nil, false, err
	}

	channelCount, vodCount, err := o.counts(providerID)
	if err != nil {
		return nil, false, err
	}
	plan := PlanSync(mode, channelCount, vodCount, provider.FirstFullSyncCompleted)

	job, created, err := o.tracker.Start(providerID)
	if err != nil {
		return nil, false, err
	}
	if !created {
		return job, false, nil
	}

	o.logger.WithFields(map[string]interface{}{
		"component":   "orchestrator",
		"provider_id": providerID,
		"job_id":      job.ID,
		"mode":        string(mode),
		"channels":    plan.NeedsChannelSync,
		"vod":         plan.NeedsVodSync,
		"incremental": plan.Incremental,
		"first_full":  plan.FirstFullSync,
		"action":      "sync_start",
	}).Info("Sync started")

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(&provider, client, job, plan)
	}()

	return job, true, nil
}

// CancelSync flags the provider's active job as cancelled. The walker
// notices at its next batch boundary.
func (o *Orchestrator) CancelSync(providerID string) (*models.SyncJob, error) {
	job, err := o.tracker.Active(providerID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, apperrors.NotFoundError("active sync job", providerID)
	}
	if err := o.tracker.Cancel(job.ID); err != nil {
		return nil, err
	}
	return o.tracker.Get(job.ID)
}

// Wait blocks until all in-flight sync runs finish. Used on shutdown.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// run executes one sync in the background, channels first, then VOD, then
// the snapshot. A cancelled job keeps its cancelled status; any other error
// fails the job with its message.
func (o *Orchestrator) run(provider *models.Provider, client PortalClient, job *models.SyncJob, plan Plan) {
	ctx := logger.ContextWithProviderID(context.Background(), provider.ID)
	ctx = logger.ContextWithJobID(ctx, job.ID)

	log := o.logger.WithFields(map[string]interface{}{
		"component":   "orchestrator",
		"provider_id": provider.ID,
		"job_id":      job.ID,
	})

	if plan.NeedsChannelSync {
		if _, err := o.walker.SyncChannels(ctx, client, provider.ID, job.ID); err != nil {
			o.finish(job.ID, err, log)
			return
		}
	}

	if plan.NeedsVodSync {
		if _, err := o.walker.SyncVod(ctx, client, provider.ID, job.ID, plan.Incremental); err != nil {
			o.finish(job.ID, err, log)
			return
		}
	}

	if _, err := o.snapshots.Build(provider.ID); err != nil {
		o.finish(job.ID, err, log)
		return
	}

	updates := map[string]interface{}{"last_sync": time.Now().UTC()}
	if plan.NeedsVodSync && !plan.Incremental && !provider.FirstFullSyncCompleted {
		updates["first_full_sync_completed"] = true
	}
	if err := o.db.Model(&models.Provider{}).Where("id = ?", provider.ID).
		Updates(updates).Error; err != nil {
		log.Error("Failed to record sync completion on provider", err)
	}

	if err := o.tracker.Complete(job.ID); err != nil {
		log.Error("Failed to mark job completed", err)
		return
	}
	log.WithFields(map[string]interface{}{"action": "sync_done"}).Info("Sync completed")
}

// finish resolves a failed or cancelled run. Cancelled jobs were already
// finalized by the cancel request, so Fail is a no-op for them.
func (o *Orchestrator) finish(jobID string, err error, log *logger.FieldLogger) {
	if apperrors.GetErrorCode(err) == apperrors.CodeSyncCancelled {
		log.Info("Sync cancelled")
		return
	}
	log.Error("Sync failed", err)
	if ferr := o.tracker.Fail(jobID, err.Error()); ferr != nil {
		log.Error("Failed to mark job failed", ferr)
	}
}

// counts returns the provider's channel count and combined movie+series count
func (o *Orchestrator) counts(providerID string) (int64, int64, error) {
	var channels int64
	if err := o.db.Model(&models.Channel{}).
		Where("provider_id = ?", providerID).Count(&channels).Error; err != nil {
		return 0, 0, apperrors.DatabaseError("failed to count channels", err)
	}

	var movies int64
	if err := o.db.Model(&models.Movie{}).
		Where("provider_id = ?", providerID).Count(&movies).Error; err != nil {
		return 0, 0, apperrors.DatabaseError("failed to count movies", err)
	}

	var series int64
	if err := o.db.Model(&models.Series{}).
		Where("provider_id = ?", providerID).Count(&series).Error; err != nil {
		return 0, 0, apperrors.DatabaseError("failed to count series", err)
	}
	return channels, movies + series, nil
}

// ProviderStats is the content count summary for the poll endpoint
type ProviderStats struct {
	Movies   int64 `json:"movies"`
	Series   int64 `json:"series"`
	Channels int64 `json:"channels"`
}

// Status reports a provider's last sync time, content counts and active job
func (o *Orchestrator) Status(providerID string) (*models.Provider, *ProviderStats, *models.SyncJob, error) {
	var provider models.Provider
	if err := o.db.First(&provider, "id = ?", providerID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, nil, apperrors.NotFoundError("provider", providerID)
		}
		return nil, nil, nil, apperrors.DatabaseError("failed to load provider", err)
	}

	stats := &ProviderStats{}
	if err := o.db.Model(&models.Movie{}).
		Where("provider_id = ? AND is_active = ?", providerID, true).
		Count(&stats.Movies).Error; err != nil {
		return nil, nil, nil, apperrors.DatabaseError("failed to count movies", err)
	}
	if err := o.db.Model(&models.Series{}).
		Where("provider_id = ? AND is_active = ?", providerID, true).
		Count(&stats.Series).Error; err != nil {
		return nil, nil, nil, apperrors.DatabaseError("failed to count series", err)
	}
	if err := o.db.Model(&models.Channel{}).
		Where("provider_id = ? AND is_active = ?", providerID, true).
		Count(&stats.Channels).Error; err != nil {
		return nil, nil, nil, apperrors.DatabaseError("failed to count channels", err)
	}

	job, err := o.tracker.Active(providerID)
	if err != nil {
		return nil, nil, nil, err
	}
	return &provider, stats, job, nil
}

// CleanContent removes everything synced for a provider and resets its sync
// state, so the next run starts from scratch
func (o *Orchestrator) CleanContent(providerID string) error {
	if job, err := o.tracker.Active(providerID); err != nil {
		return err
	} else if job != nil {
		return apperrors.JobConflictError(providerID, job.ID)
	}

	return o.db.Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{
			&models.Channel{}, &models.Movie{}, &models.Series{},
			&models.Category{}, &models.Snapshot{},
		} {
			if err := tx.Where("provider_id = ?", providerID).Delete(model).Error; err != nil {
				return apperrors.DatabaseError("failed to delete provider content", err)
			}
		}
		return tx.Model(&models.Provider{}).Where("id = ?", providerID).
			Updates(map[string]interface{}{
				"first_full_sync_completed": false,
				"last_sync":                 nil,
			}).Error
	})
}
