package sync

import (
	"context"
	stdsync "sync"

	"github.com/ronika/stalkarr/internal/classifier"
	apperrors "github.com/ronika/stalkarr/internal/errors"
	"github.com/ronika/stalkarr/internal/logger"
	"github.com/ronika/stalkarr/internal/models"
	"github.com/ronika/stalkarr/internal/portal"
	"gorm.io/gorm"
)

// PortalClient is the slice of the portal API the sync engine consumes
type PortalClient interface {
	Handshake(ctx context.Context) error
	GetGenres(ctx context.Context) ([]portal.Genre, error)
	GetVodCategories(ctx context.Context) ([]portal.Genre, error)
	GetChannels(ctx context.Context, genreID string, page int) (*portal.ChannelPage, error)
	GetVodPage(ctx context.Context, categoryID string, page int) (*portal.ItemPage, error)
	TotalPages(total int) int
	BaseHost() string
}

// Walker crawls a provider's paginated catalog and reconciles every page
// into local storage. Pages within a batch are fetched concurrently but
// always consumed in page order, so progress and termination decisions
// stay deterministic.
type Walker struct {
	db         *gorm.DB
	tracker    *Tracker
	reconciler *Reconciler
	opts       Options
	logger     *logger.Logger
}

// NewWalker creates a walker over the given store
func NewWalker(db *gorm.DB, tracker *Tracker, opts Options, log *logger.Logger) *Walker {
	if log == nil {
		log = logger.AppLogger()
	}
	return &Walker{
		db:         db,
		tracker:    tracker,
		reconciler: NewReconciler(db, log),
		opts:       opts,
		logger:     log,
	}
}

// pageResult is one fetched page, tagged with its page number so a batch
// can be consumed in order regardless of fetch completion order
type pageResult struct {
	page  int
	items *portal.ItemPage
	err   error
}

type channelPageResult struct {
	page  int
	chans *portal.ChannelPage
	err   error
}

// vodCounters accumulates progress across all categories of one VOD walk
type vodCounters struct {
	processed int
	movies    int
	series    int
	skipped   int
}

// cancelRequested reports whether the job has left the processing state.
// The walker polls at batch boundaries rather than per item.
func (w *Walker) cancelRequested(jobID string) bool {
	status, err := w.tracker.Status(jobID)
	if err != nil {
		return false
	}
	return status != models.SyncStatusProcessing
}

// cancelError builds the sentinel the orchestrator recognizes
func cancelError(jobID string) error {
	return apperrors.New(apperrors.CodeSyncCancelled, "sync cancelled").
		WithContext("job_id", jobID)
}

// SyncChannels walks the live TV listing. The channel catalog reports its
// total up front via the wildcard genre, so the walk is a straight sweep
// over a known page count.
func (w *Walker) SyncChannels(ctx context.Context, client PortalClient, providerID, jobID string) (int, error) {
	log := w.logger.WithFields(map[string]interface{}{
		"component":   "walker",
		"provider_id": providerID,
		"job_id":      jobID,
	})

	categoryMap, err := w.syncChannelCategories(ctx, client, providerID)
	if err != nil {
		return 0, err
	}

	probe, err := client.GetChannels(ctx, "*", 1)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeUpstream, "failed to probe channel listing")
	}
	totalPages := client.TotalPages(probe.Total)
	log.WithFields(map[string]interface{}{
		"action":      "channel_sync_start",
		"total_items": probe.Total,
		"total_pages": totalPages,
	}).Info("Starting channel sync")

	baseHost := client.BaseHost()
	channelsCount := 0

	for batchStart := 1; batchStart <= totalPages; batchStart += w.opts.ChannelBatchSize {
		if w.cancelRequested(jobID) {
			return channelsCount, cancelError(jobID)
		}

		batchEnd := batchStart + w.opts.ChannelBatchSize - 1
		if batchEnd > totalPages {
			batchEnd = totalPages
		}

		for _, pr := range w.fetchChannelPages(ctx, client, batchStart, batchEnd) {
			if pr.err != nil {
				log.WithFields(map[string]interface{}{"page": pr.page}).
					Error("Channel page fetch failed, skipping", pr.err)
				continue
			}
			for _, ch := range pr.chans.Channels {
				var categoryID *string
				if localID, ok := categoryMap[ch.GenreID]; ok {
					categoryID = &localID
				}
				if err := w.reconciler.UpsertChannel(providerID, categoryID, ch, baseHost); err != nil {
					log.WithFields(map[string]interface{}{
						"page":        pr.page,
						"external_id": ch.ExternalID,
					}).Error("Failed to save channel, skipping", err)
					continue
				}
				channelsCount++
			}
		}

		if err := w.tracker.UpdateProgress(jobID, Progress{ChannelsCount: &channelsCount}); err != nil {
			log.Error("Failed to update channel progress", err)
		}
	}

	log.WithFields(map[string]interface{}{
		"action":   "channel_sync_done",
		"channels": channelsCount,
	}).Info("Channel sync completed")
	return channelsCount, nil
}

// fetchChannelPages fetches pages first..last concurrently and returns them
// sorted by page number
func (w *Walker) fetchChannelPages(ctx context.Context, client PortalClient, first, last int) []channelPageResult {
	results := make([]channelPageResult, last-first+1)
	var wg stdsync.WaitGroup
	for p := first; p <= last; p++ {
		wg.Add(1)
		go func(page int) {
			defer wg.Done()
			chans, err := client.GetChannels(ctx, "*", page)
			results[page-first] = channelPageResult{page: page, chans: chans, err: err}
		}(p)
	}
	wg.Wait()
	return results
}

// SyncVod walks every non-wildcard VOD category. In incremental mode the
// walker loads the provider's known external IDs first, skips reconciling
// items it already has, and bails out of a category after
// MaxNoNewItemPages consecutive pages without a new item.
func (w *Walker) SyncVod(ctx context.Context, client PortalClient, providerID, jobID string, incremental bool) (*vodCounters, error) {
	log := w.logger.WithFields(map[string]interface{}{
		"component":   "walker",
		"provider_id": providerID,
		"job_id":      jobID,
		"incremental": incremental,
	})

	var known map[string]struct{}
	if incremental {
		var err error
		known, err = w.loadKnownIDs(providerID)
		if err != nil {
			return nil, err
		}
		log.WithFields(map[string]interface{}{"known_items": len(known)}).
			Info("Loaded existing catalog for incremental sync")
	}

	categories, categoryMap, err := w.syncVodCategories(ctx, client, providerID)
	if err != nil {
		return nil, err
	}

	// Wildcard probe for a rough total; a failure here only costs the
	// progress denominator, not the sync
	if probe, err := client.GetVodPage(ctx, "*", 1); err != nil {
		log.Warn("Failed to probe catalog total, progress total unavailable")
	} else if probe.Total > 0 {
		total := probe.Total
		if err := w.tracker.UpdateProgress(jobID, Progress{TotalItems: &total}); err != nil {
			log.Error("Failed to record catalog total", err)
		}
	}

	counters := &vodCounters{}
	for _, category := range categories {
		if classifier.IsWildcardCategory(category.ID.String(), category.Title) {
			log.WithFields(map[string]interface{}{"category": category.Title}).
				Debug("Skipping aggregate category")
			continue
		}
		if err := w.walkCategory(ctx, client, providerID, jobID, category, categoryMap, known, counters, incremental); err != nil {
			return counters, err
		}
	}

	log.WithFields(map[string]interface{}{
		"action":    "vod_sync_done",
		"processed": counters.processed,
		"movies":    counters.movies,
		"series":    counters.series,
		"skipped":   counters.skipped,
	}).Info("VOD sync completed")
	return counters, nil
}

// walkCategory pages through one category until the catalog ends, the
// incremental walk stops finding new items, or the job is cancelled.
// Individual page errors are logged and skipped; a category whose every
// page fails simply ends early.
func (w *Walker) walkCategory(ctx context.Context, client PortalClient, providerID, jobID string, category portal.Genre, categoryMap map[string]string, known map[string]struct{}, counters *vodCounters, incremental bool) error {
	log := w.logger.WithFields(map[string]interface{}{
		"component":   "walker",
		"provider_id": providerID,
		"job_id":      jobID,
		"category":    category.Title,
	})

	batchSize := w.opts.FullBatchSize
	if incremental {
		batchSize = w.opts.IncrementalBatchSize
	}

	categoryID := category.ID.String()
	page := 1
	consecutiveEmpty := 0
	noNewItemPages := 0
	categoryItems := 0

	for {
		if w.cancelRequested(jobID) {
			return cancelError(jobID)
		}

		results := w.fetchVodPages(ctx, client, categoryID, page, batchSize)

		batchHasData := false
		stop := false
		for _, pr := range results {
			if pr.err != nil {
				log.WithFields(map[string]interface{}{"page": pr.page}).
					Error("Page fetch failed, skipping", pr.err)
				continue
			}
			if len(pr.items.Items) == 0 {
				consecutiveEmpty++
				if consecutiveEmpty >= w.opts.MaxConsecutiveEmptyPages {
					stop = true
					break
				}
				continue
			}
			consecutiveEmpty = 0
			batchHasData = true

			newOnPage := 0
			for _, item := range pr.items.Items {
				if item.ExternalID == "" {
					log.WithFields(map[string]interface{}{"page": pr.page}).
						Warn("Dropping item without an id")
					continue
				}
				if _, seen := known[item.ExternalID]; seen {
					counters.skipped++
					continue
				}
				newOnPage++
				kind, err := w.reconciler.UpsertItem(providerID, categoryMap, item)
				if err != nil {
					log.WithFields(map[string]interface{}{
						"page":        pr.page,
						"external_id": item.ExternalID,
						"name":        item.Name,
					}).Error("Failed to save item, skipping", err)
					continue
				}
				if kind == KindSeries {
					counters.series++
				} else {
					counters.movies++
				}
			}

			// Skipped items still advance processed, so progress reflects
			// catalog position rather than write volume
			counters.processed += len(pr.items.Items)
			categoryItems += len(pr.items.Items)

			if incremental {
				if newOnPage == 0 {
					noNewItemPages++
					if noNewItemPages >= w.opts.MaxNoNewItemPages {
						log.WithFields(map[string]interface{}{"page": pr.page}).
							Info("No new items found, ending category early")
						stop = true
						break
					}
				} else {
					noNewItemPages = 0
				}
			}

			if err := w.tracker.UpdateProgress(jobID, Progress{
				ProcessedItems: &counters.processed,
				MoviesCount:    &counters.movies,
				SeriesCount:    &counters.series,
			}); err != nil {
				log.Error("Failed to update progress", err)
			}
		}

		if stop || !batchHasData {
			break
		}
		page += batchSize
	}

	log.WithFields(map[string]interface{}{
		"action": "category_done",
		"items":  categoryItems,
	}).Debug("Category walk finished")
	return nil
}

// fetchVodPages fetches count pages starting at first, concurrently,
// returning them in page order
func (w *Walker) fetchVodPages(ctx context.Context, client PortalClient, categoryID string, first, count int) []pageResult {
	results := make([]pageResult, count)
	var wg stdsync.WaitGroup
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			page := first + idx
			items, err := client.GetVodPage(ctx, categoryID, page)
			results[idx] = pageResult{page: page, items: items, err: err}
		}(i)
	}
	wg.Wait()
	return results
}

// loadKnownIDs returns the provider's already-synced VOD external IDs
func (w *Walker) loadKnownIDs(providerID string) (map[string]struct{}, error) {
	known := make(map[string]struct{})

	var movieIDs []string
	if err := w.db.Model(&models.Movie{}).
		Where("provider_id = ?", providerID).
		Pluck("external_id", &movieIDs).Error; err != nil {
		return nil, apperrors.DatabaseError("failed to load existing movies", err)
	}
	for _, id := range movieIDs {
		known[id] = struct{}{}
	}

	var seriesIDs []string
	if err := w.db.Model(&models.Series{}).
		Where("provider_id = ?", providerID).
		Pluck("external_id", &seriesIDs).Error; err != nil {
		return nil, apperrors.DatabaseError("failed to load existing series", err)
	}
	for _, id := range seriesIDs {
		known[id] = struct{}{}
	}
	return known, nil
}
