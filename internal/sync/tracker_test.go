package sync

import (
	stdsync "sync"
	"testing"

	"github.com/ronika/stalkarr/internal/models"
	apptesting "github.com/ronika/stalkarr/internal/testing"
)

func TestTrackerStartCreatesJob(t *testing.T) {
	db := apptesting.TestDB(t)
	provider := apptesting.CreateProvider(db)
	tracker := NewTracker(db)

	job, created, err := tracker.Start(provider.ID)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !created {
		t.Error("expected a new job")
	}
	if job.Status != models.SyncStatusProcessing {
		t.Errorf("status = %s, want processing", job.Status)
	}
	if job.StartedAt.IsZero() {
		t.Error("StartedAt not set")
	}
}

func TestTrackerStartReturnsExistingJob(t *testing.T) {
	db := apptesting.TestDB(t)
	provider := apptesting.CreateProvider(db)
	tracker := NewTracker(db)

	first, _, err := tracker.Start(provider.ID)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	second, created, err := tracker.Start(provider.ID)
	if err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	if created {
		t.Error("second Start should not create a job")
	}
	if second.ID != first.ID {
		t.Errorf("second Start returned job %s, want %s", second.ID, first.ID)
	}
	apptesting.AssertCount(t, db, &models.SyncJob{}, 1, "jobs")
}

func TestTrackerStartConcurrent(t *testing.T) {
	db := apptesting.TestDB(t)
	provider := apptesting.CreateProvider(db)
	tracker := NewTracker(db)

	const callers = 10
	var wg stdsync.WaitGroup
	createdCount := make(chan bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := tracker.Start(provider.ID)
			if err != nil {
				t.Errorf("Start failed: %v", err)
				return
			}
			createdCount <- created
		}()
	}
	wg.Wait()
	close(createdCount)

	total := 0
	for created := range createdCount {
		if created {
			total++
		}
	}
	if total != 1 {
		t.Errorf("%d jobs created, want exactly 1", total)
	}

	var processing int64
	db.Model(&models.SyncJob{}).Where("status = ?", models.SyncStatusProcessing).Count(&processing)
	if processing != 1 {
		t.Errorf("%d processing jobs, want 1", processing)
	}
}

func TestTrackerStartAfterTerminalJob(t *testing.T) {
	db := apptesting.TestDB(t)
	provider := apptesting.CreateProvider(db)
	tracker := NewTracker(db)

	first, _, _ := tracker.Start(provider.ID)
	if err := tracker.Complete(first.ID); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	second, created, err := tracker.Start(provider.ID)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !created {
		t.Error("expected a new job after the previous one finished")
	}
	if second.ID == first.ID {
		t.Error("expected a fresh job id")
	}
}

func TestTrackerUpdateProgressPartial(t *testing.T) {
	db := apptesting.TestDB(t)
	provider := apptesting.CreateProvider(db)
	tracker := NewTracker(db)
	job, _, _ := tracker.Start(provider.ID)

	total := 500
	if err := tracker.UpdateProgress(job.ID, Progress{TotalItems: &total}); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}
	processed := 42
	movies := 40
	if err := tracker.UpdateProgress(job.ID, Progress{ProcessedItems: &processed, MoviesCount: &movies}); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}

	got, err := tracker.Get(job.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.TotalItems != 500 {
		t.Errorf("TotalItems = %d, want 500", got.TotalItems)
	}
	if got.ProcessedItems != 42 {
		t.Errorf("ProcessedItems = %d, want 42", got.ProcessedItems)
	}
	if got.MoviesCount != 40 {
		t.Errorf("MoviesCount = %d, want 40", got.MoviesCount)
	}
	if got.ChannelsCount != 0 {
		t.Errorf("ChannelsCount = %d, want 0 untouched", got.ChannelsCount)
	}
}

func TestTrackerFailRecordsError(t *testing.T) {
	db := apptesting.TestDB(t)
	provider := apptesting.CreateProvider(db)
	tracker := NewTracker(db)
	job, _, _ := tracker.Start(provider.ID)

	if err := tracker.Fail(job.ID, "upstream exploded"); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}

	got, _ := tracker.Get(job.ID)
	if got.Status != models.SyncStatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if got.Error == nil || *got.Error != "upstream exploded" {
		t.Errorf("error = %v, want recorded message", got.Error)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
}

func TestTrackerFinalizeOnce(t *testing.T) {
	db := apptesting.TestDB(t)
	provider := apptesting.CreateProvider(db)
	tracker := NewTracker(db)
	job, _, _ := tracker.Start(provider.ID)

	if err := tracker.Cancel(job.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	// A late failure from the background run must not overwrite the
	// cancelled status
	if err := tracker.Fail(job.ID, "late failure"); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}

	got, _ := tracker.Get(job.ID)
	if got.Status != models.SyncStatusCancelled {
		t.Errorf("status = %s, want cancelled to stick", got.Status)
	}
}

func TestTrackerActive(t *testing.T) {
	db := apptesting.TestDB(t)
	provider := apptesting.CreateProvider(db)
	tracker := NewTracker(db)

	job, err := tracker.Active(provider.ID)
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if job != nil {
		t.Error("expected no active job")
	}

	started, _, _ := tracker.Start(provider.ID)
	job, err = tracker.Active(provider.ID)
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if job == nil || job.ID != started.ID {
		t.Errorf("Active = %v, want job %s", job, started.ID)
	}
}
