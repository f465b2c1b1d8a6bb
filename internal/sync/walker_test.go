package sync

import (
	"context"
	"fmt"
	stdsync "sync"
	"testing"

	"github.com/ronika/stalkarr/internal/models"
	"github.com/ronika/stalkarr/internal/portal"
	apptesting "github.com/ronika/stalkarr/internal/testing"
)

// fakePortal is an in-memory portal for sync engine tests. It records
// which pages were requested per category.
type fakePortal struct {
	mu            stdsync.Mutex
	handshakeErr  error
	handshakes    int
	genres        []portal.Genre
	vodCategories []portal.Genre
	channelPages  map[int][]portal.Channel
	channelTotal  int
	vodPages      map[string]map[int][]portal.Item
	vodTotals     map[string]int
	requested     map[string][]int
}

func newFakePortal() *fakePortal {
	return &fakePortal{
		channelPages: make(map[int][]portal.Channel),
		vodPages:     make(map[string]map[int][]portal.Item),
		vodTotals:    make(map[string]int),
		requested:    make(map[string][]int),
	}
}

func (f *fakePortal) setVodPage(categoryID string, page int, items ...portal.Item) {
	if f.vodPages[categoryID] == nil {
		f.vodPages[categoryID] = make(map[int][]portal.Item)
	}
	f.vodPages[categoryID][page] = items
}

func (f *fakePortal) Handshake(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handshakes++
	return f.handshakeErr
}

func (f *fakePortal) GetGenres(ctx context.Context) ([]portal.Genre, error) {
	return f.genres, nil
}

func (f *fakePortal) GetVodCategories(ctx context.Context) ([]portal.Genre, error) {
	return f.vodCategories, nil
}

func (f *fakePortal) GetChannels(ctx context.Context, genreID string, page int) (*portal.ChannelPage, error) {
	f.mu.Lock()
	f.requested["tv"] = append(f.requested["tv"], page)
	f.mu.Unlock()
	return &portal.ChannelPage{Channels: f.channelPages[page], Total: f.channelTotal}, nil
}

func (f *fakePortal) GetVodPage(ctx context.Context, categoryID string, page int) (*portal.ItemPage, error) {
	f.mu.Lock()
	f.requested[categoryID] = append(f.requested[categoryID], page)
	f.mu.Unlock()
	var items []portal.Item
	if pages, ok := f.vodPages[categoryID]; ok {
		items = pages[page]
	}
	return &portal.ItemPage{Items: items, Total: f.vodTotals[categoryID]}, nil
}

func (f *fakePortal) TotalPages(total int) int {
	if total <= 0 {
		return 0
	}
	return (total + portal.DefaultPageSize - 1) / portal.DefaultPageSize
}

func (f *fakePortal) BaseHost() string {
	return "http://portal.example.com"
}

func (f *fakePortal) maxRequestedPage(categoryID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	max := 0
	for _, p := range f.requested[categoryID] {
		if p > max {
			max = p
		}
	}
	return max
}

func vodItem(id, categoryID string, series bool) portal.Item {
	return portal.Item{
		ExternalID: id,
		Name:       "Item " + id,
		IsSeries:   series,
		CategoryID: categoryID,
	}
}

func vodItems(categoryID string, series bool, ids ...string) []portal.Item {
	items := make([]portal.Item, len(ids))
	for i, id := range ids {
		items[i] = vodItem(id, categoryID, series)
	}
	return items
}

func TestWalkCategoryEarlyTermination(t *testing.T) {
	db := apptesting.TestDB(t)
	provider := apptesting.CreateProvider(db)
	job := apptesting.CreateSyncJob(db, provider.ID)

	opts := DefaultOptions()
	opts.FullBatchSize = 4

	portalFake := newFakePortal()
	portalFake.vodCategories = []portal.Genre{{ID: "7", Title: "Movies"}}
	for page := 1; page <= 5; page++ {
		portalFake.setVodPage("7", page,
			vodItem(fmt.Sprintf("m%d-1", page), "7", false),
			vodItem(fmt.Sprintf("m%d-2", page), "7", false))
	}
	// Pages 6 through 8 return empty; pages past 8 would return items
	// again, so a walk that over-reads is detectable
	portalFake.setVodPage("7", 9, vodItem("ghost", "7", false))

	walker := NewWalker(db, NewTracker(db), opts, nil)
	counters, err := walker.SyncVod(context.Background(), portalFake, provider.ID, job.ID, false)
	if err != nil {
		t.Fatalf("SyncVod failed: %v", err)
	}

	if got := portalFake.maxRequestedPage("7"); got > 8 {
		t.Errorf("walker requested page %d, want walk to end at page 8", got)
	}
	if counters.processed != 10 {
		t.Errorf("processed = %d, want 10", counters.processed)
	}
	apptesting.AssertCount(t, db, &models.Movie{}, 10, "movies after walk")

	var ghost int64
	db.Model(&models.Movie{}).Where("external_id = ?", "ghost").Count(&ghost)
	if ghost != 0 {
		t.Error("walker reconciled an item past the termination point")
	}
}

func TestWalkCategoryIncrementalSkip(t *testing.T) {
	db := apptesting.TestDB(t)
	provider := apptesting.CreateProvider(db, apptesting.WithFirstFullSyncCompleted())
	job := apptesting.CreateSyncJob(db, provider.ID)

	for _, id := range []string{"A", "B", "C"} {
		apptesting.CreateMovie(db, provider.ID, apptesting.WithExternalID(id))
	}

	opts := DefaultOptions()
	opts.IncrementalBatchSize = 5

	portalFake := newFakePortal()
	portalFake.vodCategories = []portal.Genre{{ID: "7", Title: "Movies"}}
	for page := 1; page <= 5; page++ {
		portalFake.setVodPage("7", page, vodItems("7", false, "A", "B", "C")...)
	}
	portalFake.setVodPage("7", 6, vodItem("new-item", "7", false))

	walker := NewWalker(db, NewTracker(db), opts, nil)
	counters, err := walker.SyncVod(context.Background(), portalFake, provider.ID, job.ID, true)
	if err != nil {
		t.Fatalf("SyncVod failed: %v", err)
	}

	if got := portalFake.maxRequestedPage("7"); got > 5 {
		t.Errorf("incremental walk requested page %d, want early stop after page 5", got)
	}
	if counters.movies != 0 {
		t.Errorf("movies reconciled = %d, want 0", counters.movies)
	}
	if counters.skipped != 15 {
		t.Errorf("skipped = %d, want 15", counters.skipped)
	}
	// Skipped items still count toward catalog position
	if counters.processed != 15 {
		t.Errorf("processed = %d, want 15", counters.processed)
	}
	apptesting.AssertCount(t, db, &models.Movie{}, 3, "movies after incremental walk")
}

func TestSyncVodIdempotent(t *testing.T) {
	db := apptesting.TestDB(t)
	provider := apptesting.CreateProvider(db)

	portalFake := newFakePortal()
	portalFake.vodCategories = []portal.Genre{
		{ID: "7", Title: "Movies"},
		{ID: "12", Title: "Series"},
	}
	portalFake.setVodPage("7", 1, vodItems("7", false, "m1", "m2", "m3")...)
	portalFake.setVodPage("12", 1, vodItems("12", true, "s1", "s2")...)

	walker := NewWalker(db, NewTracker(db), DefaultOptions(), nil)
	for i := 0; i < 2; i++ {
		job := apptesting.CreateSyncJob(db, provider.ID)
		if _, err := walker.SyncVod(context.Background(), portalFake, provider.ID, job.ID, false); err != nil {
			t.Fatalf("SyncVod run %d failed: %v", i+1, err)
		}
	}

	apptesting.AssertCount(t, db, &models.Movie{}, 3, "movies after repeated sync")
	apptesting.AssertCount(t, db, &models.Series{}, 2, "series after repeated sync")
	apptesting.AssertCount(t, db, &models.Category{}, 2, "categories after repeated sync")
}

func TestSyncVodSeriesDiscriminant(t *testing.T) {
	db := apptesting.TestDB(t)
	provider := apptesting.CreateProvider(db)
	job := apptesting.CreateSyncJob(db, provider.ID)

	portalFake := newFakePortal()
	portalFake.vodCategories = []portal.Genre{{ID: "7", Title: "Movies"}}
	items := vodItems("7", false, "m1", "m2", "m3")
	items = append(items, vodItem("hidden-series", "7", true))
	portalFake.setVodPage("7", 1, items...)

	walker := NewWalker(db, NewTracker(db), DefaultOptions(), nil)
	counters, err := walker.SyncVod(context.Background(), portalFake, provider.ID, job.ID, false)
	if err != nil {
		t.Fatalf("SyncVod failed: %v", err)
	}

	if counters.movies != 3 {
		t.Errorf("movies = %d, want 3", counters.movies)
	}
	if counters.series != 1 {
		t.Errorf("series = %d, want 1", counters.series)
	}
	apptesting.AssertCount(t, db, &models.Series{}, 1, "series rows")

	var series models.Series
	if err := db.Where("external_id = ?", "hidden-series").First(&series).Error; err != nil {
		t.Fatalf("series row not found: %v", err)
	}
	var movieCount int64
	db.Model(&models.Movie{}).Where("external_id = ?", "hidden-series").Count(&movieCount)
	if movieCount != 0 {
		t.Error("series item was also stored as a movie")
	}
}

func TestSyncVodSkipsWildcardCategory(t *testing.T) {
	db := apptesting.TestDB(t)
	provider := apptesting.CreateProvider(db)
	job := apptesting.CreateSyncJob(db, provider.ID)

	portalFake := newFakePortal()
	portalFake.vodCategories = []portal.Genre{
		{ID: "*", Title: "All"},
		{ID: "7", Title: "Movies"},
	}
	portalFake.setVodPage("7", 1, vodItem("m1", "7", false))
	portalFake.vodTotals["*"] = 200

	walker := NewWalker(db, NewTracker(db), DefaultOptions(), nil)
	if _, err := walker.SyncVod(context.Background(), portalFake, provider.ID, job.ID, false); err != nil {
		t.Fatalf("SyncVod failed: %v", err)
	}

	// The wildcard category serves only the total probe
	if got := portalFake.maxRequestedPage("*"); got > 1 {
		t.Errorf("wildcard category walked to page %d, want probe only", got)
	}
	apptesting.AssertCount(t, db, &models.Category{}, 1, "categories")

	var job2 models.SyncJob
	if err := db.First(&job2, "id = ?", job.ID).Error; err != nil {
		t.Fatalf("job not found: %v", err)
	}
	if job2.TotalItems != 200 {
		t.Errorf("job total = %d, want 200 from the wildcard probe", job2.TotalItems)
	}
}

func TestSyncVodCancellation(t *testing.T) {
	db := apptesting.TestDB(t)
	provider := apptesting.CreateProvider(db)
	tracker := NewTracker(db)
	job := apptesting.CreateSyncJob(db, provider.ID)

	if err := tracker.Cancel(job.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	portalFake := newFakePortal()
	portalFake.vodCategories = []portal.Genre{{ID: "7", Title: "Movies"}}
	portalFake.setVodPage("7", 1, vodItem("m1", "7", false))

	walker := NewWalker(db, tracker, DefaultOptions(), nil)
	_, err := walker.SyncVod(context.Background(), portalFake, provider.ID, job.ID, false)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	apptesting.AssertCount(t, db, &models.Movie{}, 0, "movies after cancelled walk")
}

func TestSyncChannels(t *testing.T) {
	db := apptesting.TestDB(t)
	provider := apptesting.CreateProvider(db)
	job := apptesting.CreateSyncJob(db, provider.ID)

	portalFake := newFakePortal()
	portalFake.genres = []portal.Genre{
		{ID: "1", Title: "News"},
		{ID: "2", Title: "Sports"},
	}
	portalFake.channelTotal = 16 // two pages at page size 14
	portalFake.channelPages[1] = make([]portal.Channel, 0, 14)
	for i := 1; i <= 14; i++ {
		portalFake.channelPages[1] = append(portalFake.channelPages[1], portal.Channel{
			ExternalID: fmt.Sprintf("ch%d", i),
			Name:       fmt.Sprintf("Channel %d", i),
			Number:     i,
			GenreID:    "1",
		})
	}
	portalFake.channelPages[2] = []portal.Channel{
		{ExternalID: "ch15", Name: "Channel 15", Number: 15, GenreID: "2", Logo: "logo15.png"},
		{ExternalID: "ch16", Name: "Channel 16", Number: 16, GenreID: "99"},
	}

	walker := NewWalker(db, NewTracker(db), DefaultOptions(), nil)
	count, err := walker.SyncChannels(context.Background(), portalFake, provider.ID, job.ID)
	if err != nil {
		t.Fatalf("SyncChannels failed: %v", err)
	}

	if count != 16 {
		t.Errorf("channel count = %d, want 16", count)
	}
	apptesting.AssertCount(t, db, &models.Channel{}, 16, "channels")
	apptesting.AssertCount(t, db, &models.Category{}, 2, "channel genres")

	var ch15 models.Channel
	if err := db.Where("external_id = ?", "ch15").First(&ch15).Error; err != nil {
		t.Fatalf("channel not found: %v", err)
	}
	if ch15.CategoryID == nil {
		t.Error("channel genre link missing")
	}
	if ch15.Logo == nil || *ch15.Logo != "http://portal.example.com/misc/logos/320/logo15.png" {
		t.Errorf("logo not normalized: %v", ch15.Logo)
	}

	// Unknown genre reference stays unlinked but the channel is kept
	var ch16 models.Channel
	if err := db.Where("external_id = ?", "ch16").First(&ch16).Error; err != nil {
		t.Fatalf("channel not found: %v", err)
	}
	if ch16.CategoryID != nil {
		t.Error("unknown genre should leave category unset")
	}
}
