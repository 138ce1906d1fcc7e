package library

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"streamwise/internal/docstore"
	"streamwise/models"
)

type fakeSearch struct {
	mu          sync.Mutex
	searchErr   error
	titles      []models.SearchResultTitle
	sources     map[int][]models.Source
	sourcesErrs map[int]error
	inFlight    int
	maxInFlight int
}

func (f *fakeSearch) Search(ctx context.Context, term string) ([]models.SearchResultTitle, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.titles, nil
}

func (f *fakeSearch) TitleSources(ctx context.Context, titleID int) ([]models.Source, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	time.Sleep(10 * time.Millisecond)

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if err, ok := f.sourcesErrs[titleID]; ok {
		return nil, err
	}
	return f.sources[titleID], nil
}

func setupTestService(t *testing.T) (*Service, *docstore.Store, *fakeSearch) {
	t.Helper()

	store, err := docstore.Open(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	search := &fakeSearch{sources: make(map[int][]models.Source)}
	svc, err := NewService(store, search, "user-1")
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return svc, store, search
}

func waitFor[T any](t *testing.T, st *Stream[T]) T {
	t.Helper()
	select {
	case v, ok := <-st.Updates():
		if !ok {
			t.Fatalf("stream closed unexpectedly: %v", st.Err())
		}
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream update")
	}
	var zero T
	return zero
}

func TestNewServiceRequiresUserID(t *testing.T) {
	store, err := docstore.Open(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	if _, err := NewService(store, &fakeSearch{}, "  "); !errors.Is(err, ErrUserIDRequired) {
		t.Errorf("expected ErrUserIDRequired, got %v", err)
	}
}

func TestWatchlistWritesArriveOnlyViaStream(t *testing.T) {
	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	stream, err := svc.WatchlistUpdates(ctx)
	if err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}
	defer stream.Close()

	initial := waitFor(t, stream)
	if len(initial) != 0 {
		t.Fatalf("expected empty initial snapshot, got %d items", len(initial))
	}

	id, err := svc.AddWatchItem(ctx, models.WatchItem{ExternalRef: "wm-1", Title: "Severance"})
	if err != nil {
		t.Fatalf("failed to add item: %v", err)
	}

	afterAdd := waitFor(t, stream)
	if len(afterAdd) != 1 {
		t.Fatalf("expected 1 item after add, got %d", len(afterAdd))
	}
	if afterAdd[0].ID != id || afterAdd[0].Title != "Severance" {
		t.Errorf("unexpected item %+v", afterAdd[0])
	}
	if afterAdd[0].Status != models.StatusToWatch {
		t.Errorf("expected default status TO_WATCH, got %s", afterAdd[0].Status)
	}

	if err := svc.UpdateStatus(ctx, id, models.StatusWatching); err != nil {
		t.Fatalf("failed to update status: %v", err)
	}
	afterUpdate := waitFor(t, stream)
	if afterUpdate[0].Status != models.StatusWatching {
		t.Errorf("expected WATCHING after update, got %s", afterUpdate[0].Status)
	}
	if afterUpdate[0].Title != "Severance" {
		t.Errorf("status update must not touch other fields, title became %q", afterUpdate[0].Title)
	}

	if err := svc.DeleteWatchItem(ctx, id); err != nil {
		t.Fatalf("failed to delete item: %v", err)
	}
	afterDelete := waitFor(t, stream)
	if len(afterDelete) != 0 {
		t.Fatalf("expected empty snapshot after delete, got %d items", len(afterDelete))
	}
}

func TestWatchlistOrderedByTitleCaseInsensitive(t *testing.T) {
	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	for _, title := range []string{"zebra crossing", "Apple Season", "mandalorian", "Barry"} {
		if _, err := svc.AddWatchItem(ctx, models.WatchItem{Title: title}); err != nil {
			t.Fatalf("failed to add %q: %v", title, err)
		}
	}

	stream, err := svc.WatchlistUpdates(ctx)
	if err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}
	defer stream.Close()

	items := waitFor(t, stream)
	want := []string{"Apple Season", "Barry", "mandalorian", "zebra crossing"}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(items))
	}
	for i, title := range want {
		if items[i].Title != title {
			t.Errorf("position %d: expected %q, got %q", i, title, items[i].Title)
		}
	}
}

func TestUpdateStatusValidation(t *testing.T) {
	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	if err := svc.UpdateStatus(ctx, "some-id", models.WatchStatus("PAUSED")); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
	if err := svc.UpdateStatus(ctx, "missing-id", models.StatusWatched); !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing id, got %v", err)
	}
}

func TestSubscriptionsAbsentDocumentIsEmptySet(t *testing.T) {
	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	stream, err := svc.SubscriptionUpdates(ctx)
	if err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}
	defer stream.Close()

	set := waitFor(t, stream)
	if len(set) != 0 {
		t.Fatalf("expected empty set for absent document, got %v", set)
	}
}

func TestSaveSubscriptionsOverwritesWholeSet(t *testing.T) {
	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	stream, err := svc.SubscriptionUpdates(ctx)
	if err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}
	defer stream.Close()
	waitFor(t, stream)

	first := map[string]struct{}{"netflix": {}, "hulu": {}}
	if err := svc.SaveSubscriptions(ctx, first); err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	got := waitFor(t, stream)
	if len(got) != 2 {
		t.Fatalf("expected 2 services, got %v", got)
	}

	second := map[string]struct{}{"max": {}}
	if err := svc.SaveSubscriptions(ctx, second); err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	got = waitFor(t, stream)
	if _, ok := got["max"]; !ok || len(got) != 1 {
		t.Errorf("expected set to be replaced wholesale, got %v", got)
	}
}

func TestRecentUsageWindowInclusiveBoundary(t *testing.T) {
	svc, store, _ := setupTestService(t)
	ctx := context.Background()

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return now })

	// Events exactly on, inside, and outside the 90 day boundary.
	stamps := map[string]time.Time{
		"on-boundary":  now.Add(-90 * 24 * time.Hour),
		"just-outside": now.Add(-90*24*time.Hour - time.Second),
		"recent":       now.Add(-time.Hour),
	}
	for id, ts := range stamps {
		store.SetClock(func() time.Time { return ts })
		if err := svc.LogUsageEvent(ctx, id); err != nil {
			t.Fatalf("failed to log %s: %v", id, err)
		}
	}
	store.SetClock(time.Now)

	stream, err := svc.RecentUsageUpdates(ctx)
	if err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}
	defer stream.Close()

	events := waitFor(t, stream)
	if len(events) != 2 {
		t.Fatalf("expected 2 events inside window, got %d", len(events))
	}
	if events[0].ServiceID != "on-boundary" || events[1].ServiceID != "recent" {
		t.Errorf("expected chronological [on-boundary recent], got %+v", events)
	}
}

func TestSearchTitlesEnrichesEachResult(t *testing.T) {
	svc, _, search := setupTestService(t)

	search.titles = []models.SearchResultTitle{
		{ExternalID: 10, Name: "First"},
		{ExternalID: 20, Name: "Second"},
	}
	search.sources = map[int][]models.Source{
		10: {{SourceID: 1, Name: "hbo max", Kind: "sub", URL: "https://max.example"}},
		20: {{SourceID: 2, Name: "Netflix", Kind: "sub", URL: "https://netflix.example"}},
	}

	results, err := svc.SearchTitles(context.Background(), "test")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Name != "First" || results[1].Name != "Second" {
		t.Errorf("result order must match the primary response, got %+v", results)
	}
	if len(results[0].Sources) != 1 || results[0].Sources[0].Name != "Max" {
		t.Errorf("expected normalized source Max, got %+v", results[0].Sources)
	}
}

func TestSearchTitlesSourceFailureDegradesOneTitle(t *testing.T) {
	svc, _, search := setupTestService(t)

	search.titles = []models.SearchResultTitle{
		{ExternalID: 10, Name: "Healthy"},
		{ExternalID: 20, Name: "Broken"},
	}
	search.sources = map[int][]models.Source{
		10: {{SourceID: 1, Name: "Netflix"}},
	}
	search.sourcesErrs = map[int]error{20: errors.New("upstream 500")}

	results, err := svc.SearchTitles(context.Background(), "test")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results[0].Sources) != 1 {
		t.Errorf("healthy title lost its sources: %+v", results[0])
	}
	if results[1].Sources == nil || len(results[1].Sources) != 0 {
		t.Errorf("broken title should carry an empty source list, got %+v", results[1].Sources)
	}
}

func TestSearchTitlesPrimaryFailureReturnsEmptySlice(t *testing.T) {
	svc, _, search := setupTestService(t)
	search.searchErr = errors.New("api key rejected")

	results, err := svc.SearchTitles(context.Background(), "test")
	if err == nil {
		t.Fatal("expected an error from the primary search")
	}
	if results == nil || len(results) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", results)
	}
}

func TestSearchTitlesBoundsConcurrentSourceFetches(t *testing.T) {
	svc, _, search := setupTestService(t)
	svc.SetMaxSourceFetches(3)

	for i := 0; i < 12; i++ {
		search.titles = append(search.titles, models.SearchResultTitle{ExternalID: i, Name: fmt.Sprintf("Title %d", i)})
	}

	if _, err := svc.SearchTitles(context.Background(), "test"); err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if search.maxInFlight > 3 {
		t.Errorf("expected at most 3 concurrent source fetches, saw %d", search.maxInFlight)
	}
}

func TestStreamCloseIsIdempotent(t *testing.T) {
	svc, _, _ := setupTestService(t)

	stream, err := svc.WatchlistUpdates(context.Background())
	if err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}
	waitFor(t, stream)

	stream.Close()
	stream.Close()

	select {
	case _, ok := <-stream.Updates():
		if ok {
			t.Error("expected no further deliveries after close")
		}
	case <-time.After(2 * time.Second):
		t.Error("timed out waiting for updates channel to close")
	}
}
