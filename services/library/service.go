// Package library is the single point of access to the document store and
// the search API for one signed-in user: it translates raw documents into
// typed entities, exposes the push streams the UI state is projected from,
// and performs the two-stage search enrichment.
package library

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"streamwise/internal/docstore"
	"streamwise/models"
	"streamwise/services/watchmode"
)

const (
	appRoot = "streamwise"

	// subscriptionsDocID is the single settings document holding the set of
	// services the user pays for.
	subscriptionsDocID = "subscriptions"

	// defaultUsageWindow is the rolling window recent usage is reported over.
	defaultUsageWindow = 90 * 24 * time.Hour

	// defaultMaxSourceFetches bounds the secondary fan-out in SearchTitles.
	defaultMaxSourceFetches = 5
)

var (
	ErrUserIDRequired = errors.New("user id is required")
	ErrInvalidStatus  = errors.New("invalid watch status")
)

// SearchClient is the slice of the Watchmode client the repository needs.
type SearchClient interface {
	Search(ctx context.Context, term string) ([]models.SearchResultTitle, error)
	TitleSources(ctx context.Context, titleID int) ([]models.Source, error)
}

// Service bridges the document store and the search API for one user. It
// owns no long-lived state beyond the subscription handles it hands out.
type Service struct {
	store            *docstore.Store
	search           SearchClient
	userID           string
	maxSourceFetches int
	usageWindow      time.Duration
	now              func() time.Time
}

// NewService creates the repository for the given user. The identity value
// is passed explicitly instead of being read from ambient state.
func NewService(store *docstore.Store, search SearchClient, userID string) (*Service, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserIDRequired
	}
	return &Service{
		store:            store,
		search:           search,
		userID:           userID,
		maxSourceFetches: defaultMaxSourceFetches,
		usageWindow:      defaultUsageWindow,
		now:              time.Now,
	}, nil
}

// SetClock overrides the clock used for the usage window boundary. Intended
// for tests.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// SetMaxSourceFetches bounds the concurrent secondary source lookups.
func (s *Service) SetMaxSourceFetches(n int) {
	if n > 0 {
		s.maxSourceFetches = n
	}
}

// SetUsageWindow overrides the rolling usage reporting window.
func (s *Service) SetUsageWindow(d time.Duration) {
	if d > 0 {
		s.usageWindow = d
	}
}

func (s *Service) watchlistCollection() *docstore.Collection {
	return s.store.Collection(appRoot + "/users/" + s.userID + "/watchlist")
}

func (s *Service) settingsCollection() *docstore.Collection {
	return s.store.Collection(appRoot + "/users/" + s.userID + "/settings")
}

func (s *Service) usageCollection() *docstore.Collection {
	return s.store.Collection(appRoot + "/users/" + s.userID + "/usageEvents")
}

// --- Watchlist operations ---

// WatchlistUpdates subscribes to the user's watchlist. The stream delivers
// the full collection ordered by title immediately and after every change
// visible to the store, this client's own writes included. Writes are never
// applied locally; the round-trip notification is the only update path.
func (s *Service) WatchlistUpdates(ctx context.Context) (*Stream[[]models.WatchItem], error) {
	sub, err := s.watchlistCollection().Query().OrderBy("title").Listen(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscribe watchlist: %w", err)
	}

	return newStream(sub, func(docs []docstore.Document) []models.WatchItem {
		items := make([]models.WatchItem, 0, len(docs))
		for _, doc := range docs {
			var item models.WatchItem
			if err := doc.Decode(&item); err != nil {
				log.Printf("[library] skipping malformed watchlist document %s: %v", doc.ID, err)
				continue
			}
			item.ID = doc.ID
			items = append(items, item.Normalize())
		}
		sortByTitle(items)
		return items
	}), nil
}

// AddWatchItem persists a new item and returns its store-assigned id once
// the write is acknowledged.
func (s *Service) AddWatchItem(ctx context.Context, item models.WatchItem) (string, error) {
	if item.Status == "" {
		item.Status = models.StatusToWatch
	}
	if !item.Status.Valid() {
		return "", ErrInvalidStatus
	}

	id, err := s.watchlistCollection().Add(ctx, map[string]any{
		"externalRef": item.ExternalRef,
		"title":       item.Title,
		"status":      string(item.Status),
	})
	if err != nil {
		return "", fmt.Errorf("add watch item: %w", err)
	}
	return id, nil
}

// UpdateStatus changes exactly the status field of an existing item. It
// fails if the id does not reference a stored document.
func (s *Service) UpdateStatus(ctx context.Context, id string, status models.WatchStatus) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	if err := s.watchlistCollection().Update(ctx, id, map[string]any{"status": string(status)}); err != nil {
		return fmt.Errorf("update watch status: %w", err)
	}
	return nil
}

// DeleteWatchItem removes an item. Deleting an id the store does not know
// surfaces as an error; callers may choose to ignore it.
func (s *Service) DeleteWatchItem(ctx context.Context, id string) error {
	if err := s.watchlistCollection().Delete(ctx, id); err != nil {
		return fmt.Errorf("delete watch item: %w", err)
	}
	return nil
}

// --- Subscription set operations ---

// SubscriptionUpdates subscribes to the user's streaming-service set. An
// absent remote document maps to the empty set, never to an error.
func (s *Service) SubscriptionUpdates(ctx context.Context) (*Stream[map[string]struct{}], error) {
	sub, err := s.settingsCollection().ListenDoc(ctx, subscriptionsDocID)
	if err != nil {
		return nil, fmt.Errorf("subscribe subscriptions: %w", err)
	}

	return newStream(sub, func(docs []docstore.Document) map[string]struct{} {
		set := make(map[string]struct{})
		if len(docs) == 0 {
			return set
		}
		var decoded struct {
			ServiceIDs []string `json:"serviceIds"`
		}
		if err := docs[0].Decode(&decoded); err != nil {
			log.Printf("[library] malformed subscriptions document: %v", err)
			return set
		}
		for _, id := range decoded.ServiceIDs {
			set[id] = struct{}{}
		}
		return set
	}), nil
}

// SaveSubscriptions overwrites the stored set wholesale. Last writer wins.
func (s *Service) SaveSubscriptions(ctx context.Context, set map[string]struct{}) error {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if err := s.settingsCollection().Set(ctx, subscriptionsDocID, map[string]any{"serviceIds": ids}); err != nil {
		return fmt.Errorf("save subscriptions: %w", err)
	}
	return nil
}

// --- Usage tracking operations ---

// LogUsageEvent appends a usage record with a store-assigned timestamp.
func (s *Service) LogUsageEvent(ctx context.Context, serviceID string) error {
	_, err := s.usageCollection().Add(ctx, map[string]any{
		"serviceId": serviceID,
		"timestamp": docstore.ServerTimestamp,
	})
	if err != nil {
		return fmt.Errorf("log usage event: %w", err)
	}
	return nil
}

// RecentUsageUpdates subscribes to usage events inside the rolling 90-day
// window. The boundary is computed once, at subscribe time, with an
// inclusive lower bound at exactly now minus the window.
func (s *Service) RecentUsageUpdates(ctx context.Context) (*Stream[[]models.UsageEvent], error) {
	cutoff := s.now().UTC().Add(-s.usageWindow)

	sub, err := s.usageCollection().Query().
		Where("timestamp", ">=", cutoff).
		OrderBy("timestamp").
		Listen(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscribe usage: %w", err)
	}

	return newStream(sub, func(docs []docstore.Document) []models.UsageEvent {
		events := make([]models.UsageEvent, 0, len(docs))
		for _, doc := range docs {
			var event models.UsageEvent
			if err := doc.Decode(&event); err != nil {
				log.Printf("[library] skipping malformed usage document %s: %v", doc.ID, err)
				continue
			}
			events = append(events, event)
		}
		return events
	}), nil
}

// --- Search enrichment ---

// SearchTitles runs the two-stage search: one primary request for the term,
// then one concurrent source lookup per result, joined before returning.
// A failed source lookup degrades that title to an empty source list. A
// failed primary search degrades to an empty result set; the error is
// returned alongside so the caller can surface a message, but every caller
// gets a usable slice.
func (s *Service) SearchTitles(ctx context.Context, term string) ([]models.SearchResultTitle, error) {
	titles, err := s.search.Search(ctx, term)
	if err != nil {
		log.Printf("[library] search %q failed: %v", term, err)
		return []models.SearchResultTitle{}, err
	}

	results := make([]models.SearchResultTitle, len(titles))
	p := pool.New().WithMaxGoroutines(s.maxSourceFetches)
	for i, title := range titles {
		i, title := i, title
		p.Go(func() {
			enriched := title
			sources, err := s.search.TitleSources(ctx, title.ExternalID)
			if err != nil {
				log.Printf("[library] sources for title %d failed: %v", title.ExternalID, err)
				enriched.Sources = []models.Source{}
			} else {
				enriched.Sources = watchmode.NormalizeSources(sources)
			}
			results[i] = enriched
		})
	}
	p.Wait()

	return results, nil
}

// sortByTitle orders items by title ascending, case rules aside. The store
// hands documents back ordered, but the shape of outside data is not
// trusted; ordering is enforced here before anything reaches the UI.
func sortByTitle(items []models.WatchItem) {
	c := collate.New(language.English, collate.IgnoreCase)
	sort.SliceStable(items, func(i, j int) bool {
		return c.CompareString(items[i].Title, items[j].Title) < 0
	})
}
