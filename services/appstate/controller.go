// Package appstate projects the per-user document streams and search
// responses into a single UI state snapshot and applies user intents
// against it. All durable writes go down to the library and come back as
// stream updates; the controller never patches durable sections locally.
package appstate

import (
	"context"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"streamwise/models"
	"streamwise/services/library"
)

const (
	defaultDebounce   = 500 * time.Millisecond
	defaultMinTermLen = 3
)

// Controller owns the UI state for one user session. A mutex serializes
// every mutation; subscribers receive full snapshots, never deltas.
type Controller struct {
	library *library.Service

	mu     sync.Mutex
	state  models.UIState
	closed bool

	debounce      time.Duration
	minTermLen    int
	debounceTimer *time.Timer

	// searchSeq stamps each launched search; a response whose stamp no
	// longer matches is stale and must be discarded.
	searchSeq    uint64
	searchCancel context.CancelFunc

	subscribers   map[chan models.UIState]struct{}
	streamsCancel context.CancelFunc
	wg            sync.WaitGroup
}

// NewController creates a controller that has not yet attached to the
// library streams. Call Start before handing it to subscribers.
func NewController(lib *library.Service) *Controller {
	return &Controller{
		library:    lib,
		debounce:   defaultDebounce,
		minTermLen: defaultMinTermLen,
		state: models.UIState{
			Watchlist:        []models.WatchItem{},
			WatchlistLoading: true,
			SearchResults:    []models.SearchResultTitle{},
			Subscriptions:    []string{},
			RecentUsage:      []models.UsageEvent{},
		},
		subscribers: make(map[chan models.UIState]struct{}),
	}
}

// SetDebounce overrides the search debounce interval.
func (c *Controller) SetDebounce(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.debounce = d
	}
}

// SetMinTermLength overrides the minimum searchable term length.
func (c *Controller) SetMinTermLength(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n > 0 {
		c.minTermLen = n
	}
}

// Start attaches the controller to the three library streams. It returns
// once all subscriptions are established; projection runs in the
// background until Close.
func (c *Controller) Start(ctx context.Context) error {
	streamCtx, cancel := context.WithCancel(ctx)

	watchlist, err := c.library.WatchlistUpdates(streamCtx)
	if err != nil {
		cancel()
		return err
	}
	subscriptions, err := c.library.SubscriptionUpdates(streamCtx)
	if err != nil {
		watchlist.Close()
		cancel()
		return err
	}
	usage, err := c.library.RecentUsageUpdates(streamCtx)
	if err != nil {
		watchlist.Close()
		subscriptions.Close()
		cancel()
		return err
	}

	c.mu.Lock()
	c.streamsCancel = cancel
	c.mu.Unlock()

	c.wg.Add(3)
	go c.projectWatchlist(watchlist)
	go c.projectSubscriptions(subscriptions)
	go c.projectUsage(usage)
	return nil
}

func (c *Controller) projectWatchlist(stream *library.Stream[[]models.WatchItem]) {
	defer c.wg.Done()
	for items := range stream.Updates() {
		c.apply(func(s *models.UIState) {
			s.Watchlist = items
			s.WatchlistLoading = false
			s.WatchlistError = ""
		})
	}
	if err := stream.Err(); err != nil {
		c.apply(func(s *models.UIState) {
			s.WatchlistLoading = false
			s.WatchlistError = "watchlist unavailable"
		})
		log.Printf("[appstate] watchlist stream ended: %v", err)
	}
}

func (c *Controller) projectSubscriptions(stream *library.Stream[map[string]struct{}]) {
	defer c.wg.Done()
	for set := range stream.Updates() {
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		c.apply(func(s *models.UIState) {
			s.Subscriptions = ids
			s.SubscriptionError = ""
		})
	}
	if err := stream.Err(); err != nil {
		c.apply(func(s *models.UIState) { s.SubscriptionError = "subscriptions unavailable" })
		log.Printf("[appstate] subscription stream ended: %v", err)
	}
}

func (c *Controller) projectUsage(stream *library.Stream[[]models.UsageEvent]) {
	defer c.wg.Done()
	for events := range stream.Updates() {
		c.apply(func(s *models.UIState) {
			s.RecentUsage = events
			s.UsageError = ""
		})
	}
	if err := stream.Err(); err != nil {
		c.apply(func(s *models.UIState) { s.UsageError = "usage history unavailable" })
		log.Printf("[appstate] usage stream ended: %v", err)
	}
}

// apply runs one mutation under the lock and publishes the new snapshot.
// Mutations are dropped once the controller is closed.
func (c *Controller) apply(mutate func(*models.UIState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	mutate(&c.state)
	c.publishLocked()
}

// publishLocked fans the current snapshot out to every subscriber. A full
// channel drops its stale snapshot first; only the newest state matters.
func (c *Controller) publishLocked() {
	snapshot := c.state.Clone()
	for ch := range c.subscribers {
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}

// Subscribe registers a state listener. The current snapshot is delivered
// immediately. The returned release function is idempotent.
func (c *Controller) Subscribe() (<-chan models.UIState, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan models.UIState, 1)
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	c.subscribers[ch] = struct{}{}
	ch <- c.state.Clone()

	var once sync.Once
	release := func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if _, ok := c.subscribers[ch]; ok {
				delete(c.subscribers, ch)
				close(ch)
			}
		})
	}
	return ch, release
}

// Library exposes the controller's repository for request-scoped reads
// that bypass the debounced state machine.
func (c *Controller) Library() *library.Service {
	return c.library
}

// State returns the current snapshot.
func (c *Controller) State() models.UIState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// --- Intents ---

// SetSearchTerm records the term and schedules a debounced search. Terms
// shorter than the minimum clear the search section and cancel any pending
// or in-flight search instead.
func (c *Controller) SetSearchTerm(term string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.state.SearchTerm = term
	c.cancelSearchLocked()

	if len(strings.TrimSpace(term)) < c.minTermLen {
		c.state.SearchResults = []models.SearchResultTitle{}
		c.state.Searching = false
		c.state.SearchError = ""
		c.publishLocked()
		return
	}

	// The timer closure carries the generation it was scheduled under. A
	// timer that already fired when a newer term took the lock cannot be
	// stopped; the stale stamp is what stops it from running its search.
	gen := c.searchSeq
	c.debounceTimer = time.AfterFunc(c.debounce, func() { c.runSearch(term, gen) })
	c.publishLocked()
}

// cancelSearchLocked stops the pending debounce timer and aborts the
// in-flight request. The sequence bump makes any response already past the
// point of cancellation stale.
func (c *Controller) cancelSearchLocked() {
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
		c.debounceTimer = nil
	}
	if c.searchCancel != nil {
		c.searchCancel()
		c.searchCancel = nil
	}
	c.searchSeq++
}

func (c *Controller) runSearch(term string, seq uint64) {
	c.mu.Lock()
	if c.closed || seq != c.searchSeq {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.searchCancel = cancel
	c.state.Searching = true
	c.publishLocked()
	c.mu.Unlock()

	results, err := c.library.SearchTitles(ctx, term)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || seq != c.searchSeq {
		return
	}
	c.searchCancel = nil
	c.state.Searching = false
	if err != nil {
		c.state.SearchResults = []models.SearchResultTitle{}
		c.state.SearchError = "search is unavailable right now"
	} else {
		c.state.SearchResults = results
		c.state.SearchError = ""
	}
	c.publishLocked()
}

// AddToWatchlist persists a search result as a new TO_WATCH item. The
// search section is cleared immediately; the watchlist itself changes only
// when the write comes back on the stream.
func (c *Controller) AddToWatchlist(title models.SearchResultTitle) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.cancelSearchLocked()
	c.state.SearchTerm = ""
	c.state.SearchResults = []models.SearchResultTitle{}
	c.state.Searching = false
	c.state.SearchError = ""
	c.publishLocked()
	c.mu.Unlock()

	go func() {
		_, err := c.library.AddWatchItem(context.Background(), models.WatchItem{
			ExternalRef: strconv.Itoa(title.ExternalID),
			Title:       title.Name,
			Status:      models.StatusToWatch,
		})
		if err != nil {
			log.Printf("[appstate] failed to add %q to watchlist: %v", title.Name, err)
			c.apply(func(s *models.UIState) { s.WatchlistError = "could not add title" })
		}
	}()
}

// SetStatus writes a status change through to the store.
func (c *Controller) SetStatus(id string, status models.WatchStatus) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	go func() {
		if err := c.library.UpdateStatus(context.Background(), id, status); err != nil {
			log.Printf("[appstate] failed to update status of %s: %v", id, err)
			c.apply(func(s *models.UIState) { s.WatchlistError = "could not update item" })
		}
	}()
}

// DeleteItem removes a watchlist item.
func (c *Controller) DeleteItem(id string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	go func() {
		if err := c.library.DeleteWatchItem(context.Background(), id); err != nil {
			log.Printf("[appstate] failed to delete %s: %v", id, err)
			c.apply(func(s *models.UIState) { s.WatchlistError = "could not remove item" })
		}
	}()
}

// ToggleSubscription flips one service's membership. The next set is
// computed from the projected state and written wholesale; the UI section
// updates only when the write round-trips through the stream.
func (c *Controller) ToggleSubscription(serviceID string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	next := make(map[string]struct{}, len(c.state.Subscriptions)+1)
	for _, id := range c.state.Subscriptions {
		next[id] = struct{}{}
	}
	if _, ok := next[serviceID]; ok {
		delete(next, serviceID)
	} else {
		next[serviceID] = struct{}{}
	}
	c.mu.Unlock()

	go func() {
		if err := c.library.SaveSubscriptions(context.Background(), next); err != nil {
			log.Printf("[appstate] failed to save subscriptions: %v", err)
			c.apply(func(s *models.UIState) { s.SubscriptionError = "could not save subscriptions" })
		}
	}()
}

// LogUsage records that a streaming service was opened. Fire and forget;
// a lost event only skews the advisory signal slightly.
func (c *Controller) LogUsage(serviceID string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	go func() {
		if err := c.library.LogUsageEvent(context.Background(), serviceID); err != nil {
			log.Printf("[appstate] failed to log usage of %s: %v", serviceID, err)
		}
	}()
}

// Close tears the controller down: streams are released, pending and
// in-flight searches cancelled, subscriber channels closed. After Close no
// intent mutates state and no snapshot is delivered.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.cancelSearchLocked()
	if c.streamsCancel != nil {
		c.streamsCancel()
	}
	for ch := range c.subscribers {
		close(ch)
	}
	c.subscribers = make(map[chan models.UIState]struct{})
	c.mu.Unlock()

	c.wg.Wait()
}
