package models

// UIState is the single snapshot of everything the display client renders
// for one signed-in user. The state controller is its only writer.
type UIState struct {
	// Watchlist, projected from the store's push stream.
	Watchlist        []WatchItem `json:"watchlist"`
	WatchlistLoading bool        `json:"watchlistLoading"`
	WatchlistError   string      `json:"watchlistError,omitempty"`

	// Search, transient for the current session.
	SearchTerm    string              `json:"searchTerm"`
	SearchResults []SearchResultTitle `json:"searchResults"`
	Searching     bool                `json:"searching"`
	SearchError   string              `json:"searchError,omitempty"`

	// Subscriptions, projected from the store's push stream. Sorted for a
	// stable wire representation.
	Subscriptions     []string `json:"subscriptions"`
	SubscriptionError string   `json:"subscriptionError,omitempty"`

	// Usage inside the rolling window, projected from the store.
	RecentUsage []UsageEvent `json:"recentUsage"`
	UsageError  string       `json:"usageError,omitempty"`
}

// Clone returns a deep copy so published snapshots never alias the
// controller's internal slices.
func (s UIState) Clone() UIState {
	out := s
	out.Watchlist = append([]WatchItem(nil), s.Watchlist...)
	out.SearchResults = make([]SearchResultTitle, len(s.SearchResults))
	for i, r := range s.SearchResults {
		r.Sources = append([]Source(nil), r.Sources...)
		out.SearchResults[i] = r
	}
	out.Subscriptions = append([]string(nil), s.Subscriptions...)
	out.RecentUsage = append([]UsageEvent(nil), s.RecentUsage...)
	return out
}
