package models

// WatchStatus tracks where a title sits in the user's viewing lifecycle.
type WatchStatus string

const (
	StatusToWatch  WatchStatus = "TO_WATCH"
	StatusWatching WatchStatus = "WATCHING"
	StatusWatched  WatchStatus = "WATCHED"
)

// Valid reports whether the status is one of the three known values.
func (s WatchStatus) Valid() bool {
	switch s {
	case StatusToWatch, StatusWatching, StatusWatched:
		return true
	}
	return false
}

// WatchItem is a title the user tracks. ID is assigned by the document store
// on first persist and is empty before that.
type WatchItem struct {
	ID          string      `json:"id"`
	ExternalRef string      `json:"externalRef"`
	Title       string      `json:"title"`
	Status      WatchStatus `json:"status"`
}

// Normalize coerces an item decoded from the store into a valid shape.
// Unknown statuses fall back to TO_WATCH rather than erroring.
func (w WatchItem) Normalize() WatchItem {
	if !w.Status.Valid() {
		w.Status = StatusToWatch
	}
	return w
}
