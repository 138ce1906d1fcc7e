package models

// Source is a place a title can be watched.
type Source struct {
	SourceID int    `json:"sourceId"`
	Name     string `json:"name"`
	Kind     string `json:"kind"` // sub | rent | buy
	URL      string `json:"url"`
}

// SearchResultTitle is one enrichable hit from the search API. Sources is
// empty straight after the primary search and replaced wholesale once the
// secondary lookup for this title settles.
type SearchResultTitle struct {
	ExternalID  int      `json:"externalId"`
	Name        string   `json:"name"`
	ReleaseYear int      `json:"releaseYear,omitempty"`
	ImageRef    string   `json:"imageRef,omitempty"`
	Kind        string   `json:"kind,omitempty"`
	Sources     []Source `json:"sources"`
}
