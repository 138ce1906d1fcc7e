// Package watchmode talks to the Watchmode title search API.
package watchmode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"streamwise/models"
)

var watchmodeAPIBaseURL = "https://api.watchmode.com/v1"

// setBaseURL overrides the API base URL. Used by tests.
func setBaseURL(u string) { watchmodeAPIBaseURL = u }

// Client performs authenticated requests against the Watchmode API. The
// static API key is attached to every outgoing request.
type Client struct {
	httpClient *http.Client

	mu     sync.RWMutex
	apiKey string
}

// NewClient creates a Watchmode API client.
func NewClient(apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		apiKey:     apiKey,
	}
}

// SetAPIKey swaps the key used for subsequent requests. Called when the
// persisted settings change.
func (c *Client) SetAPIKey(apiKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiKey = apiKey
}

// searchResponse mirrors the wire shape of the primary search endpoint.
// Unknown fields are ignored; missing optional fields default.
type searchResponse struct {
	TitleResults []struct {
		ID       int    `json:"id"`
		Name     string `json:"name"`
		Year     int    `json:"year"`
		ImageURL string `json:"image_url"`
		Type     string `json:"type"`
	} `json:"title_results"`
}

type wireSource struct {
	SourceID int    `json:"source_id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	WebURL   string `json:"web_url"`
}

// Search issues the primary name search and returns title summaries in the
// order the API returned them. Sources are left empty; TitleSources fills
// them per title.
func (c *Client) Search(ctx context.Context, term string) ([]models.SearchResultTitle, error) {
	params := url.Values{
		"search_field": []string{"name"},
		"search_value": []string{term},
	}

	var resp searchResponse
	if err := c.doGET(ctx, watchmodeAPIBaseURL+"/search/", params, &resp); err != nil {
		return nil, fmt.Errorf("search titles: %w", err)
	}

	titles := make([]models.SearchResultTitle, 0, len(resp.TitleResults))
	for _, r := range resp.TitleResults {
		titles = append(titles, models.SearchResultTitle{
			ExternalID:  r.ID,
			Name:        r.Name,
			ReleaseYear: r.Year,
			ImageRef:    r.ImageURL,
			Kind:        r.Type,
			Sources:     []models.Source{},
		})
	}
	return titles, nil
}

// TitleSources fetches the watch sources for a single title.
func (c *Client) TitleSources(ctx context.Context, titleID int) ([]models.Source, error) {
	var resp []wireSource
	endpoint := watchmodeAPIBaseURL + "/title/" + strconv.Itoa(titleID) + "/sources/"
	if err := c.doGET(ctx, endpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("title %d sources: %w", titleID, err)
	}

	sources := make([]models.Source, 0, len(resp))
	for _, s := range resp {
		sources = append(sources, models.Source{
			SourceID: s.SourceID,
			Name:     s.Name,
			Kind:     s.Type,
			URL:      s.WebURL,
		})
	}
	return sources, nil
}

func (c *Client) doGET(ctx context.Context, endpoint string, params url.Values, v any) error {
	if params == nil {
		params = url.Values{}
	}
	c.mu.RLock()
	params.Set("apiKey", c.apiKey)
	c.mu.RUnlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("watchmode request failed: %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
