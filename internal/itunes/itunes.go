// Package itunes is a client for the iTunes Search API, used to find
// podcasts and podcast episodes.
package itunes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// API endpoints.
const (
	defaultSearchURL = "https://itunes.apple.com/search"
	defaultLookupURL = "https://itunes.apple.com/lookup"

	// requestTimeout bounds one search or lookup call.
	requestTimeout = 15 * time.Second
)

// Entity values accepted by the API.
const (
	EntityPodcast        = "podcast"
	EntityPodcastEpisode = "podcastEpisode"
)

// MediaPodcast is the media type for all queries this backend issues.
const MediaPodcast = "podcast"

// httpDoer abstracts the HTTP client for testing.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// SearchParams describes one search or lookup request.
type SearchParams struct {
	// Term is the search term. Ignored by collection lookups.
	Term string

	// Media is the media type, normally MediaPodcast.
	Media string

	// Entity selects podcasts or episodes. Optional for searches.
	Entity string

	// Limit caps the number of results.
	Limit int

	// Country is a two-letter country code.
	Country string

	// CollectionID, when set together with EntityPodcastEpisode, switches
	// the request to the lookup API and returns that podcast's episodes.
	CollectionID int64
}

// isLookup reports whether the params describe an episodes-by-podcast
// lookup rather than a term search.
func (p SearchParams) isLookup() bool {
	return p.Entity == EntityPodcastEpisode && p.CollectionID != 0
}

// SearchResult is the raw API payload. Result items are heterogeneous
// (podcasts and episodes carry different keys), so they stay untyped
// until FormatResults shapes them.
type SearchResult struct {
	ResultCount int              `json:"resultCount"`
	Results     []map[string]any `json:"results"`
}

// Client calls the iTunes Search and Lookup APIs.
type Client struct {
	httpClient httpDoer
	searchURL  string
	lookupURL  string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(c httpDoer) ClientOption {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithBaseURLs overrides the search and lookup endpoints (for testing).
func WithBaseURLs(searchURL, lookupURL string) ClientOption {
	return func(cl *Client) {
		cl.searchURL = searchURL
		cl.lookupURL = lookupURL
	}
}

// NewClient creates a Client with production defaults.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		searchURL:  defaultSearchURL,
		lookupURL:  defaultLookupURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search queries the iTunes API. Lookup-style params (episodes of one
// podcast) go to the lookup endpoint; everything else goes to search.
func (c *Client) Search(ctx context.Context, p SearchParams) (SearchResult, error) {
	endpoint := c.searchURL
	values := url.Values{}

	if p.isLookup() {
		endpoint = c.lookupURL
		values.Set("id", strconv.FormatInt(p.CollectionID, 10))
		values.Set("entity", EntityPodcastEpisode)
	} else {
		values.Set("term", p.Term)
		if p.Media != "" {
			values.Set("media", p.Media)
		}
		if p.Entity != "" {
			values.Set("entity", p.Entity)
		}
	}
	if p.Limit > 0 {
		values.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Country != "" {
		values.Set("country", p.Country)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+values.Encode(), nil)
	if err != nil {
		return SearchResult{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return SearchResult{}, fmt.Errorf("itunes request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return SearchResult{}, fmt.Errorf("itunes responded %s", resp.Status)
	}

	var result SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return SearchResult{}, fmt.Errorf("failed to parse itunes response: %w", err)
	}
	return result, nil
}

// Result is a podcast or an episode shaped for the frontend.
// Type is "podcast", "episode", or "unknown"; fields belonging to the
// other kind are left empty and omitted from JSON.
type Result struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ArtworkURL  string `json:"artwork_url"`
	ReleaseDate string `json:"release_date,omitempty"`

	// Podcast fields.
	Artist       string `json:"artist,omitempty"`
	FeedURL      string `json:"feed_url,omitempty"`
	Genre        string `json:"genre,omitempty"`
	EpisodeCount int    `json:"episode_count,omitempty"`
	Country      string `json:"country,omitempty"`

	// Episode fields.
	PodcastID      int64  `json:"podcast_id,omitempty"`
	PodcastTitle   string `json:"podcast_title,omitempty"`
	AudioURL       string `json:"audio_url,omitempty"`
	DurationMillis int64  `json:"duration,omitempty"`
	EpisodeNumber  int    `json:"episode_number,omitempty"`
	Season         int    `json:"season,omitempty"`
}

// FormatResults shapes raw API items into Results.
//
// Lookup responses lead with the podcast itself before its episodes.
// That header row is detected heuristically (no "kind" key but a
// "collectionId") and skipped. The heuristic is fragile but matches the
// API's observed behavior; it only ever drops the first item.
func FormatResults(raw SearchResult) []Result {
	items := raw.Results
	if len(items) > 0 {
		if _, hasKind := items[0]["kind"]; !hasKind {
			if _, hasCollection := items[0]["collectionId"]; hasCollection {
				items = items[1:]
			}
		}
	}

	formatted := make([]Result, 0, len(items))
	for _, item := range items {
		formatted = append(formatted, formatItem(item))
	}
	return formatted
}

// formatItem shapes one raw item by its kind.
func formatItem(item map[string]any) Result {
	switch {
	case getString(item, "kind") == "podcast":
		return Result{
			ID:           getInt64(item, "collectionId"),
			Type:         "podcast",
			Title:        getString(item, "collectionName"),
			Description:  firstString(item, "description", "collectionCensoredName"),
			ArtworkURL:   firstString(item, "artworkUrl600", "artworkUrl100"),
			Artist:       getString(item, "artistName"),
			FeedURL:      getString(item, "feedUrl"),
			Genre:        getString(item, "primaryGenreName"),
			ReleaseDate:  getString(item, "releaseDate"),
			EpisodeCount: int(getInt64(item, "trackCount")),
			Country:      getString(item, "country"),
		}

	case isEpisode(item):
		return Result{
			ID:             getInt64(item, "trackId"),
			Type:           "episode",
			Title:          getString(item, "trackName"),
			Description:    getString(item, "description"),
			ArtworkURL:     firstString(item, "artworkUrl600", "artworkUrl100"),
			ReleaseDate:    getString(item, "releaseDate"),
			PodcastID:      getInt64(item, "collectionId"),
			PodcastTitle:   getString(item, "collectionName"),
			AudioURL:       firstString(item, "episodeUrl", "previewUrl"),
			DurationMillis: getInt64(item, "trackTimeMillis"),
			EpisodeNumber:  int(getInt64(item, "episodeNumber")),
			Season:         int(getInt64(item, "seasonNumber")),
		}

	default:
		id := getInt64(item, "trackId")
		if id == 0 {
			id = getInt64(item, "collectionId")
		}
		title := getString(item, "trackName")
		if title == "" {
			title = getString(item, "collectionName")
		}
		return Result{
			ID:          id,
			Type:        "unknown",
			Title:       title,
			Description: getString(item, "description"),
			ArtworkURL:  getString(item, "artworkUrl100"),
		}
	}
}

// isEpisode reports whether a raw item describes a podcast episode,
// either by kind or by carrying episode-identifying keys.
func isEpisode(item map[string]any) bool {
	if getString(item, "kind") == "podcast-episode" {
		return true
	}
	_, hasEpisodeURL := item["episodeUrl"]
	_, hasCollection := item["collectionId"]
	_, hasTrack := item["trackId"]
	return hasEpisodeURL && hasCollection && hasTrack
}

// getString reads a string value, tolerating absent or non-string entries.
func getString(item map[string]any, key string) string {
	if v, ok := item[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// firstString returns the first non-empty string among keys.
func firstString(item map[string]any, keys ...string) string {
	for _, key := range keys {
		if v := getString(item, key); v != "" {
			return v
		}
	}
	return ""
}

// getInt64 reads a numeric value. JSON numbers decode as float64.
func getInt64(item map[string]any, key string) int64 {
	switch v := item[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}
