package itunes_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"testing"

	"github.com/Eriw/podcast-transcriber/internal/itunes"
)

// recordingServer captures the path and query of the last request and
// replies with body.
type recordingServer struct {
	srv   *httptest.Server
	path  string
	query url.Values
}

func newRecordingServer(t *testing.T, body string) *recordingServer {
	t.Helper()
	rs := &recordingServer{}
	rs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.path = r.URL.Path
		rs.query = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(rs.srv.Close)
	return rs
}

func (rs *recordingServer) client(t *testing.T) *itunes.Client {
	t.Helper()
	return itunes.NewClient(
		itunes.WithHTTPClient(rs.srv.Client()),
		itunes.WithBaseURLs(rs.srv.URL+"/search", rs.srv.URL+"/lookup"))
}

// ---------------------------------------------------------------------------
// Search - endpoint routing and query building
// ---------------------------------------------------------------------------

func TestSearch_TermSearchParams(t *testing.T) {
	t.Parallel()

	rs := newRecordingServer(t, `{"resultCount": 0, "results": []}`)

	_, err := rs.client(t).Search(context.Background(), itunes.SearchParams{
		Term:    "morning news",
		Media:   itunes.MediaPodcast,
		Entity:  itunes.EntityPodcast,
		Limit:   10,
		Country: "US",
	})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	if rs.path != "/search" {
		t.Errorf("request went to %s, want /search", rs.path)
	}
	for key, want := range map[string]string{
		"term":    "morning news",
		"media":   "podcast",
		"entity":  "podcast",
		"limit":   "10",
		"country": "US",
	} {
		if got := rs.query.Get(key); got != want {
			t.Errorf("query %s = %q, want %q", key, got, want)
		}
	}
}

func TestSearch_EpisodeLookupParams(t *testing.T) {
	t.Parallel()

	rs := newRecordingServer(t, `{"resultCount": 0, "results": []}`)

	_, err := rs.client(t).Search(context.Background(), itunes.SearchParams{
		Term:         "ignored for lookups",
		Media:        itunes.MediaPodcast,
		Entity:       itunes.EntityPodcastEpisode,
		Limit:        25,
		Country:      "SE",
		CollectionID: 123456789,
	})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	if rs.path != "/lookup" {
		t.Errorf("request went to %s, want /lookup", rs.path)
	}
	if got := rs.query.Get("id"); got != "123456789" {
		t.Errorf("query id = %q", got)
	}
	if got := rs.query.Get("entity"); got != "podcastEpisode" {
		t.Errorf("query entity = %q", got)
	}
	if got := rs.query.Get("limit"); got != "25" {
		t.Errorf("query limit = %q", got)
	}
	if rs.query.Has("term") {
		t.Error("lookup request should not carry a term")
	}
}

func TestSearch_EpisodeTermSearchStaysOnSearchEndpoint(t *testing.T) {
	t.Parallel()

	rs := newRecordingServer(t, `{"resultCount": 0, "results": []}`)

	// Episode entity without a collection ID is a plain term search.
	_, err := rs.client(t).Search(context.Background(), itunes.SearchParams{
		Term:   "interview",
		Media:  itunes.MediaPodcast,
		Entity: itunes.EntityPodcastEpisode,
	})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if rs.path != "/search" {
		t.Errorf("request went to %s, want /search", rs.path)
	}
}

func TestSearch_DecodesPayload(t *testing.T) {
	t.Parallel()

	rs := newRecordingServer(t, `{
		"resultCount": 1,
		"results": [{"kind": "podcast", "collectionId": 42, "collectionName": "The Show"}]
	}`)

	got, err := rs.client(t).Search(context.Background(), itunes.SearchParams{Term: "show"})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if got.ResultCount != 1 || len(got.Results) != 1 {
		t.Fatalf("got %d/%d results", got.ResultCount, len(got.Results))
	}
	if got.Results[0]["collectionName"] != "The Show" {
		t.Errorf("unexpected first result: %v", got.Results[0])
	}
}

func TestSearch_NonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	c := itunes.NewClient(
		itunes.WithHTTPClient(srv.Client()),
		itunes.WithBaseURLs(srv.URL+"/search", srv.URL+"/lookup"))

	if _, err := c.Search(context.Background(), itunes.SearchParams{Term: "x"}); err == nil {
		t.Fatal("expected an error for a non-200 response")
	}
}

// ---------------------------------------------------------------------------
// FormatResults - shaping heterogeneous API items
// ---------------------------------------------------------------------------

func TestFormatResults(t *testing.T) {
	t.Parallel()

	podcastItem := map[string]any{
		"kind":             "podcast",
		"collectionId":     float64(42),
		"collectionName":   "The Daily Grind",
		"artistName":       "Grind Media",
		"feedUrl":          "https://feeds.example.com/grind.xml",
		"artworkUrl600":    "https://img.example.com/600.jpg",
		"artworkUrl100":    "https://img.example.com/100.jpg",
		"primaryGenreName": "News",
		"releaseDate":      "2025-02-27T05:00:00Z",
		"trackCount":       float64(120),
		"country":          "USA",
	}

	episodeByKind := map[string]any{
		"kind":            "podcast-episode",
		"trackId":         float64(9001),
		"trackName":       "Episode 1",
		"description":     "First one.",
		"collectionId":    float64(42),
		"collectionName":  "The Daily Grind",
		"episodeUrl":      "https://cdn.example.com/ep1.mp3",
		"artworkUrl600":   "https://img.example.com/ep600.jpg",
		"releaseDate":     "2025-02-27T05:00:00Z",
		"trackTimeMillis": float64(1800000),
		"episodeNumber":   float64(1),
		"seasonNumber":    float64(2),
	}

	episodeByKeys := map[string]any{
		"trackId":      float64(9002),
		"trackName":    "Episode 2",
		"collectionId": float64(42),
		"episodeUrl":   "https://cdn.example.com/ep2.mp3",
	}

	tests := []struct {
		name string
		raw  itunes.SearchResult
		want []itunes.Result
	}{
		{
			name: "podcast item",
			raw:  itunes.SearchResult{ResultCount: 1, Results: []map[string]any{podcastItem}},
			want: []itunes.Result{{
				ID:           42,
				Type:         "podcast",
				Title:        "The Daily Grind",
				ArtworkURL:   "https://img.example.com/600.jpg",
				ReleaseDate:  "2025-02-27T05:00:00Z",
				Artist:       "Grind Media",
				FeedURL:      "https://feeds.example.com/grind.xml",
				Genre:        "News",
				EpisodeCount: 120,
				Country:      "USA",
			}},
		},
		{
			name: "episode recognized by kind",
			raw:  itunes.SearchResult{ResultCount: 1, Results: []map[string]any{episodeByKind}},
			want: []itunes.Result{{
				ID:             9001,
				Type:           "episode",
				Title:          "Episode 1",
				Description:    "First one.",
				ArtworkURL:     "https://img.example.com/ep600.jpg",
				ReleaseDate:    "2025-02-27T05:00:00Z",
				PodcastID:      42,
				PodcastTitle:   "The Daily Grind",
				AudioURL:       "https://cdn.example.com/ep1.mp3",
				DurationMillis: 1800000,
				EpisodeNumber:  1,
				Season:         2,
			}},
		},
		{
			name: "episode recognized by keys without kind",
			raw:  itunes.SearchResult{ResultCount: 1, Results: []map[string]any{episodeByKeys}},
			want: []itunes.Result{{
				ID:        9002,
				Type:      "episode",
				Title:     "Episode 2",
				PodcastID: 42,
				AudioURL:  "https://cdn.example.com/ep2.mp3",
			}},
		},
		{
			name: "lookup header row is skipped",
			raw: itunes.SearchResult{ResultCount: 2, Results: []map[string]any{
				// Header: the podcast itself, no "kind" key.
				{"collectionId": float64(42), "collectionName": "The Daily Grind", "wrapperType": "track"},
				episodeByKind,
			}},
			want: []itunes.Result{{
				ID:             9001,
				Type:           "episode",
				Title:          "Episode 1",
				Description:    "First one.",
				ArtworkURL:     "https://img.example.com/ep600.jpg",
				ReleaseDate:    "2025-02-27T05:00:00Z",
				PodcastID:      42,
				PodcastTitle:   "The Daily Grind",
				AudioURL:       "https://cdn.example.com/ep1.mp3",
				DurationMillis: 1800000,
				EpisodeNumber:  1,
				Season:         2,
			}},
		},
		{
			name: "unclassifiable item becomes unknown",
			raw: itunes.SearchResult{ResultCount: 1, Results: []map[string]any{
				{"kind": "music-video", "trackId": float64(7), "trackName": "Oddball"},
			}},
			want: []itunes.Result{{
				ID:    7,
				Type:  "unknown",
				Title: "Oddball",
			}},
		},
		{
			name: "empty results",
			raw:  itunes.SearchResult{},
			want: []itunes.Result{},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := itunes.FormatResults(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FormatResults() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
