// Package server exposes the HTTP API: podcast search, episode
// transcription, and transcript summarization.
package server

import (
	"context"
	"log"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/Eriw/podcast-transcriber/internal/itunes"
	"github.com/Eriw/podcast-transcriber/internal/pipeline"
	"github.com/Eriw/podcast-transcriber/internal/summarize"
)

// Query parameter bounds, matching the iTunes API's accepted ranges.
const (
	defaultLimit   = 10
	maxLimit       = 200
	defaultCountry = "US"
)

// TranscriptionService runs the download-split-transcribe pipeline.
// *pipeline.Orchestrator implements it.
type TranscriptionService interface {
	TranscribeURL(ctx context.Context, audioURL string) (string, error)
}

// PodcastSearcher queries the podcast directory. *itunes.Client implements it.
type PodcastSearcher interface {
	Search(ctx context.Context, p itunes.SearchParams) (itunes.SearchResult, error)
}

// Compile-time interface verification.
var (
	_ TranscriptionService = (*pipeline.Orchestrator)(nil)
	_ PodcastSearcher      = (*itunes.Client)(nil)
)

// Config wires the server's collaborators.
type Config struct {
	Transcription TranscriptionService
	Search        PodcastSearcher
	Summarizer    summarize.Summarizer

	// APIKeyConfigured gates the endpoints that call OpenAI. When false
	// they fail fast with a configuration error instead of a provider
	// auth error mid-pipeline.
	APIKeyConfigured bool

	// Logf receives server-side error detail. Nil discards log output.
	Logf func(format string, args ...any)
}

// Server is the HTTP API.
type Server struct {
	app           *fiber.App
	transcription TranscriptionService
	search        PodcastSearcher
	summarizer    summarize.Summarizer
	apiKeySet     bool
	logf          func(format string, args ...any)
}

// New creates a Server and registers its routes.
func New(cfg Config) *Server {
	logf := cfg.Logf
	if logf == nil {
		logf = log.Printf
	}

	s := &Server{
		app:           fiber.New(fiber.Config{DisableStartupMessage: true}),
		transcription: cfg.Transcription,
		search:        cfg.Search,
		summarizer:    cfg.Summarizer,
		apiKeySet:     cfg.APIKeyConfigured,
		logf:          logf,
	}

	// Allow all origins: the frontend is served separately in development.
	s.app.Use(cors.New())

	api := s.app.Group("/api")
	api.Get("/search", s.handleSearch)
	api.Get("/itunes/podcasts", s.handleITunesPodcasts)
	api.Get("/itunes/episodes", s.handleITunesEpisodes)
	api.Post("/transcribe", s.handleTranscribe)
	api.Post("/summarize", s.handleSummarize)

	return s
}

// Listen serves the API on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for in-process testing via app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// errorBody is the JSON shape of every error response.
func errorBody(msg string) fiber.Map {
	return fiber.Map{"error": msg}
}

// --- /api/search -----------------------------------------------------------

// episodeSummary is one entry of the static search results.
type episodeSummary struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	AudioURL    string `json:"audio_url"`
}

// dummyEpisodes backs the legacy /api/search endpoint until a real
// episode index replaces it. The iTunes endpoints are the live path.
var dummyEpisodes = []episodeSummary{
	{
		Title:       "Episode 1: Summary from Feb 27, 2025",
		Description: "A podcast episode summary from February 27",
		AudioURL:    "http://wirebrand.se/podcast/2025-02-27_summary.mp3",
	},
	{
		Title:       "Episode 2: Summary from Feb 26, 2025",
		Description: "A podcast episode summary from February 26",
		AudioURL:    "http://wirebrand.se/podcast/2025-02-26_summary.mp3",
	},
}

// handleSearch filters the static episode list by query, case-insensitive.
func (s *Server) handleSearch(c *fiber.Ctx) error {
	query := strings.ToLower(c.Query("query"))

	results := make([]episodeSummary, 0, len(dummyEpisodes))
	for _, ep := range dummyEpisodes {
		if strings.Contains(strings.ToLower(ep.Title), query) ||
			strings.Contains(strings.ToLower(ep.Description), query) {
			results = append(results, ep)
		}
	}
	return c.JSON(results)
}

// --- /api/itunes/* ---------------------------------------------------------

// searchQuery validates the parameters shared by both iTunes endpoints.
// The query requirement differs per endpoint, so the handlers enforce it.
func searchQuery(c *fiber.Ctx) (query string, limit int, country string, ok bool) {
	query = c.Query("query")

	limit = defaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			_ = c.Status(fiber.StatusBadRequest).JSON(errorBody("limit must be an integer"))
			return "", 0, "", false
		}
		limit = n
	}
	if limit < 1 || limit > maxLimit {
		_ = c.Status(fiber.StatusBadRequest).JSON(errorBody("limit must be between 1 and 200"))
		return "", 0, "", false
	}

	country = c.Query("country", defaultCountry)
	if len(country) != 2 {
		_ = c.Status(fiber.StatusBadRequest).JSON(errorBody("country must be a two-letter code"))
		return "", 0, "", false
	}

	return query, limit, country, true
}

// handleITunesPodcasts searches the podcast directory.
func (s *Server) handleITunesPodcasts(c *fiber.Ctx) error {
	query, limit, country, ok := searchQuery(c)
	if !ok {
		return nil
	}
	if strings.TrimSpace(query) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody("query is required"))
	}

	raw, err := s.search.Search(c.UserContext(), itunes.SearchParams{
		Term:    query,
		Media:   itunes.MediaPodcast,
		Entity:  itunes.EntityPodcast,
		Limit:   limit,
		Country: country,
	})
	if err != nil {
		s.logf("itunes podcast search failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorBody(err.Error()))
	}

	return c.JSON(itunes.FormatResults(raw))
}

// handleITunesEpisodes searches episodes, optionally within one podcast.
func (s *Server) handleITunesEpisodes(c *fiber.Ctx) error {
	query, limit, country, ok := searchQuery(c)
	if !ok {
		return nil
	}

	podcastID := int64(c.QueryInt("podcast_id", 0))
	if strings.TrimSpace(query) == "" {
		if podcastID == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(errorBody("query is required"))
		}
		// Browsing a podcast without a term: wildcard matches all episodes.
		query = "*"
	}

	raw, err := s.search.Search(c.UserContext(), itunes.SearchParams{
		Term:         query,
		Media:        itunes.MediaPodcast,
		Entity:       itunes.EntityPodcastEpisode,
		Limit:        limit,
		Country:      country,
		CollectionID: podcastID,
	})
	if err != nil {
		s.logf("itunes episode search failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorBody(err.Error()))
	}

	return c.JSON(itunes.FormatResults(raw))
}

// --- /api/transcribe -------------------------------------------------------

type transcribeRequest struct {
	AudioURL string `json:"audio_url"`
}

type transcribeResponse struct {
	Transcript string `json:"transcript"`
}

// handleTranscribe runs the full pipeline for one audio URL.
// Failures carry a classified, human-readable message; the original
// error text stays in server logs.
func (s *Server) handleTranscribe(c *fiber.Ctx) error {
	if !s.apiKeySet {
		return c.Status(fiber.StatusInternalServerError).JSON(errorBody("OpenAI API key not configured"))
	}

	var req transcribeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody("invalid JSON body"))
	}
	if req.AudioURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody("audio_url is required"))
	}

	transcript, err := s.transcription.TranscribeURL(c.UserContext(), req.AudioURL)
	if err != nil {
		s.logf("transcription of %s failed: %v", req.AudioURL, err)
		status, msg := pipeline.Classify(err)
		return c.Status(status).JSON(errorBody(msg))
	}

	return c.JSON(transcribeResponse{Transcript: transcript})
}

// --- /api/summarize --------------------------------------------------------

type summarizeRequest struct {
	Transcript string `json:"transcript"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

// handleSummarize produces a summary for a transcript.
func (s *Server) handleSummarize(c *fiber.Ctx) error {
	if !s.apiKeySet {
		return c.Status(fiber.StatusInternalServerError).JSON(errorBody("OpenAI API key not configured"))
	}

	var req summarizeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody("invalid JSON body"))
	}
	if strings.TrimSpace(req.Transcript) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody("transcript is required"))
	}

	summary, err := s.summarizer.Summarize(c.UserContext(), req.Transcript)
	if err != nil {
		s.logf("summarization failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorBody("Summarization failed: " + err.Error()))
	}

	return c.JSON(summarizeResponse{Summary: summary})
}
