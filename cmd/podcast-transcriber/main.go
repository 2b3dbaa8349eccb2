// Command podcast-transcriber runs the podcast backend: search the
// iTunes directory, transcribe episode audio, summarize transcripts.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Eriw/podcast-transcriber/internal/config"
	"github.com/Eriw/podcast-transcriber/internal/ffmpeg"
	"github.com/Eriw/podcast-transcriber/internal/itunes"
	"github.com/Eriw/podcast-transcriber/internal/pipeline"
	"github.com/Eriw/podcast-transcriber/internal/server"
	"github.com/Eriw/podcast-transcriber/internal/summarize"
	"github.com/Eriw/podcast-transcriber/internal/transcribe"
)

// Injected at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	// Load .env file if present (ignore error if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	// Context with signal cancellation.
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rootCmd := &cobra.Command{
		Use:     "podcast-transcriber",
		Short:   "Search podcasts, transcribe episodes, and summarize transcripts",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		// Silence Cobra's default error/usage printing; we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(transcribeCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newOrchestrator wires the transcription pipeline for one API key.
func newOrchestrator(cfg config.Config) *pipeline.Orchestrator {
	client := openai.NewClient(cfg.OpenAIAPIKey)
	transcriber := transcribe.NewOpenAITranscriber(client, cfg.OpenAIAPIKey)
	return pipeline.NewOrchestrator(transcriber)
}

// serveCmd creates the serve command: run the HTTP API.
func serveCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load(os.Getenv)
			if port != "" {
				cfg.Port = port
			}
			if cfg.OpenAIAPIKey == "" {
				log.Printf("warning: %s not set; transcription and summarization endpoints are disabled", config.EnvOpenAIAPIKey)
			}

			// Log FFmpeg availability up front; a missing binary is not
			// fatal, splitting degrades to byte slicing per request.
			resolver := ffmpeg.NewResolver()
			if ffmpegPath, err := resolver.Resolve(); err != nil {
				log.Printf("warning: %v; large files will be byte-sliced", err)
			} else {
				resolver.CheckVersion(cmd.Context(), ffmpegPath)
			}

			srv := server.New(server.Config{
				Transcription:    newOrchestrator(cfg),
				Search:           itunes.NewClient(),
				Summarizer:       summarize.NewOpenAISummarizer(openai.NewClient(cfg.OpenAIAPIKey)),
				APIKeyConfigured: cfg.OpenAIAPIKey != "",
			})

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				log.Printf("listening on %s", cfg.Addr())
				return srv.Listen(cfg.Addr())
			})
			g.Go(func() error {
				<-ctx.Done()
				return srv.Shutdown()
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Listen port (default: $PORT or 8000)")
	return cmd
}

// transcribeCmd creates the transcribe command: one-shot URL to transcript.
func transcribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <audio-url>",
		Short: "Transcribe one episode URL and print the transcript",
		Example: `  podcast-transcriber transcribe https://example.com/episode.mp3
  podcast-transcriber transcribe https://example.com/episode.mp3 > transcript.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load(os.Getenv)
			if cfg.OpenAIAPIKey == "" {
				return fmt.Errorf("%w (set it with: export %s=sk-...)",
					transcribe.ErrAPIKeyMissing, config.EnvOpenAIAPIKey)
			}

			transcript, err := newOrchestrator(cfg).TranscribeURL(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Println(transcript)
			return nil
		},
	}
}
