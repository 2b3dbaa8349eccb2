// Package pipeline orchestrates one transcription request: download the
// remote audio, decide single-shot vs. chunked processing by size, drive
// the splitter and transcriber, and join the per-chunk transcripts.
//
// The request is an explicit state machine:
//
//	Downloading -> SizeCheck -> {DirectTranscribe | Chunking ->
//	PerChunkTranscribe -> } Join -> Done
//
// with an error from any step routing through a single teardown that
// removes the downloaded file and the chunk workspace. Teardown never
// fails a request: deletion errors are logged and swallowed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Eriw/podcast-transcriber/internal/audio"
	"github.com/Eriw/podcast-transcriber/internal/ffmpeg"
	"github.com/Eriw/podcast-transcriber/internal/transcribe"
)

// Fixed processing policy, matching the transcription provider's 25MB
// upload limit.
const (
	// SizeThreshold is the file size above which chunked processing kicks in.
	SizeThreshold = 25 * 1024 * 1024

	// TargetChunkDuration is the length of each extracted chunk.
	TargetChunkDuration = 300 * time.Second

	// MaxChunkMB is the per-chunk size bound.
	MaxChunkMB = 20

	// downloadTimeout bounds the audio download request.
	downloadTimeout = 30 * time.Second
)

// state tags the orchestrator's position in one request.
type state int

const (
	stateDownloading state = iota
	stateSizeCheck
	stateDirectTranscribe
	stateChunking
	statePerChunkTranscribe
	stateJoin
	stateDone
)

// String returns the state name for logging.
func (s state) String() string {
	switch s {
	case stateDownloading:
		return "downloading"
	case stateSizeCheck:
		return "size-check"
	case stateDirectTranscribe:
		return "direct-transcribe"
	case stateChunking:
		return "chunking"
	case statePerChunkTranscribe:
		return "per-chunk-transcribe"
	case stateJoin:
		return "join"
	case stateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// httpDoer abstracts the HTTP client for testing.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ffmpegResolver locates the FFmpeg binary. *ffmpeg.Resolver implements it.
type ffmpegResolver interface {
	Resolve() (string, error)
}

// SplitterFactory creates the two splitting strategies.
type SplitterFactory interface {
	// NewFFmpegSplitter creates the primary, duration-based splitter.
	NewFFmpegSplitter(ffmpegPath string) (audio.Splitter, error)

	// NewByteSplitter creates the byte-slicing fallback.
	NewByteSplitter() (audio.Splitter, error)
}

// defaultSplitterFactory builds splitters with the fixed policy above.
type defaultSplitterFactory struct{}

func (defaultSplitterFactory) NewFFmpegSplitter(ffmpegPath string) (audio.Splitter, error) {
	return audio.NewFFmpegSplitter(ffmpegPath, TargetChunkDuration, MaxChunkMB,
		audio.WithWarnFunc(func(msg string) { log.Printf("split: %s", msg) }))
}

func (defaultSplitterFactory) NewByteSplitter() (audio.Splitter, error) {
	return audio.NewByteSplitter(MaxChunkMB,
		audio.WithByteSplitterWarnFunc(func(msg string) { log.Printf("split: %s", msg) }))
}

// Compile-time interface verification.
var (
	_ SplitterFactory = defaultSplitterFactory{}
	_ ffmpegResolver  = (*ffmpeg.Resolver)(nil)
)

// Orchestrator processes transcription requests end to end.
// Concurrent requests are independent: each owns its own downloaded file
// and chunk workspace, so no locking is needed between them.
type Orchestrator struct {
	transcriber transcribe.Transcriber
	httpClient  httpDoer
	resolver    ffmpegResolver
	splitters   SplitterFactory
	tempDir     string // "" means the OS default temp directory
	logf        func(format string, args ...any)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithHTTPClient sets the download HTTP client (for testing).
func WithHTTPClient(c httpDoer) Option {
	return func(o *Orchestrator) {
		o.httpClient = c
	}
}

// WithFFmpegResolver sets the FFmpeg resolver (for testing).
func WithFFmpegResolver(r ffmpegResolver) Option {
	return func(o *Orchestrator) {
		o.resolver = r
	}
}

// WithSplitterFactory sets the splitter factory (for testing).
func WithSplitterFactory(f SplitterFactory) Option {
	return func(o *Orchestrator) {
		o.splitters = f
	}
}

// WithTempDir places downloaded files and workspaces under dir instead
// of the OS temp directory (for testing cleanup behavior).
func WithTempDir(dir string) Option {
	return func(o *Orchestrator) {
		o.tempDir = dir
	}
}

// WithLogger sets the log function. Nil discards log output.
func WithLogger(logf func(format string, args ...any)) Option {
	return func(o *Orchestrator) {
		if logf == nil {
			logf = func(string, ...any) {}
		}
		o.logf = logf
	}
}

// NewOrchestrator creates an Orchestrator around the given transcriber.
func NewOrchestrator(transcriber transcribe.Transcriber, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		transcriber: transcriber,
		httpClient:  &http.Client{Timeout: downloadTimeout},
		resolver:    ffmpeg.NewResolver(),
		splitters:   defaultSplitterFactory{},
		logf:        log.Printf,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// resources holds everything one request accumulates on disk and in
// memory. The orchestrator owns all of it; teardown releases the disk
// parts on every exit path.
type resources struct {
	audioPath  string
	size       int64
	chunks     []audio.Chunk
	workDir    string
	segments   []string
	transcript string
}

// TranscribeURL downloads the audio at audioURL and returns its full
// transcript. On failure no partial transcript is returned; the
// downloaded file and any chunk workspace are removed either way.
func (o *Orchestrator) TranscribeURL(ctx context.Context, audioURL string) (string, error) {
	res := &resources{}
	defer o.teardown(res)

	for st := stateDownloading; st != stateDone; {
		next, err := o.step(ctx, st, audioURL, res)
		if err != nil {
			return "", err
		}
		st = next
	}

	return res.transcript, nil
}

// step executes one state and returns the next.
func (o *Orchestrator) step(ctx context.Context, st state, audioURL string, res *resources) (state, error) {
	switch st {
	case stateDownloading:
		if err := o.download(ctx, audioURL, res); err != nil {
			return st, err
		}
		return stateSizeCheck, nil

	case stateSizeCheck:
		if res.size > SizeThreshold {
			o.logf("audio is %.2f MB, splitting into chunks", float64(res.size)/(1024*1024))
			return stateChunking, nil
		}
		return stateDirectTranscribe, nil

	case stateDirectTranscribe:
		text, err := o.transcriber.Transcribe(ctx, res.audioPath)
		if err != nil {
			return st, err
		}
		res.segments = []string{text}
		return stateJoin, nil

	case stateChunking:
		if err := o.split(ctx, res); err != nil {
			return st, err
		}
		o.logf("split audio into %d chunks", len(res.chunks))
		return statePerChunkTranscribe, nil

	case statePerChunkTranscribe:
		// Sequential and in chunk order: output ordering stays trivially
		// correct and at most one provider call is in flight per request.
		for _, chunk := range res.chunks {
			text, err := o.transcriber.Transcribe(ctx, chunk.Path)
			if err != nil {
				return st, fmt.Errorf("chunk %d (%s): %w", chunk.Index, filepath.Base(chunk.Path), err)
			}
			res.segments = append(res.segments, text)
		}
		return stateJoin, nil

	case stateJoin:
		res.transcript = strings.Join(res.segments, " ")
		return stateDone, nil

	default:
		return st, fmt.Errorf("unexpected pipeline state %v", st)
	}
}

// download streams the remote audio to a uniquely named temp file.
func (o *Orchestrator) download(ctx context.Context, audioURL string, res *resources) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownload, err)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownload, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: remote responded %s", ErrDownload, resp.Status)
	}

	f, err := os.CreateTemp(o.tempDir, "podcast_audio_*.mp3")
	if err != nil {
		return fmt.Errorf("cannot create temp audio file: %w", err)
	}
	// Record the path before copying so teardown removes partial files.
	res.audioPath = f.Name()

	n, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if copyErr != nil {
		return fmt.Errorf("failed to save audio file: %w", copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to save audio file: %w", closeErr)
	}
	if n == 0 {
		return ErrEmptyFile
	}

	res.size = n
	o.logf("downloaded %s (%.2f MB)", audioURL, float64(n)/(1024*1024))
	return nil
}

// split creates the chunk workspace and runs the selected strategy.
// The primary FFmpeg splitter is used when the binary resolves; a
// missing binary degrades to the byte-slicing fallback.
func (o *Orchestrator) split(ctx context.Context, res *resources) error {
	workDir, err := os.MkdirTemp(o.tempDir, "audio_chunks_")
	if err != nil {
		return fmt.Errorf("cannot create chunk workspace: %w", err)
	}
	res.workDir = workDir

	splitter, err := o.selectSplitter()
	if err != nil {
		return err
	}

	chunks, err := splitter.Split(ctx, res.audioPath, workDir)
	if err != nil {
		return err
	}
	res.chunks = chunks
	return nil
}

// selectSplitter picks the primary strategy when FFmpeg is available and
// the byte-slicing fallback otherwise.
func (o *Orchestrator) selectSplitter() (audio.Splitter, error) {
	ffmpegPath, err := o.resolver.Resolve()
	if err != nil {
		if errors.Is(err, ffmpeg.ErrNotFound) {
			o.logf("ffmpeg not available (%v), using byte-slicing fallback", err)
			return o.splitters.NewByteSplitter()
		}
		return nil, err
	}
	return o.splitters.NewFFmpegSplitter(ffmpegPath)
}

// teardown removes the downloaded audio file and the chunk workspace.
// It runs on every exit path and never fails the request: deletion
// errors are logged only. Individual chunk files are not removed one by
// one; the whole workspace goes at once.
func (o *Orchestrator) teardown(res *resources) {
	if res.audioPath != "" {
		if err := os.Remove(res.audioPath); err != nil && !os.IsNotExist(err) {
			o.logf("cleanup: failed to remove audio file %s: %v", res.audioPath, err)
		}
	}
	if res.workDir != "" {
		if err := os.RemoveAll(res.workDir); err != nil {
			o.logf("cleanup: failed to remove chunk workspace %s: %v", res.workDir, err)
		}
	}
}

// Classify maps a pipeline error to an HTTP status code and a
// human-readable message for the caller. Internal detail stays in
// server-side logs; the matching here mirrors the provider's wording
// for oversized uploads.
func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrDownload):
		return http.StatusBadRequest, fmt.Sprintf("Error accessing audio URL: %v", err)
	case errors.Is(err, ErrEmptyFile):
		return http.StatusBadRequest, "Downloaded audio file is empty"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "413"),
		strings.Contains(msg, "too large"),
		strings.Contains(msg, "size limit"),
		strings.Contains(msg, "exceeded"):
		return http.StatusBadRequest,
			"Audio file is too large for the transcription API. Please use a shorter audio clip (under 25MB)."
	case strings.Contains(msg, "ffmpeg"):
		return http.StatusInternalServerError,
			"There was an issue processing the audio file. The server will attempt to use a fallback method."
	default:
		return http.StatusInternalServerError, fmt.Sprintf("Error processing request: %v", err)
	}
}
