// Package audio splits large audio files into chunks small enough for
// the transcription provider's upload limit.
//
// Two strategies exist. FFmpegSplitter is the primary: it probes the
// source duration and extracts fixed-duration segments, re-encoded to a
// constrained bitrate. ByteSplitter is the fallback for hosts without
// FFmpeg: it slices the raw bytes into size-bounded pieces. Byte
// boundaries do not align with audio frames; that tradeoff is accepted
// because the goal is staying under the size limit, not clean splits.
package audio

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"
)

// Chunk is one segment of a split audio file.
// Index is zero-based and equals the segment's temporal position in the
// source: concatenating chunk transcripts in Index order reconstructs
// the full transcript order.
type Chunk struct {
	Path  string
	Index int
}

// Splitter splits an audio file into ordered chunks inside outputDir.
// The returned slice is non-empty, ordered by Index, and every listed
// path exists with non-zero size. The caller owns outputDir cleanup.
type Splitter interface {
	Split(ctx context.Context, inputPath, outputDir string) ([]Chunk, error)
}

// Compile-time interface implementation checks.
var (
	_ Splitter = (*FFmpegSplitter)(nil)
	_ Splitter = (*ByteSplitter)(nil)
)

// chunkSizeMargin keeps byte-sliced chunks safely under the size limit.
const chunkSizeMargin = 0.95

// chunkFileName returns the deterministic output name for a chunk index.
func chunkFileName(i int) string {
	return fmt.Sprintf("chunk_%03d.mp3", i)
}

// WarnFunc is a callback for warning messages during splitting.
type WarnFunc func(msg string)

// discardWarnings is the fallback when no WarnFunc is configured.
func discardWarnings(string) {}

// FFmpegSplitter extracts fixed-duration segments with FFmpeg,
// re-encoding to 128k mono MP3 to keep each chunk under the size limit.
type FFmpegSplitter struct {
	ffmpegPath  string
	targetChunk time.Duration
	maxChunkMB  int
	warn        WarnFunc

	// Injectable dependencies (defaults to OS implementations).
	cmd     commandRunner
	statter fileStatter
}

// FFmpegSplitterOption configures an FFmpegSplitter.
type FFmpegSplitterOption func(*FFmpegSplitter)

// WithCommandRunner sets the command runner (for testing).
func WithCommandRunner(r commandRunner) FFmpegSplitterOption {
	return func(s *FFmpegSplitter) {
		s.cmd = r
	}
}

// WithFileStatter sets the file statter (for testing).
func WithFileStatter(st fileStatter) FFmpegSplitterOption {
	return func(s *FFmpegSplitter) {
		s.statter = st
	}
}

// WithWarnFunc sets a callback for warning messages. Nil suppresses them.
func WithWarnFunc(fn WarnFunc) FFmpegSplitterOption {
	return func(s *FFmpegSplitter) {
		if fn == nil {
			fn = discardWarnings
		}
		s.warn = fn
	}
}

// NewFFmpegSplitter creates an FFmpegSplitter.
// targetChunk is the duration of each extracted segment; maxChunkMB is
// the per-chunk size bound used for duration estimation when probing fails.
func NewFFmpegSplitter(ffmpegPath string, targetChunk time.Duration, maxChunkMB int, opts ...FFmpegSplitterOption) (*FFmpegSplitter, error) {
	if ffmpegPath == "" {
		return nil, fmt.Errorf("ffmpegPath cannot be empty")
	}
	if targetChunk <= 0 {
		return nil, fmt.Errorf("targetChunk must be positive, got %v", targetChunk)
	}
	if maxChunkMB <= 0 {
		return nil, fmt.Errorf("maxChunkMB must be positive, got %d", maxChunkMB)
	}

	s := &FFmpegSplitter{
		ffmpegPath:  ffmpegPath,
		targetChunk: targetChunk,
		maxChunkMB:  maxChunkMB,
		warn:        discardWarnings,
		cmd:         osCommandRunner{},
		statter:     osFileStatter{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Split extracts fixed-duration segments of inputPath into outputDir.
// A non-final segment that fails to encode, or encodes to an empty file,
// aborts the whole split. An empty final segment is dropped with a
// warning: the source may simply end before the last boundary.
func (s *FFmpegSplitter) Split(ctx context.Context, inputPath, outputDir string) ([]Chunk, error) {
	size, err := statInput(s.statter, inputPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outputDir, 0750); err != nil {
		return nil, fmt.Errorf("cannot create output directory: %w", err)
	}

	duration, err := s.probeDuration(ctx, inputPath)
	if err != nil {
		duration = estimateDuration(size, s.maxChunkMB, s.targetChunk)
		s.warn(fmt.Sprintf("duration probe failed (%v), estimated %v from file size", err, duration))
	}

	numChunks := int(math.Ceil(duration.Seconds() / s.targetChunk.Seconds()))
	if numChunks < 1 {
		numChunks = 1
	}

	var chunks []Chunk
	for i := 0; i < numChunks; i++ {
		chunkPath := filepath.Join(outputDir, chunkFileName(i))
		final := i == numChunks-1

		if err := s.extractSegment(ctx, inputPath, chunkPath, i); err != nil {
			if !final {
				return nil, fmt.Errorf("%w: chunk %d of %d: %v", ErrSplitFailed, i+1, numChunks, err)
			}
			// Past the end of the source, most likely.
			s.warn(fmt.Sprintf("final chunk %d failed to encode, dropping: %v", i, err))
			continue
		}

		info, err := s.statter.Stat(chunkPath)
		if err != nil || info.Size() == 0 {
			if !final {
				return nil, fmt.Errorf("%w: chunk %d of %d is empty or missing", ErrSplitFailed, i+1, numChunks)
			}
			s.warn(fmt.Sprintf("final chunk %d is empty, dropping", i))
			continue
		}

		chunks = append(chunks, Chunk{Path: chunkPath, Index: i})
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks produced", ErrSplitFailed)
	}
	return chunks, nil
}

// extractSegment encodes segment i of inputPath to chunkPath.
// Re-encodes to 128k mono MP3 so the output stays size-bounded even
// when the source uses a high bitrate.
func (s *FFmpegSplitter) extractSegment(ctx context.Context, inputPath, chunkPath string, i int) error {
	start := time.Duration(i) * s.targetChunk
	args := []string{
		"-y",
		"-i", inputPath,
		"-ss", strconv.FormatFloat(start.Seconds(), 'f', -1, 64),
		"-t", strconv.FormatFloat(s.targetChunk.Seconds(), 'f', -1, 64),
		"-c:a", "libmp3lame",
		"-b:a", "128k",
		"-ac", "1",
		chunkPath,
	}

	output, err := s.cmd.CombinedOutput(ctx, s.ffmpegPath, args)
	if err != nil {
		return fmt.Errorf("ffmpeg extract failed: %v\nOutput: %s", err, string(output))
	}
	return nil
}

// probeDuration returns the duration of an audio file by parsing FFmpeg
// output (ffprobe may not be installed alongside ffmpeg).
func (s *FFmpegSplitter) probeDuration(ctx context.Context, inputPath string) (time.Duration, error) {
	args := []string{
		"-i", inputPath,
		"-f", "null", "-",
	}
	output, err := s.cmd.CombinedOutput(ctx, s.ffmpegPath, args)
	if err != nil && len(output) == 0 {
		// FFmpeg returns non-zero even when it reads file info,
		// so parse the output whenever there is any.
		return 0, err
	}

	return parseDurationFromFFmpegOutput(string(output))
}

// estimateDuration approximates a source duration from its size when
// probing fails, assuming each maxChunkMB of data spans one target
// chunk. The estimate errs high so no audio is left unsplit.
func estimateDuration(size int64, maxChunkMB int, targetChunk time.Duration) time.Duration {
	sizeMB := float64(size) / (1024 * 1024)
	numChunks := int(sizeMB/float64(maxChunkMB)) + 1
	return time.Duration(numChunks) * targetChunk
}

// parseDurationFromFFmpegOutput extracts duration from FFmpeg stderr.
// Looks for: "Duration: HH:MM:SS.ms" or "time=HH:MM:SS.ms".
func parseDurationFromFFmpegOutput(output string) (time.Duration, error) {
	durationRe := regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+)\.(\d+)`)
	if matches := durationRe.FindStringSubmatch(output); matches != nil {
		return parseTimeComponents(matches[1], matches[2], matches[3], matches[4])
	}

	// Fallback pattern: time=00:05:23.45 (from progress output).
	timeRe := regexp.MustCompile(`time=(\d+):(\d+):(\d+)\.(\d+)`)
	allMatches := timeRe.FindAllStringSubmatch(output, -1)
	if len(allMatches) > 0 {
		matches := allMatches[len(allMatches)-1]
		return parseTimeComponents(matches[1], matches[2], matches[3], matches[4])
	}

	return 0, fmt.Errorf("could not parse duration from ffmpeg output")
}

// parseTimeComponents converts HH:MM:SS.ms strings to Duration.
func parseTimeComponents(hours, minutes, seconds, fractional string) (time.Duration, error) {
	h, _ := strconv.Atoi(hours)
	m, _ := strconv.Atoi(minutes)
	sec, _ := strconv.Atoi(seconds)

	// Normalize fractional part to milliseconds.
	// Input may be 1-6+ digits (e.g., ".4", ".45", ".456", ".456789").
	frac, _ := strconv.Atoi(fractional)
	ms := frac
	switch n := len(fractional); {
	case n == 1:
		ms = frac * 100
	case n == 2:
		ms = frac * 10
	case n == 3:
		// Already milliseconds.
	case n > 3:
		for i := n; i > 3; i-- {
			ms /= 10
		}
	}

	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(sec)*time.Second +
		time.Duration(ms)*time.Millisecond, nil
}

// ByteSplitter slices the raw bytes of the input into size-bounded
// files. Used when FFmpeg is entirely unavailable.
type ByteSplitter struct {
	maxChunkMB int
	warn       WarnFunc

	statter fileStatter
}

// ByteSplitterOption configures a ByteSplitter.
type ByteSplitterOption func(*ByteSplitter)

// WithByteSplitterStatter sets the file statter (for testing).
func WithByteSplitterStatter(st fileStatter) ByteSplitterOption {
	return func(s *ByteSplitter) {
		s.statter = st
	}
}

// WithByteSplitterWarnFunc sets a callback for warning messages.
func WithByteSplitterWarnFunc(fn WarnFunc) ByteSplitterOption {
	return func(s *ByteSplitter) {
		if fn == nil {
			fn = discardWarnings
		}
		s.warn = fn
	}
}

// NewByteSplitter creates a ByteSplitter with the given per-chunk size bound.
func NewByteSplitter(maxChunkMB int, opts ...ByteSplitterOption) (*ByteSplitter, error) {
	if maxChunkMB <= 0 {
		return nil, fmt.Errorf("maxChunkMB must be positive, got %d", maxChunkMB)
	}

	s := &ByteSplitter{
		maxChunkMB: maxChunkMB,
		warn:       discardWarnings,
		statter:    osFileStatter{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// ChunkBytes returns the per-chunk byte bound: 95% of the configured
// megabyte limit, leaving margin for provider-side accounting.
func (s *ByteSplitter) ChunkBytes() int64 {
	return int64(float64(s.maxChunkMB) * chunkSizeMargin * 1024 * 1024)
}

// Split slices inputPath sequentially into ceil(size/ChunkBytes) files.
// Every chunk except possibly the last is exactly ChunkBytes long.
func (s *ByteSplitter) Split(ctx context.Context, inputPath, outputDir string) ([]Chunk, error) {
	size, err := statInput(s.statter, inputPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outputDir, 0750); err != nil {
		return nil, fmt.Errorf("cannot create output directory: %w", err)
	}

	chunkBytes := s.ChunkBytes()
	numChunks := int((size + chunkBytes - 1) / chunkBytes)
	s.warn(fmt.Sprintf("ffmpeg unavailable, byte-slicing %.2f MB into %d chunks",
		float64(size)/(1024*1024), numChunks))

	in, err := os.Open(inputPath) // #nosec G304 -- path comes from the orchestrator's temp file
	if err != nil {
		return nil, fmt.Errorf("cannot open input file: %w", err)
	}
	defer func() { _ = in.Close() }()

	chunks := make([]Chunk, 0, numChunks)
	for i := 0; i < numChunks; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		chunkPath := filepath.Join(outputDir, chunkFileName(i))
		if err := writeSlice(in, chunkPath, chunkBytes); err != nil {
			return nil, fmt.Errorf("%w: chunk %d of %d: %v", ErrSplitFailed, i+1, numChunks, err)
		}
		chunks = append(chunks, Chunk{Path: chunkPath, Index: i})
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks produced", ErrSplitFailed)
	}
	return chunks, nil
}

// writeSlice copies up to n bytes from r into a new file at path.
func writeSlice(r io.Reader, path string, n int64) error {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600) // #nosec G304 -- path is inside our temp workspace
	if err != nil {
		return err
	}

	_, copyErr := io.CopyN(out, r, n)
	closeErr := out.Close()
	if copyErr != nil && copyErr != io.EOF {
		return copyErr
	}
	return closeErr
}

// statInput validates the split preconditions: the input exists and is
// non-empty.
func statInput(st fileStatter, inputPath string) (int64, error) {
	info, err := st.Stat(inputPath)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrFileNotFound, err)
	}
	if info.Size() == 0 {
		return 0, fmt.Errorf("%w: %s", ErrEmptyInput, inputPath)
	}
	return info.Size(), nil
}
