// Package transcribe converts audio chunks to text via the OpenAI
// transcription API.
//
// Two call paths are tried in order: the structured go-openai client,
// then a raw multipart HTTP request to the transcription endpoint. The
// ordered probe keeps transcription working when the structured path
// fails for reasons unrelated to the audio itself (library gaps,
// transport quirks). Only when both paths fail does the caller see an
// error.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Eriw/podcast-transcriber/internal/apierr"
)

const (
	// ModelWhisper1 is the transcription model used for both call paths.
	ModelWhisper1 = "whisper-1"

	// openAITranscriptionURL is the endpoint for the raw HTTP fallback.
	openAITranscriptionURL = "https://api.openai.com/v1/audio/transcriptions"

	// defaultHTTPTimeout bounds one fallback transcription request.
	defaultHTTPTimeout = 5 * time.Minute
)

// Transcriber transcribes one audio file to text.
type Transcriber interface {
	// Transcribe converts the audio file at audioPath to text.
	// It does not delete the file; chunk cleanup belongs to the caller.
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// audioTranscriber is the structured call path. *openai.Client
// implements this implicitly, which allows injecting mocks in tests.
type audioTranscriber interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

// httpDoer abstracts the HTTP client for testing.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Compile-time interface compliance checks.
var (
	_ Transcriber      = (*OpenAITranscriber)(nil)
	_ audioTranscriber = (*openai.Client)(nil)
)

// OpenAITranscriber transcribes audio using OpenAI, falling back from
// the structured client to a raw multipart request on any failure.
type OpenAITranscriber struct {
	client     audioTranscriber
	httpClient httpDoer
	apiKey     string
	baseURL    string
	logf       func(format string, args ...any)
}

// TranscriberOption configures an OpenAITranscriber.
type TranscriberOption func(*OpenAITranscriber)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(c httpDoer) TranscriberOption {
	return func(t *OpenAITranscriber) {
		t.httpClient = c
	}
}

// WithTranscriptionURL overrides the fallback endpoint (for testing).
func WithTranscriptionURL(url string) TranscriberOption {
	return func(t *OpenAITranscriber) {
		t.baseURL = url
	}
}

// WithLogger sets the log function. Nil discards log output.
func WithLogger(logf func(format string, args ...any)) TranscriberOption {
	return func(t *OpenAITranscriber) {
		if logf == nil {
			logf = func(string, ...any) {}
		}
		t.logf = logf
	}
}

// NewOpenAITranscriber creates an OpenAITranscriber.
// client drives the structured path; a nil client skips it and every
// call goes straight to the raw HTTP fallback. apiKey authenticates the
// fallback.
func NewOpenAITranscriber(client *openai.Client, apiKey string, opts ...TranscriberOption) *OpenAITranscriber {
	t := &OpenAITranscriber{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		apiKey:     apiKey,
		baseURL:    openAITranscriptionURL,
		logf:       log.Printf,
	}
	// A typed nil assigned to the interface would defeat the nil guard
	// in Transcribe, so only store a usable client.
	if client != nil {
		t.client = client
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transcribe converts one audio file to text.
// The structured client is tried first; any failure there is logged and
// the raw multipart fallback takes over. A fallback failure is final.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if t.client != nil {
		text, err := t.transcribeClient(ctx, audioPath)
		if err == nil {
			return text, nil
		}
		t.logf("structured transcription call failed (%v), falling back to raw HTTP", err)
	}

	return t.transcribeHTTP(ctx, audioPath)
}

// transcribeClient is the primary path: the go-openai structured call.
func (t *OpenAITranscriber) transcribeClient(ctx context.Context, audioPath string) (string, error) {
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    ModelWhisper1,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// transcribeHTTP is the secondary path: the chunk is read into memory
// and posted as a multipart form directly to the transcription endpoint.
func (t *OpenAITranscriber) transcribeHTTP(ctx context.Context, audioPath string) (string, error) {
	file, err := os.Open(audioPath) // #nosec G304 -- audioPath comes from internal chunking
	if err != nil {
		return "", fmt.Errorf("failed to open audio file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("failed to copy file to form: %w", err)
	}
	if err := writer.WriteField("model", ModelWhisper1); err != nil {
		return "", fmt.Errorf("failed to write model field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		// Surface the provider's status and body for diagnostics, and
		// classify the status into a shared sentinel.
		classified := apierr.FromStatus(resp.StatusCode, string(respBody))
		return "", fmt.Errorf("%w: status %d: %w", ErrTranscriptionFailed, resp.StatusCode, classified)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	return result.Text, nil
}
