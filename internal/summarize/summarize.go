// Package summarize produces a summary with key timestamps from a
// podcast transcript, via one chat completion call.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Eriw/podcast-transcriber/internal/apierr"
)

// Completion parameters.
const (
	model       = openai.GPT4o
	temperature = 0.5
	maxTokens   = 1000

	systemPrompt = "You are a helpful assistant that summarizes podcast transcripts and extracts key timestamps."
	userPrompt   = "Summarize the following podcast transcript and extract key timestamps for important segments:\n\n%s"
)

// ErrNoChoices indicates the provider returned a completion with no choices.
var ErrNoChoices = errors.New("no choices in completion response")

// Summarizer summarizes a transcript.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

// chatCompleter is the subset of *openai.Client the summarizer needs.
// This allows injecting mocks in tests.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Compile-time interface compliance checks.
var (
	_ Summarizer    = (*OpenAISummarizer)(nil)
	_ chatCompleter = (*openai.Client)(nil)
)

// OpenAISummarizer summarizes transcripts with OpenAI chat completions.
type OpenAISummarizer struct {
	client chatCompleter
}

// NewOpenAISummarizer creates an OpenAISummarizer.
func NewOpenAISummarizer(client *openai.Client) *OpenAISummarizer {
	return &OpenAISummarizer{client: client}
}

// Summarize runs one chat completion over the transcript and returns
// the trimmed summary text.
func (s *OpenAISummarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(userPrompt, transcript)},
		},
	})
	if err != nil {
		return "", classifyError(err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// classifyError maps OpenAI API errors to shared apierr sentinels.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apierr.FromStatus(apiErr.HTTPStatusCode, apiErr.Message)
	}
	return err
}
