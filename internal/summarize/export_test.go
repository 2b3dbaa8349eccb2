package summarize

// Test-only access to internals for black-box tests.

// NewSummarizerWithClient creates a summarizer with an injected chat
// client, bypassing the *openai.Client requirement.
func NewSummarizerWithClient(client chatCompleter) *OpenAISummarizer {
	return &OpenAISummarizer{client: client}
}
