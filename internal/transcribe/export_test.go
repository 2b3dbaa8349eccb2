package transcribe

// Test-only access to internals for black-box tests.

// NewTranscriberWithClient creates a transcriber with an injected
// structured client, bypassing the *openai.Client requirement.
func NewTranscriberWithClient(client audioTranscriber, apiKey string, opts ...TranscriberOption) *OpenAITranscriber {
	t := NewOpenAITranscriber(nil, apiKey, opts...)
	t.client = client
	return t
}
