package transcribe

import "errors"

// ErrAPIKeyMissing indicates OPENAI_API_KEY environment variable is not set.
var ErrAPIKeyMissing = errors.New("OPENAI_API_KEY environment variable not set")

// ErrTranscriptionFailed indicates both the structured client call and
// the raw HTTP fallback were exhausted. The wrapped message carries the
// provider's status code and response body for diagnostics.
var ErrTranscriptionFailed = errors.New("transcription failed")
