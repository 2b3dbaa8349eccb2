package audio

// Test-only access to internals for black-box tests.

var (
	ParseDurationFromFFmpegOutput = parseDurationFromFFmpegOutput
	EstimateDuration              = estimateDuration
	ChunkFileName                 = chunkFileName
)
