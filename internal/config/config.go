// Package config reads server configuration from the environment.
// A .env file, when present, is loaded by main before Load runs.
package config

// Environment variables.
const (
	// EnvOpenAIAPIKey holds the OpenAI API key used for transcription
	// and summarization.
	EnvOpenAIAPIKey = "OPENAI_API_KEY"

	// EnvPort overrides the HTTP listen port.
	EnvPort = "PORT"
)

// DefaultPort is the listen port when PORT is not set.
const DefaultPort = "8000"

// Config holds server configuration.
type Config struct {
	OpenAIAPIKey string
	Port         string
}

// Load reads configuration using getenv (normally os.Getenv; injectable
// for tests).
func Load(getenv func(string) string) Config {
	cfg := Config{
		OpenAIAPIKey: getenv(EnvOpenAIAPIKey),
		Port:         getenv(EnvPort),
	}
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}
	return cfg
}

// Addr returns the listen address for the configured port.
func (c Config) Addr() string {
	return ":" + c.Port
}
