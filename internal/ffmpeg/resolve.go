// Package ffmpeg locates the FFmpeg binary used for audio splitting.
//
// Resolution order: FFMPEG_PATH environment variable, then PATH lookup.
// When neither yields a binary, callers receive ErrNotFound and are
// expected to fall back to a pure-Go splitting strategy.
package ffmpeg

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
)

// Environment variable for a custom ffmpeg path.
const envFFmpegPath = "FFMPEG_PATH"

// envProvider abstracts environment and path lookup operations.
type envProvider interface {
	Getenv(key string) string
	LookPath(file string) (string, error)
}

// commandRunner executes external commands and returns their combined output.
type commandRunner interface {
	CombinedOutput(ctx context.Context, name string, args []string) ([]byte, error)
}

// osEnvProvider implements envProvider using os and exec packages.
type osEnvProvider struct{}

func (osEnvProvider) Getenv(key string) string { return os.Getenv(key) }

func (osEnvProvider) LookPath(file string) (string, error) { return exec.LookPath(file) }

// osCommandRunner implements commandRunner using exec.CommandContext.
type osCommandRunner struct{}

func (osCommandRunner) CombinedOutput(ctx context.Context, name string, args []string) ([]byte, error) {
	// #nosec G204 -- name and args come from internal resolution, not user input
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// Compile-time interface verification.
var (
	_ envProvider   = osEnvProvider{}
	_ commandRunner = osCommandRunner{}
)

// Resolver locates the FFmpeg binary.
type Resolver struct {
	env envProvider
	cmd commandRunner
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithEnvProvider sets the environment provider (for testing).
func WithEnvProvider(e envProvider) ResolverOption {
	return func(r *Resolver) {
		r.env = e
	}
}

// WithCommandRunner sets the command runner (for testing).
func WithCommandRunner(c commandRunner) ResolverOption {
	return func(r *Resolver) {
		r.cmd = c
	}
}

// NewResolver creates a Resolver with OS defaults.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		env: osEnvProvider{},
		cmd: osCommandRunner{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the path to the FFmpeg binary.
// FFMPEG_PATH takes precedence over PATH lookup.
// Returns ErrNotFound when no binary can be located.
func (r *Resolver) Resolve() (string, error) {
	if custom := r.env.Getenv(envFFmpegPath); custom != "" {
		return custom, nil
	}

	path, err := r.env.LookPath("ffmpeg")
	if err != nil {
		return "", fmt.Errorf("%w: install ffmpeg or set %s", ErrNotFound, envFFmpegPath)
	}
	return path, nil
}

// CheckVersion logs the resolved FFmpeg version. Best effort: a probe
// failure is logged but does not prevent splitting, since the binary may
// still work for extraction.
func (r *Resolver) CheckVersion(ctx context.Context, ffmpegPath string) {
	output, err := r.cmd.CombinedOutput(ctx, ffmpegPath, []string{"-version"})
	if err != nil {
		log.Printf("ffmpeg version probe failed: %v", err)
		return
	}

	// First line looks like: "ffmpeg version 6.1.1 Copyright ...".
	if line, _, ok := strings.Cut(string(output), "\n"); ok || line != "" {
		log.Printf("using %s", strings.TrimSpace(line))
	}
}
