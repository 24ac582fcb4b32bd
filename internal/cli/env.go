package cli

import (
	"context"
	"io"
	"os"

	"github.com/chunkscribe/chunkscribe/internal/config"
	"github.com/chunkscribe/chunkscribe/internal/ffmpeg"
	"github.com/chunkscribe/chunkscribe/internal/media"
	"github.com/chunkscribe/chunkscribe/internal/pipeline"
	"github.com/chunkscribe/chunkscribe/internal/provider"
)

// EnvOpenAIAPIKey is the environment variable holding the OpenAI API key.
const EnvOpenAIAPIKey = "OPENAI_API_KEY"

// Env holds injectable dependencies for CLI commands.
// This is the central injection point for testing CLI commands in isolation.
//
// All fields have sensible defaults via DefaultEnv(). Tests can override
// specific fields using the With* options or by creating a custom Env.
type Env struct {
	// I/O and environment
	Stdout io.Writer
	Stderr io.Writer
	Getenv func(string) string

	// Factories for domain objects
	FFmpegResolver  FFmpegResolver
	ConfigLoader    ConfigLoader
	PipelineFactory PipelineFactory
}

// FFmpegResolver resolves the path to the FFmpeg binary.
type FFmpegResolver interface {
	Resolve(ctx context.Context) (string, error)
	CheckVersion(ctx context.Context, ffmpegPath string)
}

// ConfigLoader loads and provides access to configuration.
type ConfigLoader interface {
	Load() (config.Config, error)
}

// Processor runs the transcription pipeline.
// *pipeline.Pipeline implements this implicitly.
type Processor interface {
	Process(ctx context.Context, audioPath string, opts pipeline.Options) (*pipeline.MergedTranscript, error)
	ProcessAll(ctx context.Context, audioPaths []string, opts pipeline.Options, maxParallel int) ([]pipeline.BatchResult, error)
}

// PipelineFactory builds a Processor around a provider and a media toolkit.
type PipelineFactory interface {
	NewPipeline(apiKey, ffmpegPath string, opts ...pipeline.PipelineOption) (Processor, error)
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithStdout sets the stdout writer.
func WithStdout(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stdout = w
	}
}

// WithStderr sets the stderr writer.
func WithStderr(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stderr = w
	}
}

// WithGetenv sets the environment variable getter.
func WithGetenv(fn func(string) string) EnvOption {
	return func(e *Env) {
		e.Getenv = fn
	}
}

// WithFFmpegResolver sets the FFmpeg resolver.
func WithFFmpegResolver(r FFmpegResolver) EnvOption {
	return func(e *Env) {
		e.FFmpegResolver = r
	}
}

// WithConfigLoader sets the config loader.
func WithConfigLoader(l ConfigLoader) EnvOption {
	return func(e *Env) {
		e.ConfigLoader = l
	}
}

// WithPipelineFactory sets the pipeline factory.
func WithPipelineFactory(f PipelineFactory) EnvOption {
	return func(e *Env) {
		e.PipelineFactory = f
	}
}

// DefaultEnv returns an Env with production defaults.
func DefaultEnv() *Env {
	return &Env{
		Stdout:          os.Stdout,
		Stderr:          os.Stderr,
		Getenv:          os.Getenv,
		FFmpegResolver:  &defaultFFmpegResolver{},
		ConfigLoader:    &defaultConfigLoader{},
		PipelineFactory: &defaultPipelineFactory{},
	}
}

// NewEnv creates an Env with the given options applied to defaults.
func NewEnv(opts ...EnvOption) *Env {
	env := DefaultEnv()
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// ---------------------------------------------------------------------------
// Default implementations - delegate to real packages
// ---------------------------------------------------------------------------

// defaultFFmpegResolver implements FFmpegResolver using the ffmpeg package.
type defaultFFmpegResolver struct{}

func (defaultFFmpegResolver) Resolve(ctx context.Context) (string, error) {
	return ffmpeg.Resolve(ctx)
}

func (defaultFFmpegResolver) CheckVersion(ctx context.Context, ffmpegPath string) {
	ffmpeg.CheckVersion(ctx, ffmpegPath)
}

// defaultConfigLoader implements ConfigLoader using the config package.
type defaultConfigLoader struct{}

func (defaultConfigLoader) Load() (config.Config, error) {
	return config.Load()
}

// defaultPipelineFactory implements PipelineFactory using OpenAI and FFmpeg.
type defaultPipelineFactory struct{}

func (defaultPipelineFactory) NewPipeline(apiKey, ffmpegPath string, opts ...pipeline.PipelineOption) (Processor, error) {
	toolkit, err := media.NewToolkit(ffmpegPath)
	if err != nil {
		return nil, err
	}
	prov := provider.NewOpenAIProvider(apiKey)
	return pipeline.New(prov, toolkit, opts...), nil
}

// Compile-time interface verification.
var (
	_ FFmpegResolver  = (*defaultFFmpegResolver)(nil)
	_ ConfigLoader    = (*defaultConfigLoader)(nil)
	_ PipelineFactory = (*defaultPipelineFactory)(nil)
	_ Processor       = (*pipeline.Pipeline)(nil)
)
