// Package pipeline orchestrates long-audio transcription: probe the
// recording, resolve a chunking config against the provider's limits, plan
// and materialize overlapping chunks, transcribe them sequentially with
// speaker reference hints, and merge the per-chunk results into one
// transcript.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/chunkscribe/chunkscribe/internal/apierr"
	"github.com/chunkscribe/chunkscribe/internal/chunking"
	"github.com/chunkscribe/chunkscribe/internal/provider"
	"github.com/chunkscribe/chunkscribe/internal/speakerref"
)

// MaxRecommendedParallel is the recommended upper limit for recordings
// processed concurrently by ProcessAll. Higher values may trigger provider
// rate limiting.
const MaxRecommendedParallel = 10

// Options configures one recording's transcription run.
type Options struct {
	// Language is an ISO 639-1 base code; empty means auto-detect.
	Language string

	// Diarize requests per-segment speaker labels and enables speaker
	// reference continuity across chunks.
	Diarize bool

	// MinSpeakers and MaxSpeakers bound diarization when > 0.
	MinSpeakers int
	MaxSpeakers int

	// KnownSpeakerNames suggests display names for detected speakers.
	KnownSpeakerNames []string

	// Chunking carries the user's chunking preferences.
	Chunking chunking.Settings
}

// Pipeline transcribes recordings of any length through one provider.
// Safe for concurrent use: per-recording state lives on the stack and in a
// per-recording temp directory.
type Pipeline struct {
	provider provider.Provider
	media    mediaToolkit
	sleeper  apierr.Sleeper
	tempDir  tempDirCreator
	files    fileRemover
	warn     func(msg string)
	progress func(done, total int)
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithPipelineSleeper replaces the retry backoff sleeper (for testing).
func WithPipelineSleeper(s apierr.Sleeper) PipelineOption {
	return func(p *Pipeline) { p.sleeper = s }
}

// WithTempDirCreator sets a custom temp directory creator (for testing).
func WithTempDirCreator(t tempDirCreator) PipelineOption {
	return func(p *Pipeline) { p.tempDir = t }
}

// WithFileRemover sets a custom file remover (for testing).
func WithFileRemover(f fileRemover) PipelineOption {
	return func(p *Pipeline) { p.files = f }
}

// WithWarnFunc routes non-fatal notices to fn. Nil discards them.
func WithWarnFunc(fn func(msg string)) PipelineOption {
	return func(p *Pipeline) {
		if fn != nil {
			p.warn = fn
		}
	}
}

// WithProgressFunc reports each finished chunk to fn.
func WithProgressFunc(fn func(done, total int)) PipelineOption {
	return func(p *Pipeline) {
		if fn != nil {
			p.progress = fn
		}
	}
}

// New creates a Pipeline around a provider and a media toolkit.
func New(prov provider.Provider, media mediaToolkit, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		provider: prov,
		media:    media,
		sleeper:  apierr.TimerSleeper{},
		tempDir:  osTempDirCreator{},
		files:    osFileRemover{},
		warn:     func(string) {},
		progress: func(int, int) {},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process transcribes one recording end to end.
//
// Recordings that fit in a single provider call skip chunking entirely and
// are uploaded as-is. Longer recordings are normalized once, split into
// overlapping chunks, transcribed sequentially, and merged. All intermediate
// files live in a per-recording temp directory that is removed on every
// return path.
func (p *Pipeline) Process(ctx context.Context, audioPath string, opts Options) (*MergedTranscript, error) {
	info, err := p.media.Probe(ctx, audioPath)
	if err != nil {
		return nil, err
	}
	if info.AudioCodec == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoAudioStream, audioPath)
	}

	caps := p.provider.Capabilities()
	settings := opts.Chunking
	if settings.Warn == nil {
		settings.Warn = p.warn
	}
	cfg := chunking.Resolve(caps, settings)

	specs := chunking.Plan(info.DurationSeconds, info.SizeBytes, cfg)
	if len(specs) == 1 {
		return p.transcribeWhole(ctx, audioPath, opts)
	}

	workDir, err := p.tempDir.MkdirTemp("", "chunkscribe-*")
	if err != nil {
		return nil, fmt.Errorf("create working directory: %w", err)
	}
	defer func() { _ = p.files.RemoveAll(workDir) }()

	// Re-encode once up front so every chunk is a cheap stream copy and the
	// plan's size estimates hold.
	normalized := filepath.Join(workDir, "normalized.ogg")
	if err := p.media.Normalize(ctx, audioPath, normalized); err != nil {
		return nil, err
	}

	// Normalization changes size and can nudge duration; re-plan against the
	// file the chunks will actually come from.
	normInfo, err := p.media.Probe(ctx, normalized)
	if err != nil {
		return nil, err
	}
	specs = chunking.Plan(normInfo.DurationSeconds, normInfo.SizeBytes, cfg)
	if len(specs) == 1 {
		return p.transcribeWhole(ctx, normalized, opts)
	}

	chunks, err := chunking.NewSplitter(p.media).Split(ctx, normalized, workDir, specs)
	if err != nil {
		return nil, err
	}

	extractor := speakerref.NewExtractor(p.media, speakerref.WithWarnFunc(p.warn))
	transcriber := NewTranscriber(p.provider, extractor,
		WithSleeper(p.sleeper),
		WithWarn(p.warn),
		WithProgress(p.progress),
	)

	results, err := transcriber.TranscribeChunks(ctx, chunks, workDir, RequestOptions{
		Language:          opts.Language,
		Diarize:           opts.Diarize,
		MinSpeakers:       opts.MinSpeakers,
		MaxSpeakers:       opts.MaxSpeakers,
		KnownSpeakerNames: opts.KnownSpeakerNames,
	})
	if err != nil {
		return nil, err
	}

	return Merge(results, opts.Diarize)
}

// transcribeWhole uploads the recording in one provider call, with the same
// retry policy a chunk would get.
func (p *Pipeline) transcribeWhole(ctx context.Context, audioPath string, opts Options) (*MergedTranscript, error) {
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	req := provider.Request{
		Audio:             audio,
		Filename:          filepath.Base(audioPath),
		MIMEType:          mimeTypeFor(audioPath),
		Language:          opts.Language,
		Diarize:           opts.Diarize,
		MinSpeakers:       opts.MinSpeakers,
		MaxSpeakers:       opts.MaxSpeakers,
		KnownSpeakerNames: opts.KnownSpeakerNames,
	}

	cfg := apierr.RetryConfig{
		MaxRetries: chunkAttempts - 1,
		BaseDelay:  genericBackoff,
		MaxDelay:   timeoutBackoff,
		Sleeper:    p.sleeper,
	}
	resp, err := apierr.RetryWithBackoff(ctx, cfg, func() (*provider.Response, error) {
		return p.provider.Transcribe(ctx, req)
	}, apierr.IsRetryable)
	if err != nil {
		return nil, err
	}

	merged := &MergedTranscript{
		Text:     strings.TrimSpace(resp.Text),
		Segments: resp.Segments,
		Speakers: resp.Speakers,
	}
	if merged.Text == "" {
		return nil, ErrEmptyTranscript
	}
	return merged, nil
}

// BatchResult pairs one input recording with its transcript.
type BatchResult struct {
	Path       string
	Transcript *MergedTranscript
}

// ProcessAll transcribes multiple recordings concurrently, each one running
// its own sequential chunk pipeline. Results are returned in input order.
// The first recording to fail aborts the batch.
//
// maxParallel limits concurrent recordings (1-MaxRecommendedParallel
// recommended).
func (p *Pipeline) ProcessAll(ctx context.Context, audioPaths []string, opts Options, maxParallel int) ([]BatchResult, error) {
	if len(audioPaths) == 0 {
		return nil, nil
	}
	if maxParallel < 1 {
		maxParallel = 1
	}

	results := make([]BatchResult, len(audioPaths))
	sem := make(chan struct{}, maxParallel)

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range audioPaths {
		i, path := i, path
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			defer func() { <-sem }()

			transcript, err := p.Process(ctx, path, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(path), err)
			}
			results[i] = BatchResult{Path: path, Transcript: transcript}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// mimeTypeFor maps an audio file extension to its MIME type for multipart
// uploads.
func mimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return "audio/mpeg"
	case ".mp4", ".m4a":
		return "audio/mp4"
	case ".wav":
		return "audio/wav"
	case ".ogg", ".oga":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	case ".webm":
		return "audio/webm"
	case ".mpeg", ".mpga":
		return "audio/mpeg"
	default:
		return "application/octet-stream"
	}
}
