package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chunkscribe/chunkscribe/internal/apierr"
	"github.com/chunkscribe/chunkscribe/internal/chunking"
	"github.com/chunkscribe/chunkscribe/internal/provider"
	"github.com/chunkscribe/chunkscribe/internal/speakerref"
)

// Per-chunk retry policy. Backoff is fixed, not exponential: rate limits and
// server hiccups on long audio uploads recover on the order of seconds, and a
// chunk is retried at most twice.
const (
	chunkAttempts  = 3
	genericBackoff = 15 * time.Second
	timeoutBackoff = 30 * time.Second
)

// ChunkResult is the outcome of transcribing one chunk. Failed chunks carry
// placeholder text so one bad chunk never loses the rest of the recording.
type ChunkResult struct {
	Spec     chunking.ChunkSpec
	Text     string
	Segments []provider.Segment
	Speakers []string
	Failed   bool
}

// RequestOptions carries the per-recording transcription parameters applied
// to every chunk.
type RequestOptions struct {
	Language          string
	Diarize           bool
	MinSpeakers       int
	MaxSpeakers       int
	KnownSpeakerNames []string
}

// refExtractor is the slice of the speaker reference extractor the
// transcriber needs.
type refExtractor interface {
	Extract(ctx context.Context, sourceAudio, workDir string, segments []provider.Segment, caps provider.Capabilities) ([]speakerref.Reference, error)
}

// Transcriber walks a recording's chunks in order, one provider call at a
// time. Chunks are never transcribed in parallel: chunks 1..N-1 carry speaker
// references derived from chunk 0's diarized result, so chunk 0 must finish
// first.
type Transcriber struct {
	provider provider.Provider
	refs     refExtractor
	sleeper  apierr.Sleeper
	warn     func(msg string)
	progress func(done, total int)
}

// TranscriberOption configures a Transcriber.
type TranscriberOption func(*Transcriber)

// WithSleeper replaces the backoff sleeper (for testing).
func WithSleeper(s apierr.Sleeper) TranscriberOption {
	return func(t *Transcriber) { t.sleeper = s }
}

// WithWarn routes non-fatal notices to fn.
func WithWarn(fn func(msg string)) TranscriberOption {
	return func(t *Transcriber) { t.warn = fn }
}

// WithProgress reports each finished chunk to fn.
func WithProgress(fn func(done, total int)) TranscriberOption {
	return func(t *Transcriber) { t.progress = fn }
}

// NewTranscriber creates a Transcriber for one recording.
func NewTranscriber(p provider.Provider, refs refExtractor, opts ...TranscriberOption) *Transcriber {
	t := &Transcriber{
		provider: p,
		refs:     refs,
		sleeper:  apierr.TimerSleeper{},
		warn:     func(string) {},
		progress: func(int, int) {},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TranscribeChunks transcribes every chunk in index order and returns one
// result per chunk, in the same order.
//
// After chunk 0 succeeds with diarized segments, speaker references are
// extracted once from chunk 0's audio and attached to every later request.
// References are computed before a chunk's first attempt and reused across
// its retries.
//
// A chunk that exhausts its attempts is recorded as failed with placeholder
// text; processing continues with the next chunk. Only context cancellation
// aborts the whole walk.
func (t *Transcriber) TranscribeChunks(ctx context.Context, chunks []chunking.Chunk, workDir string, opts RequestOptions) ([]ChunkResult, error) {
	results := make([]ChunkResult, 0, len(chunks))
	var references map[string][]byte

	for i, chunk := range chunks {
		resp, err := t.transcribeOne(ctx, chunk, opts, references)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			t.warn(fmt.Sprintf("chunk %d failed permanently: %v", i, err))
			results = append(results, ChunkResult{
				Spec:   chunk.Spec,
				Text:   fmt.Sprintf("[Chunk %d transcription failed: %v]", i, err),
				Failed: true,
			})
			t.progress(i+1, len(chunks))
			continue
		}

		results = append(results, ChunkResult{
			Spec:     chunk.Spec,
			Text:     resp.Text,
			Segments: resp.Segments,
			Speakers: resp.Speakers,
		})
		t.progress(i+1, len(chunks))

		if i == 0 && opts.Diarize && len(resp.Segments) > 0 && len(chunks) > 1 {
			references = t.extractReferences(ctx, chunk.Path, workDir, resp.Segments)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		}
	}
	return results, nil
}

// transcribeOne runs up to chunkAttempts provider calls for a single chunk
// with a fixed backoff between attempts.
func (t *Transcriber) transcribeOne(ctx context.Context, chunk chunking.Chunk, opts RequestOptions, references map[string][]byte) (*provider.Response, error) {
	audio, err := os.ReadFile(chunk.Path)
	if err != nil {
		return nil, fmt.Errorf("read chunk audio: %w", err)
	}

	req := provider.Request{
		Audio:             audio,
		Filename:          filepath.Base(chunk.Path),
		MIMEType:          "audio/ogg",
		Language:          opts.Language,
		Diarize:           opts.Diarize,
		MinSpeakers:       opts.MinSpeakers,
		MaxSpeakers:       opts.MaxSpeakers,
		KnownSpeakerNames: opts.KnownSpeakerNames,
		SpeakerReferences: references,
	}

	var lastErr error
	for attempt := 1; attempt <= chunkAttempts; attempt++ {
		if attempt > 1 {
			delay := genericBackoff
			if apierr.SuggestsTimeout(lastErr) {
				delay = timeoutBackoff
			}
			if err := t.sleeper.Sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		resp, err := t.provider.Transcribe(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, lastErr
		}
		if !apierr.IsRetryable(lastErr) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// extractReferences derives the speaker reference hints from chunk 0.
// Best-effort: on failure the pipeline proceeds without references.
func (t *Transcriber) extractReferences(ctx context.Context, chunkPath, workDir string, segments []provider.Segment) map[string][]byte {
	refs, err := t.refs.Extract(ctx, chunkPath, workDir, segments, t.provider.Capabilities())
	if err != nil {
		t.warn(fmt.Sprintf("speaker reference extraction failed, continuing without hints: %v", err))
		return nil
	}
	return speakerref.AsRequestReferences(refs)
}
