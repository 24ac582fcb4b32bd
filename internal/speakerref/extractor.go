// Package speakerref extracts one short voice sample per speaker from a
// diarized transcription, for use as speaker reference hints on later calls.
// Extraction is best-effort: a speaker without a usable sample is skipped,
// never fatal.
package speakerref

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/chunkscribe/chunkscribe/internal/provider"
)

// Selection windows. The margin window sits inside the provider's hard
// window so encoding jitter cannot push a sample out of bounds.
const (
	defaultHardMinSeconds = 1.2
	defaultHardMaxSeconds = 10.0

	marginMinSeconds = 1.5
	marginMaxSeconds = 9.0

	// stitchGapSeconds is the longest silence allowed between two segments
	// stitched into one sample window.
	stitchGapSeconds = 1.0

	// maxSpeakers caps how many references are extracted per recording.
	maxSpeakers = 4
)

// Reference is one extracted voice sample.
type Reference struct {
	Label           string
	Audio           []byte
	DurationSeconds float64
}

// mediaToolkit is the slice of the media toolkit the extractor needs.
type mediaToolkit interface {
	ExtractSegment(ctx context.Context, src, destPath string, startSeconds, durationSeconds float64) error
	Duration(ctx context.Context, path string) (float64, error)
}

// WarnFunc receives notes about speakers that were skipped.
type WarnFunc func(msg string)

// Extractor derives speaker reference samples from diarized segments.
type Extractor struct {
	media mediaToolkit
	warn  WarnFunc
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithWarnFunc routes skip notices to fn instead of discarding them.
func WithWarnFunc(fn WarnFunc) Option {
	return func(e *Extractor) { e.warn = fn }
}

// NewExtractor creates an Extractor on top of a media toolkit.
func NewExtractor(media mediaToolkit, opts ...Option) *Extractor {
	e := &Extractor{
		media: media,
		warn:  func(string) {},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract picks one sample window per distinct speaker in segments, renders
// each window from sourceAudio into workDir, and returns the samples that
// survive validation against the provider's reference window.
//
// Speakers are processed in sorted label order and capped at four. Timestamps
// in segments must be relative to sourceAudio.
func (e *Extractor) Extract(ctx context.Context, sourceAudio, workDir string, segments []provider.Segment, caps provider.Capabilities) ([]Reference, error) {
	hardMin := caps.MinReferenceSeconds
	if hardMin <= 0 {
		hardMin = defaultHardMinSeconds
	}
	hardMax := caps.MaxReferenceSeconds
	if hardMax <= 0 {
		hardMax = defaultHardMaxSeconds
	}

	bySpeaker := make(map[string][]provider.Segment)
	for _, seg := range segments {
		if seg.Speaker == "" {
			continue
		}
		bySpeaker[seg.Speaker] = append(bySpeaker[seg.Speaker], seg)
	}

	labels := make([]string, 0, len(bySpeaker))
	for label := range bySpeaker {
		labels = append(labels, label)
	}
	slices.Sort(labels)
	if len(labels) > maxSpeakers {
		labels = labels[:maxSpeakers]
	}

	refs := make([]Reference, 0, len(labels))
	for i, label := range labels {
		window, ok := selectWindow(bySpeaker[label])
		if !ok {
			e.warn(fmt.Sprintf("no usable reference window for speaker %s, skipping", label))
			continue
		}

		samplePath := filepath.Join(workDir, fmt.Sprintf("speaker_ref_%02d.ogg", i))
		ref, err := e.render(ctx, sourceAudio, samplePath, label, window, hardMin, hardMax)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.warn(fmt.Sprintf("reference for speaker %s discarded: %v", label, err))
			continue
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// render extracts one window to disk, re-probes the actual rendered duration,
// and rejects samples outside the provider's hard window.
func (e *Extractor) render(ctx context.Context, src, destPath, label string, w window, hardMin, hardMax float64) (Reference, error) {
	if err := e.media.ExtractSegment(ctx, src, destPath, w.startSeconds, w.durationSeconds); err != nil {
		return Reference{}, err
	}

	actual, err := e.media.Duration(ctx, destPath)
	if err != nil {
		return Reference{}, err
	}
	if actual < hardMin || actual > hardMax {
		return Reference{}, fmt.Errorf("rendered duration %.2fs outside [%.1fs, %.1fs]", actual, hardMin, hardMax)
	}

	audio, err := os.ReadFile(destPath)
	if err != nil {
		return Reference{}, err
	}
	return Reference{Label: label, Audio: audio, DurationSeconds: actual}, nil
}

type window struct {
	startSeconds    float64
	durationSeconds float64
}

// selectWindow picks the sample window for one speaker's segments, which must
// be in chronological order. Preference order: the longest single segment
// already inside the margin window, then a long segment trimmed to the cap,
// then a stitched run of near-adjacent segments.
func selectWindow(segments []provider.Segment) (window, bool) {
	best := -1
	for i, seg := range segments {
		d := seg.DurationSeconds()
		if d < marginMinSeconds || d > marginMaxSeconds {
			continue
		}
		if best < 0 || d > segments[best].DurationSeconds() {
			best = i
		}
	}
	if best >= 0 {
		return window{segments[best].StartSeconds, segments[best].DurationSeconds()}, true
	}

	for _, seg := range segments {
		if seg.DurationSeconds() >= marginMinSeconds {
			return window{seg.StartSeconds, marginMaxSeconds}, true
		}
	}

	return stitchWindow(segments)
}

// stitchWindow joins consecutive segments separated by less than a second of
// dead air until the combined span reaches the minimum sample length.
func stitchWindow(segments []provider.Segment) (window, bool) {
	for i := 0; i < len(segments); i++ {
		start := segments[i].StartSeconds
		end := segments[i].EndSeconds

		for j := i + 1; j < len(segments); j++ {
			if segments[j].StartSeconds-end >= stitchGapSeconds {
				break
			}
			end = segments[j].EndSeconds
			if end-start >= marginMinSeconds {
				break
			}
		}

		span := end - start
		if span >= marginMinSeconds {
			return window{start, min(span, marginMaxSeconds)}, true
		}
	}
	return window{}, false
}

// AsRequestReferences converts extracted references to the map shape a
// provider request takes.
func AsRequestReferences(refs []Reference) map[string][]byte {
	if len(refs) == 0 {
		return nil
	}
	m := make(map[string][]byte, len(refs))
	for _, ref := range refs {
		m[ref.Label] = ref.Audio
	}
	return m
}
