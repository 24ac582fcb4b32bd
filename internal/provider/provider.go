// Package provider defines the transcription provider contract and its
// OpenAI implementation. A provider accepts one audio buffer per call and is
// stateless across calls; continuity between calls (speaker identity, chunk
// ordering) is the pipeline's job, with speaker reference samples passed as
// advisory hints.
package provider

import "context"

// Segment is one diarized span of a transcription response.
// Timestamps are relative to the submitted audio buffer, not the recording.
type Segment struct {
	Speaker      string
	Text         string
	StartSeconds float64
	EndSeconds   float64
}

// DurationSeconds returns the length of the segment.
func (s Segment) DurationSeconds() float64 {
	return s.EndSeconds - s.StartSeconds
}

// Request describes one transcription call.
type Request struct {
	// Audio is the raw audio buffer to transcribe.
	Audio []byte

	// Filename and MIMEType describe the buffer for multipart uploads.
	Filename string
	MIMEType string

	// Language is an ISO 639-1 base code; empty means auto-detect.
	Language string

	// Diarize requests per-segment speaker labels.
	Diarize bool

	// MinSpeakers and MaxSpeakers bound diarization when > 0.
	MinSpeakers int
	MaxSpeakers int

	// KnownSpeakerNames suggests display names for detected speakers.
	KnownSpeakerNames []string

	// SpeakerReferences maps a speaker label to a short audio exemplar of
	// that voice. Labels in the response are encouraged, not guaranteed,
	// to reuse these labels for matching voices.
	SpeakerReferences map[string][]byte
}

// Response is the result of one transcription call.
type Response struct {
	Text     string
	Segments []Segment // empty for non-diarized requests
	Speakers []string  // distinct labels, present only when diarized
}

// Capabilities describes a provider's limits and features.
// Queried once per pipeline run, not per call.
type Capabilities struct {
	// MaxDurationSeconds is a hard per-call duration ceiling; 0 means none.
	MaxDurationSeconds float64

	// MaxFileSizeBytes is a hard per-call size ceiling; 0 means none.
	MaxFileSizeBytes int64

	// RecommendedChunkSeconds is a soft chunk duration hint; 0 means none.
	RecommendedChunkSeconds float64

	// HandlesChunkingInternally means the provider splits long audio itself
	// and local chunking must be skipped entirely.
	HandlesChunkingInternally bool

	// SupportsDiarization reports whether diarized requests are honored.
	SupportsDiarization bool

	// MinReferenceSeconds and MaxReferenceSeconds bound the accepted length
	// of speaker reference samples.
	MinReferenceSeconds float64
	MaxReferenceSeconds float64
}

// Provider transcribes audio buffers.
type Provider interface {
	// Transcribe performs one blocking transcription call.
	Transcribe(ctx context.Context, req Request) (*Response, error)

	// Capabilities returns the provider's limits and features.
	Capabilities() Capabilities
}
