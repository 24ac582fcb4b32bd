package pipeline

import "errors"

// Sentinel errors for pipeline failures.
var (
	// ErrEmptyTranscript indicates the merged transcript came out blank.
	ErrEmptyTranscript = errors.New("empty transcript")

	// ErrAllChunksFailed indicates no chunk produced usable text.
	ErrAllChunksFailed = errors.New("all chunks failed to transcribe")

	// ErrNoAudioStream indicates the input file contains no audio.
	ErrNoAudioStream = errors.New("no audio stream in input file")
)
