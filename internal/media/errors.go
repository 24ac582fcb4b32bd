package media

import "errors"

// ErrFileNotFound indicates the specified input file does not exist.
var ErrFileNotFound = errors.New("file not found")

// ErrProbeFailed indicates FFmpeg output could not be parsed for file info.
var ErrProbeFailed = errors.New("audio probe failed")

// ErrTranscodeFailed indicates FFmpeg failed to re-encode the source audio.
var ErrTranscodeFailed = errors.New("audio transcode failed")

// ErrExtractFailed indicates FFmpeg failed to extract an audio segment.
var ErrExtractFailed = errors.New("segment extraction failed")
