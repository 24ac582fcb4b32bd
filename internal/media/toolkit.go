// Package media wraps FFmpeg as an audio toolkit: probing file info,
// normalizing source audio to a single intermediate codec, and extracting
// time-bounded segments from it.
//
// Sources are re-encoded exactly once per recording (Normalize); all segment
// extraction afterwards uses fast stream copy, so per-chunk work never pays
// a transcode and size estimates against the normalized file stay accurate.
package media

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Info describes a probed media file.
type Info struct {
	DurationSeconds float64
	SizeBytes       int64
	AudioCodec      string
	HasVideo        bool
}

// Toolkit performs audio operations through FFmpeg.
type Toolkit struct {
	ffmpegPath string

	// Injectable dependencies (defaults to OS implementations).
	cmd     commandRunner
	statter fileStatter
}

// ToolkitOption configures a Toolkit.
type ToolkitOption func(*Toolkit)

// WithCommandRunner sets the command runner (for testing).
func WithCommandRunner(r commandRunner) ToolkitOption {
	return func(t *Toolkit) { t.cmd = r }
}

// WithFileStatter sets the file statter (for testing).
func WithFileStatter(s fileStatter) ToolkitOption {
	return func(t *Toolkit) { t.statter = s }
}

// NewToolkit creates a Toolkit bound to an FFmpeg binary.
func NewToolkit(ffmpegPath string, opts ...ToolkitOption) (*Toolkit, error) {
	if ffmpegPath == "" {
		return nil, fmt.Errorf("ffmpegPath cannot be empty")
	}
	t := &Toolkit{
		ffmpegPath: ffmpegPath,
		cmd:        osCommandRunner{},
		statter:    osFileStatter{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Probe returns duration, size, audio codec, and video presence for a file.
func (t *Toolkit) Probe(ctx context.Context, path string) (Info, error) {
	fi, err := t.statter.Stat(path)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrFileNotFound, err)
	}

	args := []string{"-i", path, "-f", "null", "-"}
	output, err := t.cmd.CombinedOutput(ctx, t.ffmpegPath, args)
	if err != nil && len(output) == 0 {
		// FFmpeg returns non-zero even when it successfully reads file info,
		// so only fail when there is nothing to parse.
		return Info{}, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}

	out := string(output)
	duration, err := parseDurationOutput(out)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}

	return Info{
		DurationSeconds: duration.Seconds(),
		SizeBytes:       fi.Size(),
		AudioCodec:      parseAudioCodec(out),
		HasVideo:        parseHasVideo(out),
	}, nil
}

// Duration returns just the duration of a file in seconds.
func (t *Toolkit) Duration(ctx context.Context, path string) (float64, error) {
	args := []string{"-i", path, "-f", "null", "-"}
	output, err := t.cmd.CombinedOutput(ctx, t.ffmpegPath, args)
	if err != nil && len(output) == 0 {
		return 0, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	d, err := parseDurationOutput(string(output))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	return d.Seconds(), nil
}

// normalizeArgs returns the encoding arguments for the intermediate codec.
// 16kHz mono OGG Vorbis at ~50kbps is optimal for speech transcription and
// produces valid output even from corrupted or truncated sources.
func normalizeArgs() []string {
	return []string{
		"-vn",
		"-c:a", "libvorbis",
		"-ar", "16000",
		"-ac", "1",
		"-q:a", "2",
	}
}

// Normalize re-encodes src into the intermediate codec at destPath.
// This is the one transcode per recording; everything downstream stream-copies.
func (t *Toolkit) Normalize(ctx context.Context, src, destPath string) error {
	args := []string{"-y", "-i", src}
	args = append(args, normalizeArgs()...)
	args = append(args, destPath)

	output, err := t.cmd.CombinedOutput(ctx, t.ffmpegPath, args)
	if err != nil {
		return fmt.Errorf("%w: %v\nOutput: %s", ErrTranscodeFailed, err, string(output))
	}
	return nil
}

// ExtractSegment copies [startSeconds, startSeconds+durationSeconds) of src
// into destPath without re-encoding. src must already be normalized; stream
// copy of an arbitrary container can land on non-keyframe boundaries.
func (t *Toolkit) ExtractSegment(ctx context.Context, src, destPath string, startSeconds, durationSeconds float64) error {
	args := []string{
		"-y",
		"-ss", formatTime(startSeconds),
		"-i", src,
		"-t", formatTime(durationSeconds),
		"-c", "copy",
		destPath,
	}

	output, err := t.cmd.CombinedOutput(ctx, t.ffmpegPath, args)
	if err != nil {
		return fmt.Errorf("%w: %s: %v\nOutput: %s", ErrExtractFailed, destPath, err, string(output))
	}
	return nil
}

// FileSize returns the on-disk size of a file.
func (t *Toolkit) FileSize(path string) (int64, error) {
	fi, err := t.statter.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrFileNotFound, err)
	}
	return fi.Size(), nil
}

// formatTime formats seconds for FFmpeg -ss/-t arguments.
func formatTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := int(seconds) / 3600
	m := (int(seconds) % 3600) / 60
	s := seconds - float64(h*3600+m*60)
	return fmt.Sprintf("%02d:%02d:%06.3f", h, m, s)
}

// parseDurationOutput extracts duration from FFmpeg stderr.
// Looks for: "Duration: HH:MM:SS.ms" or "time=HH:MM:SS.ms"
func parseDurationOutput(output string) (time.Duration, error) {
	durationRe := regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+)\.(\d+)`)
	if matches := durationRe.FindStringSubmatch(output); matches != nil {
		return parseTimeComponents(matches[1], matches[2], matches[3], matches[4])
	}

	// Fallback pattern: time=00:05:23.45 (from progress output). The last
	// match is the final timestamp.
	timeRe := regexp.MustCompile(`time=(\d+):(\d+):(\d+)\.(\d+)`)
	allMatches := timeRe.FindAllStringSubmatch(output, -1)
	if len(allMatches) > 0 {
		matches := allMatches[len(allMatches)-1]
		return parseTimeComponents(matches[1], matches[2], matches[3], matches[4])
	}

	return 0, fmt.Errorf("could not parse duration from ffmpeg output")
}

// parseTimeComponents converts HH:MM:SS.ms strings to Duration.
func parseTimeComponents(hours, minutes, seconds, fractional string) (time.Duration, error) {
	h, _ := strconv.Atoi(hours)
	m, _ := strconv.Atoi(minutes)
	s, _ := strconv.Atoi(seconds)

	// Normalize fractional part to milliseconds.
	// Input may be 1-6+ digits (e.g., ".4", ".45", ".456", ".456789").
	frac, _ := strconv.Atoi(fractional)
	ms := frac
	switch n := len(fractional); {
	case n == 1:
		ms = frac * 100
	case n == 2:
		ms = frac * 10
	case n == 3:
		// Already milliseconds.
	case n > 3:
		for i := n; i > 3; i-- {
			ms /= 10
		}
	}

	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(ms)*time.Millisecond, nil
}

// audioStreamRe matches the codec name in an FFmpeg audio stream line, e.g.
// "Stream #0:0: Audio: vorbis, 16000 Hz, mono".
var audioStreamRe = regexp.MustCompile(`Audio:\s*([A-Za-z0-9_]+)`)

// parseAudioCodec extracts the first audio codec name from probe output.
func parseAudioCodec(output string) string {
	if matches := audioStreamRe.FindStringSubmatch(output); matches != nil {
		return strings.ToLower(matches[1])
	}
	return ""
}

// parseHasVideo reports whether the probe output shows a real video stream.
// Attached pictures (cover art in audio files) are not counted.
func parseHasVideo(output string) bool {
	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(line, "Video:") && !strings.Contains(line, "attached pic") {
			return true
		}
	}
	return false
}
