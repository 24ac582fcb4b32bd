package chunking

import (
	"fmt"
	"math"

	"github.com/chunkscribe/chunkscribe/internal/format"
)

// Planning constants.
const (
	// maxChunkSeconds is a provider-agnostic ceiling on chunk duration.
	maxChunkSeconds = 1400.0

	// minChunkSeconds is the floor on chunk duration. Chunks shorter than
	// 5 minutes waste per-call overhead unless the whole file is shorter.
	minChunkSeconds = 300.0

	// minTailSeconds discards a degenerate trailing chunk produced by
	// rounding, as long as coverage of the recording is preserved.
	minTailSeconds = 10.0

	// sizeFillFactor keeps size-derived chunk counts under the limit even
	// when bitrate varies across the file.
	sizeFillFactor = 0.95
)

// ChunkSpec describes one planned slice of the recording before it exists
// on disk. Pure data: a plan can be unit-tested without touching disk.
type ChunkSpec struct {
	Index        int
	StartSeconds float64
	EndSeconds   float64
}

// DurationSeconds returns the length of this chunk.
func (s ChunkSpec) DurationSeconds() float64 {
	return s.EndSeconds - s.StartSeconds
}

// String returns a human-readable representation for logging.
func (s ChunkSpec) String() string {
	return fmt.Sprintf("chunk %d: %s-%s",
		s.Index,
		format.Seconds(s.StartSeconds),
		format.Seconds(s.EndSeconds))
}

// Plan converts a recording's total duration and size into chunk boundaries
// under cfg. Adjacent chunks share exactly cfg.OverlapSeconds of audio,
// distributed evenly, except that nothing precedes chunk 0 or follows the
// last chunk.
//
// Returns a single whole-file chunk when chunking is disabled or the
// recording fits in one chunk.
func Plan(totalDurationSeconds float64, totalSizeBytes int64, cfg Config) []ChunkSpec {
	whole := []ChunkSpec{{Index: 0, StartSeconds: 0, EndSeconds: totalDurationSeconds}}

	if !cfg.Enabled || totalDurationSeconds <= 0 {
		return whole
	}

	numChunks := chunkCount(totalDurationSeconds, totalSizeBytes, cfg)
	if numChunks <= 1 {
		return whole
	}

	overlap := float64(cfg.OverlapSeconds)

	// Chunk duration that yields exactly the configured overlap between
	// adjacent chunks once starts are spread evenly.
	chunkDuration := (totalDurationSeconds + overlap*float64(numChunks-1)) / float64(numChunks)

	// Never shorter than 5 minutes unless the whole file is, never longer
	// than the file itself.
	chunkDuration = max(chunkDuration, min(minChunkSeconds, totalDurationSeconds))
	chunkDuration = min(chunkDuration, totalDurationSeconds)

	step := (totalDurationSeconds - chunkDuration) / float64(numChunks-1)
	if step <= 0 {
		// Clamping grew chunks until they all span the whole file.
		return whole
	}

	specs := make([]ChunkSpec, 0, numChunks)
	for i := 0; i < numChunks; i++ {
		start := float64(i) * step
		end := min(start+chunkDuration, totalDurationSeconds)
		specs = append(specs, ChunkSpec{
			Index:        i,
			StartSeconds: start,
			EndSeconds:   end,
		})
	}

	return dropDegenerateTail(specs, totalDurationSeconds)
}

// chunkCount derives how many chunks the recording needs under cfg.
func chunkCount(totalDurationSeconds float64, totalSizeBytes int64, cfg Config) int {
	switch cfg.Mode {
	case ModeSize:
		limitBytes := cfg.LimitValue * sizeFillFactor * 1024 * 1024
		if limitBytes <= 0 {
			return 1
		}
		return int(math.Ceil(float64(totalSizeBytes) / limitBytes))
	case ModeDuration:
		limit := min(cfg.LimitValue, maxChunkSeconds)
		if limit <= 0 {
			return 1
		}
		return int(math.Ceil(totalDurationSeconds / limit))
	default:
		return 1
	}
}

// dropDegenerateTail removes a trailing chunk shorter than minTailSeconds,
// but only when the previous chunk already reaches the end of the recording.
func dropDegenerateTail(specs []ChunkSpec, totalDurationSeconds float64) []ChunkSpec {
	if len(specs) < 2 {
		return specs
	}
	last := specs[len(specs)-1]
	prev := specs[len(specs)-2]
	if last.DurationSeconds() < minTailSeconds && prev.EndSeconds >= totalDurationSeconds {
		return specs[:len(specs)-1]
	}
	return specs
}
