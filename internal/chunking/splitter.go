package chunking

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
)

// ErrSplitFailed indicates a planned chunk could not be materialized.
// Fatal for the whole recording: a chunk that does not exist cannot be
// transcribed.
var ErrSplitFailed = errors.New("chunk split failed")

// segmentExtractor is the slice of the media toolkit the splitter needs.
type segmentExtractor interface {
	ExtractSegment(ctx context.Context, src, destPath string, startSeconds, durationSeconds float64) error
	FileSize(path string) (int64, error)
}

// Chunk is a ChunkSpec realized as an audio file on disk.
// Files live in the pipeline's per-recording working directory; the caller
// removes that directory on every exit path.
type Chunk struct {
	Spec      ChunkSpec
	Path      string
	SizeBytes int64
}

// Splitter materializes planned chunks from a normalized source file.
type Splitter struct {
	media segmentExtractor
}

// NewSplitter creates a Splitter on top of a media toolkit.
func NewSplitter(media segmentExtractor) *Splitter {
	return &Splitter{media: media}
}

// Split extracts every spec from srcPath into destDir.
// srcPath must be the pre-normalized intermediate file so extraction is a
// fast stream copy and sizes track the plan's estimates.
//
// Fails fast on the first extraction error; chunks already materialized are
// left in destDir for the caller's directory-level cleanup.
func (s *Splitter) Split(ctx context.Context, srcPath, destDir string, specs []ChunkSpec) ([]Chunk, error) {
	chunks := make([]Chunk, 0, len(specs))
	for _, spec := range specs {
		chunkPath := filepath.Join(destDir, fmt.Sprintf("chunk_%03d.ogg", spec.Index))

		err := s.media.ExtractSegment(ctx, srcPath, chunkPath, spec.StartSeconds, spec.DurationSeconds())
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrSplitFailed, spec, err)
		}

		size, err := s.media.FileSize(chunkPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrSplitFailed, spec, err)
		}

		chunks = append(chunks, Chunk{
			Spec:      spec,
			Path:      chunkPath,
			SizeBytes: size,
		})
	}
	return chunks, nil
}
