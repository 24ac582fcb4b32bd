package pipeline

import (
	"context"
	"os"

	"github.com/chunkscribe/chunkscribe/internal/media"
)

// mediaToolkit is the slice of the media toolkit the pipeline needs.
// *media.Toolkit implements this implicitly.
type mediaToolkit interface {
	Probe(ctx context.Context, path string) (media.Info, error)
	Normalize(ctx context.Context, src, destPath string) error
	ExtractSegment(ctx context.Context, src, destPath string, startSeconds, durationSeconds float64) error
	Duration(ctx context.Context, path string) (float64, error)
	FileSize(path string) (int64, error)
}

// tempDirCreator creates temporary directories.
type tempDirCreator interface {
	MkdirTemp(dir, pattern string) (string, error)
}

// fileRemover removes files and directories.
type fileRemover interface {
	RemoveAll(path string) error
}

// osTempDirCreator implements tempDirCreator using os.MkdirTemp.
type osTempDirCreator struct{}

func (osTempDirCreator) MkdirTemp(dir, pattern string) (string, error) {
	return os.MkdirTemp(dir, pattern)
}

// osFileRemover implements fileRemover using os.RemoveAll.
type osFileRemover struct{}

func (osFileRemover) RemoveAll(path string) error {
	return os.RemoveAll(path)
}
