package ffmpeg_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/chunkscribe/chunkscribe/internal/ffmpeg"
)

// fakeEnv implements the envProvider seam.
type fakeEnv struct {
	vars     map[string]string
	pathHits map[string]string
}

func (f fakeEnv) Getenv(key string) string { return f.vars[key] }

func (f fakeEnv) LookPath(file string) (string, error) {
	if p, ok := f.pathHits[file]; ok {
		return p, nil
	}
	return "", errors.New("not found in PATH")
}

// fakeStatter reports existence for a fixed set of paths.
type fakeStatter struct {
	exists map[string]bool
}

func (f fakeStatter) Stat(name string) (os.FileInfo, error) {
	if f.exists[name] {
		return fakeFileInfo{name: name}, nil
	}
	return nil, os.ErrNotExist
}

type fakeFileInfo struct {
	name string
	size int64
}

func (f fakeFileInfo) Name() string       { return f.name }
func (f fakeFileInfo) Size() int64        { return f.size }
func (f fakeFileInfo) Mode() os.FileMode  { return 0644 }
func (f fakeFileInfo) ModTime() time.Time { return time.Time{} }
func (f fakeFileInfo) IsDir() bool        { return false }
func (f fakeFileInfo) Sys() any           { return nil }

func TestResolver_Resolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		env     fakeEnv
		statter fakeStatter
		want    string
		wantErr bool
	}{
		{
			name:    "env var takes precedence",
			env:     fakeEnv{vars: map[string]string{"FFMPEG_PATH": "/custom/ffmpeg"}, pathHits: map[string]string{"ffmpeg": "/usr/bin/ffmpeg"}},
			statter: fakeStatter{exists: map[string]bool{"/custom/ffmpeg": true}},
			want:    "/custom/ffmpeg",
		},
		{
			name:    "env var set but missing is an error",
			env:     fakeEnv{vars: map[string]string{"FFMPEG_PATH": "/gone/ffmpeg"}, pathHits: map[string]string{"ffmpeg": "/usr/bin/ffmpeg"}},
			statter: fakeStatter{},
			wantErr: true,
		},
		{
			name:    "system PATH",
			env:     fakeEnv{pathHits: map[string]string{"ffmpeg": "/usr/bin/ffmpeg"}},
			statter: fakeStatter{},
			want:    "/usr/bin/ffmpeg",
		},
		{
			name:    "common location fallback",
			env:     fakeEnv{},
			statter: fakeStatter{exists: map[string]bool{"/opt/homebrew/bin/ffmpeg": true}},
			want:    "/opt/homebrew/bin/ffmpeg",
		},
		{
			name:    "nothing found",
			env:     fakeEnv{},
			statter: fakeStatter{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := ffmpeg.NewResolver(
				ffmpeg.WithEnvProvider(tt.env),
				ffmpeg.WithFileStatter(tt.statter),
			)
			got, err := r.Resolve(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Resolve() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ffmpeg.ErrNotFound) {
					t.Errorf("error should wrap ErrNotFound, got %v", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestVersionChecker_Check(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		output     string
		wantOK     bool
		wantWarned bool
	}{
		{
			name:   "modern version passes quietly",
			output: "ffmpeg version 6.1.1 Copyright (c) 2000-2023",
			wantOK: true,
		},
		{
			name:   "n-prefixed version",
			output: "ffmpeg version n7.0 Copyright (c) 2000-2024",
			wantOK: true,
		},
		{
			name:       "old version warns",
			output:     "ffmpeg version 4.4.2 Copyright (c) 2000-2021",
			wantOK:     true,
			wantWarned: true,
		},
		{
			name:   "unparseable output",
			output: "something unexpected",
			wantOK: false,
		},
		{
			name:   "empty output",
			output: "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			executor := ffmpeg.NewExecutor(ffmpeg.WithRunOutput(
				func(context.Context, string, []string) (string, error) {
					return tt.output, nil
				}))

			var stderr bytes.Buffer
			vc := ffmpeg.NewVersionChecker(
				ffmpeg.WithVersionExecutor(executor),
				ffmpeg.WithVersionStderr(&stderr),
			)

			ok := vc.Check(context.Background(), "/usr/bin/ffmpeg")
			if ok != tt.wantOK {
				t.Errorf("Check() = %v, want %v", ok, tt.wantOK)
			}
			warned := strings.Contains(stderr.String(), "Warning")
			if warned != tt.wantWarned {
				t.Errorf("warned = %v, want %v (stderr: %q)", warned, tt.wantWarned, stderr.String())
			}
		})
	}
}
