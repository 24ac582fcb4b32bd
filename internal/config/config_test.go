package config

import (
	"os"
	"path/filepath"
	"testing"
)

// useTempConfig points the config dir at a fresh temp directory.
func useTempConfig(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", root)
	return filepath.Join(root, "chunkscribe")
}

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	useTempConfig(t)
	t.Setenv(EnvOutputDir, "")
	t.Setenv(EnvChunkLimit, "")
	t.Setenv(EnvChunkOverlap, "")
	t.Setenv(EnvChunking, "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != (Config{}) {
		t.Errorf("cfg = %+v, want zero value", cfg)
	}
}

func TestLoad_FileValues(t *testing.T) {
	dir := useTempConfig(t)
	writeConfig(t, dir, `
# chunkscribe settings
output-dir = /tmp/transcripts
chunk-limit = 15m
chunk-overlap = 45s
chunking = on
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OutputDir != "/tmp/transcripts" {
		t.Errorf("OutputDir = %q", cfg.OutputDir)
	}
	if cfg.ChunkLimit != "15m" || cfg.ChunkOverlap != "45s" || cfg.Chunking != "on" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_EnvFallback(t *testing.T) {
	dir := useTempConfig(t)
	writeConfig(t, dir, "output-dir = /from/file\n")
	t.Setenv(EnvOutputDir, "/from/env")
	t.Setenv(EnvChunkLimit, "20MB")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OutputDir != "/from/file" {
		t.Errorf("OutputDir = %q, file value must win over env", cfg.OutputDir)
	}
	if cfg.ChunkLimit != "20MB" {
		t.Errorf("ChunkLimit = %q, want env fallback", cfg.ChunkLimit)
	}
}

func TestLoad_InvalidSyntax(t *testing.T) {
	dir := useTempConfig(t)
	writeConfig(t, dir, "this line has no equals sign\n")

	if _, err := Load(); err == nil {
		t.Error("expected syntax error")
	}
}

func TestSaveGetList(t *testing.T) {
	useTempConfig(t)

	if err := Save(KeyChunkLimit, "900s"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := Save(KeyOutputDir, "/out"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// Overwrite keeps other keys intact.
	if err := Save(KeyChunkLimit, "20MB"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Get(KeyChunkLimit)
	if err != nil || got != "20MB" {
		t.Errorf("Get = (%q, %v), want 20MB", got, err)
	}

	all, err := List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 || all[KeyOutputDir] != "/out" {
		t.Errorf("List = %v", all)
	}
}

func TestSave_RejectsUnknownKey(t *testing.T) {
	useTempConfig(t)

	if err := Save("no-such-key", "x"); err == nil {
		t.Error("expected unknown key error")
	}
}

func TestGet_MissingFile(t *testing.T) {
	useTempConfig(t)

	got, err := Get(KeyOutputDir)
	if err != nil || got != "" {
		t.Errorf("Get = (%q, %v), want empty with no error", got, err)
	}
}

func TestChunkingSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		cfg         Config
		wantLimit   string
		wantOverlap int
		wantOff     bool
	}{
		{
			name: "defaults",
			cfg:  Config{},
		},
		{
			name:      "limit passed through verbatim",
			cfg:       Config{ChunkLimit: "15m"},
			wantLimit: "15m",
		},
		{
			name:        "overlap as duration",
			cfg:         Config{ChunkOverlap: "45s"},
			wantOverlap: 45,
		},
		{
			name:        "overlap as bare seconds",
			cfg:         Config{ChunkOverlap: "45"},
			wantOverlap: 45,
		},
		{
			name: "bad overlap ignored",
			cfg:  Config{ChunkOverlap: "soon"},
		},
		{
			name:    "chunking off",
			cfg:     Config{Chunking: "off"},
			wantOff: true,
		},
		{
			name:    "chunking off case-insensitive",
			cfg:     Config{Chunking: "OFF"},
			wantOff: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := tt.cfg.ChunkingSettings()
			if s.Limit != tt.wantLimit {
				t.Errorf("Limit = %q, want %q", s.Limit, tt.wantLimit)
			}
			if s.OverlapSeconds != tt.wantOverlap {
				t.Errorf("OverlapSeconds = %d, want %d", s.OverlapSeconds, tt.wantOverlap)
			}
			if s.Disabled != tt.wantOff {
				t.Errorf("Disabled = %v, want %v", s.Disabled, tt.wantOff)
			}
		})
	}
}

func TestResolveOutputPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		output      string
		outputDir   string
		defaultName string
		want        string
	}{
		{"absolute output wins", "/abs/out.md", "/dir", "t.md", "/abs/out.md"},
		{"relative joins output dir", "out.md", "/dir", "t.md", "/dir/out.md"},
		{"relative without dir", "out.md", "", "t.md", "out.md"},
		{"default in output dir", "", "/dir", "t.md", "/dir/t.md"},
		{"default in cwd", "", "", "t.md", "t.md"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ResolveOutputPath(tt.output, tt.outputDir, tt.defaultName)
			if got != tt.want {
				t.Errorf("ResolveOutputPath = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidOutputDir(t *testing.T) {
	t.Parallel()

	t.Run("creates missing directory", func(t *testing.T) {
		t.Parallel()
		d := filepath.Join(t.TempDir(), "new")
		if err := ValidOutputDir(d); err != nil {
			t.Errorf("ValidOutputDir: %v", err)
		}
		if _, err := os.Stat(d); err != nil {
			t.Errorf("directory not created: %v", err)
		}
	})

	t.Run("rejects file path", func(t *testing.T) {
		t.Parallel()
		f := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(f, nil, 0o600); err != nil {
			t.Fatal(err)
		}
		if err := ValidOutputDir(f); err == nil {
			t.Error("expected error for non-directory")
		}
	})

	t.Run("rejects empty", func(t *testing.T) {
		t.Parallel()
		if err := ValidOutputDir(""); err == nil {
			t.Error("expected error for empty path")
		}
	})
}
