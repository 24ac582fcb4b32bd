// Package config loads and persists user configuration from
// ~/.config/chunkscribe/config, a plain key=value file with # comments.
// Environment variables act as fallbacks for keys absent from the file.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chunkscribe/chunkscribe/internal/chunking"
)

// Config keys.
const (
	KeyOutputDir    = "output-dir"
	KeyChunkLimit   = "chunk-limit"
	KeyChunkOverlap = "chunk-overlap"
	KeyChunking     = "chunking"
)

// Environment variable fallbacks.
const (
	EnvOutputDir    = "CHUNKSCRIBE_OUTPUT_DIR"
	EnvChunkLimit   = "CHUNKSCRIBE_CHUNK_LIMIT"
	EnvChunkOverlap = "CHUNKSCRIBE_CHUNK_OVERLAP"
	EnvChunking     = "CHUNKSCRIBE_CHUNKING"
)

// validKeys are the keys accepted by Save.
var validKeys = map[string]bool{
	KeyOutputDir:    true,
	KeyChunkLimit:   true,
	KeyChunkOverlap: true,
	KeyChunking:     true,
}

// Config holds user configuration loaded from the config file.
type Config struct {
	// OutputDir is where transcripts are written by default.
	OutputDir string

	// ChunkLimit is an optional chunk limit string, e.g. "20MB" or "15m".
	ChunkLimit string

	// ChunkOverlap is an optional overlap between chunks, e.g. "30s".
	ChunkOverlap string

	// Chunking is "on" (default) or "off".
	Chunking string
}

// dir returns the configuration directory path.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config/chunkscribe.
func dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "chunkscribe"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "chunkscribe"), nil
}

// path returns the full path to the config file.
func path() (string, error) {
	d, err := dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "config"), nil
}

// Load reads the configuration file and environment variables.
// Precedence: config file values, then environment variable fallbacks.
// Returns an empty Config if the file doesn't exist (not an error).
func Load() (Config, error) {
	var cfg Config

	p, err := path()
	if err != nil {
		return cfg, err
	}

	if data, err := parseFile(p); err == nil {
		cfg.OutputDir = data[KeyOutputDir]
		cfg.ChunkLimit = data[KeyChunkLimit]
		cfg.ChunkOverlap = data[KeyChunkOverlap]
		cfg.Chunking = data[KeyChunking]
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	// Environment variable fallbacks (only for keys absent from the file).
	if cfg.OutputDir == "" {
		cfg.OutputDir = os.Getenv(EnvOutputDir)
	}
	if cfg.ChunkLimit == "" {
		cfg.ChunkLimit = os.Getenv(EnvChunkLimit)
	}
	if cfg.ChunkOverlap == "" {
		cfg.ChunkOverlap = os.Getenv(EnvChunkOverlap)
	}
	if cfg.Chunking == "" {
		cfg.Chunking = os.Getenv(EnvChunking)
	}

	return cfg, nil
}

// ChunkingSettings converts the loaded configuration into chunking settings.
// Unparseable overlap values are ignored; the resolver warns about bad limit
// strings itself.
func (c Config) ChunkingSettings() chunking.Settings {
	settings := chunking.Settings{
		Limit:    c.ChunkLimit,
		Disabled: strings.EqualFold(c.Chunking, "off"),
	}
	if c.ChunkOverlap != "" {
		if d, err := time.ParseDuration(c.ChunkOverlap); err == nil && d > 0 {
			settings.OverlapSeconds = int(d.Seconds())
		} else if n, err := strconv.Atoi(c.ChunkOverlap); err == nil && n > 0 {
			settings.OverlapSeconds = n
		}
	}
	return settings
}

// parseFile reads a key=value config file.
// Format: one key=value per line, # comments, empty lines ignored.
func parseFile(p string) (map[string]string, error) {
	f, err := os.Open(p) // #nosec G304 -- config path is constructed from home dir
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	data := make(map[string]string)
	scanner := bufio.NewScanner(f)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid syntax at line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		data[key] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return data, nil
}

// ValidKey reports whether key is a recognized config key.
func ValidKey(key string) bool {
	return validKeys[key]
}

// Save writes a single key=value to the config file.
// Creates the config directory and file if they don't exist.
// Preserves existing key=value pairs but discards comments.
func Save(key, value string) error {
	if !ValidKey(key) {
		return fmt.Errorf("unknown config key %q", key)
	}

	p, err := path()
	if err != nil {
		return err
	}

	d := filepath.Dir(p)
	if err := os.MkdirAll(d, 0750); err != nil { // #nosec G301 -- user config dir
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	existing, _ := parseFile(p)
	if existing == nil {
		existing = make(map[string]string)
	}
	existing[key] = value

	return writeFile(p, existing)
}

// writeFile writes the config map to a file.
func writeFile(p string, data map[string]string) error {
	// #nosec G302 G304 -- config file with standard permissions, path from home dir
	f, err := os.OpenFile(p, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("cannot write config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	for key, value := range data {
		if _, err := fmt.Fprintf(f, "%s=%s\n", key, value); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	return nil
}

// Get reads a single value from the config file.
// Returns empty string if the key doesn't exist.
func Get(key string) (string, error) {
	p, err := path()
	if err != nil {
		return "", err
	}

	data, err := parseFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	return data[key], nil
}

// List returns all config values as a map.
func List() (map[string]string, error) {
	p, err := path()
	if err != nil {
		return nil, err
	}

	data, err := parseFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}

	return data, nil
}

// ResolveOutputPath resolves the final output path using the following precedence:
//  1. If output is absolute, use it as-is
//  2. If output is relative and outputDir is set, join them
//  3. If output is empty, use defaultName in outputDir (or cwd if no outputDir)
func ResolveOutputPath(output, outputDir, defaultName string) string {
	if output != "" && filepath.IsAbs(output) {
		return filepath.Clean(output)
	}

	if output != "" {
		if outputDir != "" {
			return filepath.Clean(filepath.Join(outputDir, output))
		}
		return filepath.Clean(output)
	}

	if outputDir != "" {
		return filepath.Clean(filepath.Join(outputDir, defaultName))
	}
	return filepath.Clean(defaultName)
}

// ValidOutputDir checks if a directory path is valid for use as output-dir.
// Returns nil if valid, or an error describing the problem.
func ValidOutputDir(d string) error {
	if d == "" {
		return fmt.Errorf("output-dir cannot be empty")
	}

	d = ExpandPath(d)

	info, err := os.Stat(d)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(d, 0750); err != nil { // #nosec G301 -- user output dir
				return fmt.Errorf("cannot create directory: %w", err)
			}
			return nil
		}
		return fmt.Errorf("cannot access directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", d)
	}

	// Check writability by creating and removing a probe file.
	testFile := filepath.Join(d, ".chunkscribe-write-test")
	f, err := os.Create(testFile) // #nosec G304 -- path is constructed from validated dir
	if err != nil {
		return fmt.Errorf("directory is not writable: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(testFile)
		return fmt.Errorf("directory is not writable: %w", err)
	}
	_ = os.Remove(testFile)

	return nil
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(p string) string {
	if strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, p[2:])
	}
	return p
}
