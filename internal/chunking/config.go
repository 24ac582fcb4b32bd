// Package chunking decides whether and how a recording is split for
// transcription: resolving one authoritative config from provider limits and
// user settings, planning chunk boundaries with even overlap, and
// materializing the planned chunks on disk.
package chunking

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chunkscribe/chunkscribe/internal/provider"
)

// Mode selects how the chunk limit is expressed.
type Mode string

const (
	// ModeSize limits chunks by file size in megabytes.
	ModeSize Mode = "size"

	// ModeDuration limits chunks by duration in seconds.
	ModeDuration Mode = "duration"
)

// Source records which rule produced the resolved config.
type Source string

const (
	SourceDisabled            Source = "disabled"
	SourceProviderHardLimit   Source = "provider-hard-limit"
	SourceProviderAndUser     Source = "provider-and-user"
	SourceUserConfigured      Source = "user-configured"
	SourceProviderRecommended Source = "provider-recommended"
	SourceAppDefault          Source = "app-default"
)

// Defaults and safety margins.
const (
	// defaultLimitMB is the fallback chunk size when nothing else applies.
	// 20MB leaves headroom under typical 25MB provider upload limits.
	defaultLimitMB = 20.0

	// defaultOverlapSeconds is the shared audio between adjacent chunks.
	// 30s ensures words at boundaries land fully inside at least one chunk
	// and gives the text merge enough material to deduplicate.
	defaultOverlapSeconds = 30

	// Hard provider limits are backed off before use because duration and
	// size of the normalized intermediate are estimates, not guarantees.
	durationSafetyFactor = 0.85
	sizeSafetyFactor     = 0.80
)

// WarnFunc is a callback for non-fatal configuration problems.
// Set to nil to suppress warnings.
type WarnFunc func(msg string)

// defaultWarnFunc writes warnings to stderr.
func defaultWarnFunc(msg string) {
	fmt.Fprintln(os.Stderr, msg)
}

// Settings carries the user's chunking preferences for one call.
// The zero value means "no preference": provider limits and app defaults
// decide everything.
type Settings struct {
	// Limit is an optional explicit chunk limit, e.g. "20MB", "900s", "15m".
	Limit string

	// OverlapSeconds overrides the default overlap when > 0.
	OverlapSeconds int

	// Disabled turns local chunking off. Ignored when the provider imposes
	// a hard limit, which makes chunking mandatory.
	Disabled bool

	// Warn receives non-fatal configuration warnings. Nil writes to stderr.
	Warn WarnFunc
}

// Config is the one authoritative chunking decision for a call.
// Recomputed per call, never persisted.
type Config struct {
	Enabled        bool
	Mode           Mode
	LimitValue     float64 // MB for ModeSize, seconds for ModeDuration
	OverlapSeconds int
	Source         Source
}

// Resolve produces the effective chunking config from provider capabilities
// and user settings. Pure: no I/O beyond the warn callback, deterministic for
// identical inputs. Rules are evaluated in strict priority order; malformed
// user limits are warned about and ignored, never fatal.
func Resolve(caps provider.Capabilities, settings Settings) Config {
	warn := settings.Warn
	if warn == nil {
		warn = defaultWarnFunc
	}

	overlap := settings.OverlapSeconds
	if overlap <= 0 {
		overlap = defaultOverlapSeconds
	}

	userMode, userValue, userErr := ParseLimit(settings.Limit)
	if settings.Limit != "" && userErr != nil {
		warn(fmt.Sprintf("Warning: ignoring invalid chunk limit %q: %v", settings.Limit, userErr))
	}
	hasUserLimit := settings.Limit != "" && userErr == nil

	// 1. Provider hard limits make chunking mandatory and cap everything.
	if caps.MaxDurationSeconds > 0 || caps.MaxFileSizeBytes > 0 {
		mode := ModeSize
		providerLimit := float64(caps.MaxFileSizeBytes) / (1024 * 1024)
		margin := sizeSafetyFactor
		if caps.MaxDurationSeconds > 0 {
			mode = ModeDuration
			providerLimit = caps.MaxDurationSeconds
			margin = durationSafetyFactor
		}

		// A user limit in a different mode is incomparable and ignored.
		if hasUserLimit && userMode == mode {
			return Config{
				Enabled:        true,
				Mode:           mode,
				LimitValue:     min(providerLimit, userValue),
				OverlapSeconds: overlap,
				Source:         SourceProviderAndUser,
			}
		}

		return Config{
			Enabled:        true,
			Mode:           mode,
			LimitValue:     providerLimit * margin,
			OverlapSeconds: overlap,
			Source:         SourceProviderHardLimit,
		}
	}

	// 2. Provider splits long audio itself; stay out of the way.
	if caps.HandlesChunkingInternally {
		return Config{Source: SourceDisabled}
	}

	// 3. Explicit user opt-out.
	if settings.Disabled {
		return Config{Source: SourceDisabled}
	}

	// 4. Explicit user limit, used verbatim.
	if hasUserLimit {
		return Config{
			Enabled:        true,
			Mode:           userMode,
			LimitValue:     userValue,
			OverlapSeconds: overlap,
			Source:         SourceUserConfigured,
		}
	}

	// 5. Provider's soft recommendation.
	if caps.RecommendedChunkSeconds > 0 {
		return Config{
			Enabled:        true,
			Mode:           ModeDuration,
			LimitValue:     caps.RecommendedChunkSeconds,
			OverlapSeconds: overlap,
			Source:         SourceProviderRecommended,
		}
	}

	// 6. App default.
	return Config{
		Enabled:        true,
		Mode:           ModeSize,
		LimitValue:     defaultLimitMB,
		OverlapSeconds: overlap,
		Source:         SourceAppDefault,
	}
}

// ParseLimit parses a user-facing limit string into a mode and value.
// Size limits use an MB suffix ("20MB", "20mb"); duration limits accept
// Go duration syntax ("900s", "15m", "1h30m") or a bare number of seconds.
func ParseLimit(s string) (Mode, float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", 0, fmt.Errorf("empty limit")
	}

	lower := strings.ToLower(s)
	if strings.HasSuffix(lower, "mb") {
		value, err := strconv.ParseFloat(strings.TrimSuffix(lower, "mb"), 64)
		if err != nil || value <= 0 {
			return "", 0, fmt.Errorf("invalid size limit %q", s)
		}
		return ModeSize, value, nil
	}

	if d, err := time.ParseDuration(lower); err == nil {
		if d <= 0 {
			return "", 0, fmt.Errorf("duration limit must be positive, got %q", s)
		}
		return ModeDuration, d.Seconds(), nil
	}

	// Bare number means seconds.
	if value, err := strconv.ParseFloat(lower, 64); err == nil {
		if value <= 0 {
			return "", 0, fmt.Errorf("duration limit must be positive, got %q", s)
		}
		return ModeDuration, value, nil
	}

	return "", 0, fmt.Errorf("unrecognized limit format %q (use e.g. 20MB, 900s, 15m)", s)
}
