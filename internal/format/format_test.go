package format_test

import (
	"testing"
	"time"

	"github.com/chunkscribe/chunkscribe/internal/format"
)

func TestDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"zero", 0, "00:00"},
		{"seconds only", 42 * time.Second, "00:42"},
		{"minutes and seconds", 5*time.Minute + 3*time.Second, "05:03"},
		{"with hours", time.Hour + 30*time.Minute + 15*time.Second, "01:30:15"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := format.Duration(tt.d); got != tt.want {
				t.Errorf("Duration(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

func TestSeconds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		s    float64
		want string
	}{
		{"zero", 0, "00:00"},
		{"fractional truncates", 90.7, "01:30"},
		{"negative clamps to zero", -5, "00:00"},
		{"over an hour", 3725, "01:02:05"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := format.Seconds(tt.s); got != tt.want {
				t.Errorf("Seconds(%v) = %q, want %q", tt.s, got, tt.want)
			}
		})
	}
}

func TestSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		bytes int64
		want  string
	}{
		{"bytes", 512, "512 bytes"},
		{"kilobytes", 2048, "2 KB"},
		{"megabytes", 20 * 1024 * 1024, "20 MB"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := format.Size(tt.bytes); got != tt.want {
				t.Errorf("Size(%d) = %q, want %q", tt.bytes, got, tt.want)
			}
		})
	}
}
