package apierr_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/chunkscribe/chunkscribe/internal/apierr"
)

func TestClassifyHTTP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		statusCode int
		msg        string
		wantIs     error
	}{
		{
			name:       "rate limit",
			statusCode: http.StatusTooManyRequests,
			msg:        "slow down",
			wantIs:     apierr.ErrRateLimit,
		},
		{
			name:       "quota exceeded on 429",
			statusCode: http.StatusTooManyRequests,
			msg:        "you exceeded your current quota",
			wantIs:     apierr.ErrQuotaExceeded,
		},
		{
			name:       "billing issue on 429",
			statusCode: http.StatusTooManyRequests,
			msg:        "billing hard limit reached",
			wantIs:     apierr.ErrQuotaExceeded,
		},
		{
			name:       "unauthorized",
			statusCode: http.StatusUnauthorized,
			msg:        "invalid api key",
			wantIs:     apierr.ErrAuthFailed,
		},
		{
			name:       "gateway timeout",
			statusCode: http.StatusGatewayTimeout,
			msg:        "upstream timeout",
			wantIs:     apierr.ErrTimeout,
		},
		{
			name:       "server error treated as retryable timeout",
			statusCode: http.StatusServiceUnavailable,
			msg:        "overloaded",
			wantIs:     apierr.ErrTimeout,
		},
		{
			name:       "bad request",
			statusCode: http.StatusBadRequest,
			msg:        "unsupported file",
			wantIs:     apierr.ErrBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := apierr.ClassifyHTTP(tt.statusCode, tt.msg)
			if !errors.Is(err, tt.wantIs) {
				t.Errorf("ClassifyHTTP(%d, %q) = %v, want errors.Is %v",
					tt.statusCode, tt.msg, err, tt.wantIs)
			}
		})
	}
}

func TestClassifyHTTP_UnknownStatus(t *testing.T) {
	t.Parallel()

	err := apierr.ClassifyHTTP(http.StatusTeapot, "teapot")
	for _, sentinel := range []error{
		apierr.ErrRateLimit, apierr.ErrQuotaExceeded, apierr.ErrTimeout,
		apierr.ErrAuthFailed, apierr.ErrBadRequest,
	} {
		if errors.Is(err, sentinel) {
			t.Errorf("unknown status should not classify as %v", sentinel)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit", fmt.Errorf("wrapped: %w", apierr.ErrRateLimit), true},
		{"timeout", fmt.Errorf("wrapped: %w", apierr.ErrTimeout), true},
		{"quota exceeded", fmt.Errorf("wrapped: %w", apierr.ErrQuotaExceeded), false},
		{"auth failed", fmt.Errorf("wrapped: %w", apierr.ErrAuthFailed), false},
		{"bad request", fmt.Errorf("wrapped: %w", apierr.ErrBadRequest), false},
		{"context canceled", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := apierr.IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestSuggestsTimeout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"timeout sentinel", fmt.Errorf("wrapped: %w", apierr.ErrTimeout), true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"timeout in text", errors.New("connection Timeout while reading"), true},
		{"timed out in text", errors.New("request timed out"), true},
		{"unrelated", errors.New("invalid audio"), false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := apierr.SuggestsTimeout(tt.err); got != tt.want {
				t.Errorf("SuggestsTimeout(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
