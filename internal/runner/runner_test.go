package runner

import (
	"errors"
	"fmt"
	"testing"
)

func TestRetryable(t *testing.T) {
	tests := []struct {
		err       error
		retryable bool
	}{
		{ErrTimeout, true},
		{ErrRateLimited, true},
		{errors.New("connection reset"), true},
		{fmt.Errorf("invoke: %w", ErrTimeout), true},
		{ErrUnauthorized, false},
		{ErrUnrecoverable, false},
		{fmt.Errorf("invoke: %w", ErrUnauthorized), false},
	}

	for _, tt := range tests {
		if got := Retryable(tt.err); got != tt.retryable {
			t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.retryable)
		}
	}
}

func TestEstimateCost(t *testing.T) {
	// 1M input + 1M output at Sonnet pricing.
	got := estimateCost(1_000_000, 1_000_000)
	if got != 18.0 {
		t.Errorf("expected 18.0, got %v", got)
	}

	if got := estimateCost(0, 0); got != 0 {
		t.Errorf("expected zero cost, got %v", got)
	}
}
