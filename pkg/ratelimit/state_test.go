package ratelimit

import (
	"testing"
	"time"
)

func TestWindowState_Remaining(t *testing.T) {
	tests := []struct {
		name     string
		state    *WindowState
		expected int
	}{
		{
			name:     "fresh window",
			state:    &WindowState{Used: 1, Budget: 300},
			expected: 299,
		},
		{
			name:     "exhausted",
			state:    &WindowState{Used: 300, Budget: 300},
			expected: 0,
		},
		{
			name:     "overrun never negative",
			state:    &WindowState{Used: 310, Budget: 300},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.Remaining(); got != tt.expected {
				t.Errorf("Remaining() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestWindowState_Bands(t *testing.T) {
	tests := []struct {
		name         string
		used         int
		wantBlock    bool
		wantThrottle bool
	}{
		{name: "healthy", used: 100, wantBlock: false, wantThrottle: false},
		{name: "just below throttle band", used: 240, wantBlock: false, wantThrottle: false},
		{name: "throttle band", used: 250, wantBlock: false, wantThrottle: true},
		{name: "deep in throttle band", used: 290, wantBlock: false, wantThrottle: true},
		{name: "block band", used: 295, wantBlock: true, wantThrottle: false},
		{name: "spent", used: 300, wantBlock: true, wantThrottle: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &WindowState{Used: tt.used, Budget: 300}

			if got := state.NeedsBlock(); got != tt.wantBlock {
				t.Errorf("NeedsBlock() = %v, want %v", got, tt.wantBlock)
			}
			if got := state.NeedsThrottling(); got != tt.wantThrottle {
				t.Errorf("NeedsThrottling() = %v, want %v", got, tt.wantThrottle)
			}
		})
	}
}

func TestWindowState_TimeUntilReset(t *testing.T) {
	future := &WindowState{ResetAt: time.Now().Add(30 * time.Second)}
	if got := future.TimeUntilReset(); got <= 0 || got > 30*time.Second {
		t.Errorf("TimeUntilReset() = %v, want within (0, 30s]", got)
	}

	past := &WindowState{ResetAt: time.Now().Add(-time.Second)}
	if got := past.TimeUntilReset(); got != 0 {
		t.Errorf("TimeUntilReset() = %v, want 0 for an elapsed window", got)
	}
}
