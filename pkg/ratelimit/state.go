// Package ratelimit implements a shared outbound request budget for one
// MDDB API instance. The window counter lives in redis, so several
// processes enumerating the same instance pace themselves against one
// budget instead of each assuming the full one.
package ratelimit

import (
	"time"
)

// Defaults for the request budget.
const (
	// DefaultBudget is the number of requests allowed per window.
	DefaultBudget = 300

	// DefaultWindow is the budget window length.
	DefaultWindow = time.Minute
)

// Fractions of the remaining budget at which pacing kicks in.
const (
	// ThrottleFraction applies a short delay to each request once the
	// remaining budget falls below this fraction.
	ThrottleFraction = 0.2

	// BlockFraction rejects requests outright once the remaining budget
	// falls below this fraction.
	BlockFraction = 0.02
)

// WindowState is a snapshot of one budget window.
type WindowState struct {
	// Used is the number of requests counted in the current window,
	// including the one being decided.
	Used int `json:"used"`

	// Budget is the window's request allowance.
	Budget int `json:"budget"`

	// ResetAt is when the window expires and the count restarts.
	ResetAt time.Time `json:"reset_at"`
}

// Remaining returns the requests left in the window. Never negative.
func (s *WindowState) Remaining() int {
	remaining := s.Budget - s.Used
	if remaining < 0 {
		return 0
	}
	return remaining
}

// NeedsBlock reports whether requests should be rejected until the window
// resets.
func (s *WindowState) NeedsBlock() bool {
	return float64(s.Remaining()) < float64(s.Budget)*BlockFraction
}

// NeedsThrottling reports whether requests should be slowed down.
func (s *WindowState) NeedsThrottling() bool {
	return !s.NeedsBlock() && float64(s.Remaining()) < float64(s.Budget)*ThrottleFraction
}

// TimeUntilReset returns the duration until the window resets.
// Returns 0 if the reset time has already passed.
func (s *WindowState) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}
