// Package ratelimit implements request pacing for SaaS APIs.
// A token bucket spaces requests proactively; the X-RateLimit-Limit,
// X-RateLimit-Remaining and X-RateLimit-Reset response headers are tracked to
// pause before the upstream quota is exhausted.
package ratelimit

import (
	"time"
)

// Response headers carrying the upstream quota. Lookups are case-insensitive.
const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// ThrottleFraction is the share of the quota below which requests are throttled.
const ThrottleFraction = 0.1

// epochThreshold separates "seconds until reset" from "Unix seconds" values of
// the reset header. APIs use both conventions.
const epochThreshold = 1_000_000_000

// State is the last observed upstream quota for one API.
type State struct {
	// Limit is the quota per window (X-RateLimit-Limit)
	Limit int `json:"limit"`

	// Remaining is the number of requests left in the window (X-RateLimit-Remaining)
	Remaining int `json:"remaining"`

	// ResetAt is when the window resets (X-RateLimit-Reset)
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when the headers were observed
	LastUpdate time.Time `json:"last_update"`
}

// IsStale returns true if the state data is older than the given duration.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// Exhausted returns true when no requests are left and the window has not reset yet.
func (s *State) Exhausted() bool {
	return s.Remaining <= 0 && s.TimeUntilReset() > 0
}

// NeedsThrottling returns true when less than ThrottleFraction of the quota
// is left but requests are still possible.
func (s *State) NeedsThrottling() bool {
	if s.Limit <= 0 || s.Exhausted() || s.TimeUntilReset() == 0 {
		return false
	}
	return float64(s.Remaining) < float64(s.Limit)*ThrottleFraction
}

// IsHealthy reports whether requests may proceed without delay.
func (s *State) IsHealthy() bool {
	return !s.Exhausted() && !s.NeedsThrottling()
}

// TimeUntilReset returns the duration until the window resets.
// Returns 0 if the reset time has already passed.
func (s *State) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// resetTime interprets a reset header value relative to now.
func resetTime(now time.Time, value int64) time.Time {
	if value >= epochThreshold {
		return time.Unix(value, 0)
	}
	return now.Add(time.Duration(value) * time.Second)
}
