package domain

import "time"

// RateLimitDecision is the outcome of a rate limit check for one client identifier.
type RateLimitDecision struct {
	Allowed     bool      // Whether the attempt may proceed
	Remaining   int       // Attempts left in the current window
	ResetAt     time.Time // When the denial lifts; zero when allowed
	Message     string    // Client-facing explanation of a denial
	Blacklisted bool      // Denied by the blacklist rather than the window
}
