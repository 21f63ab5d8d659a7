package ratelimit

import (
	"errors"
	"time"
)

var errInvalidThresholds = errors.New("blacklist threshold must exceed max attempts")

// Config holds the rate limiting thresholds for login attempts.
type Config struct {
	// MaxAttempts is the number of attempts tolerated per window
	MaxAttempts int `env:"MAX_ATTEMPTS" default:"5"`
	// BlacklistThreshold is the number of attempts in one window that escalates to the blacklist
	BlacklistThreshold int `env:"BLACKLIST_THRESHOLD" default:"10"`

	Window            time.Duration `env:"WINDOW" default:"15m"`
	BlacklistDuration time.Duration `env:"BLACKLIST_DURATION" default:"1h"`
	SweepInterval     time.Duration `env:"SWEEP_INTERVAL" default:"5m"`
}

// DefaultConfig returns the standard limits: 5 attempts per 15 minutes, 1 hour blacklist after 10.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:        5,
		BlacklistThreshold: 10,
		Window:             15 * time.Minute,
		BlacklistDuration:  time.Hour,
		SweepInterval:      5 * time.Minute,
	}
}

// Validate implements config.Validator.
func (cfg Config) Validate() error {
	var errs []error

	if cfg.MaxAttempts < 1 {
		errs = append(errs, errors.New("max attempts must be positive"))
	}

	if cfg.BlacklistThreshold <= cfg.MaxAttempts {
		errs = append(errs, errInvalidThresholds)
	}

	if cfg.Window <= 0 || cfg.BlacklistDuration <= 0 || cfg.SweepInterval <= 0 {
		errs = append(errs, errors.New("durations must be positive"))
	}

	return errors.Join(errs...)
}
