package mediasvc

import (
	"errors"
	"fmt"
	"net/url"
)

var (
	ErrPublicBaseURLInvalid = errors.New("MEDIA_PUBLIC_BASE_URL must be an absolute http(s) URL")
	ErrMaxSizeInvalid       = errors.New("MEDIA_MAX_SIZE must be positive")
	ErrMaxWidthInvalid      = errors.New("MEDIA_MAX_WIDTH must be positive")
)

// Config holds configuration parameters for the media storage.
type Config struct {
	// PublicBaseURL is prepended to /media/{bucket}/{name} to build public object URLs
	PublicBaseURL string `env:"PUBLIC_BASE_URL" default:"http://localhost:8080"`

	// MaxSize is the maximum size of a stored object in bytes. Default is 10MB.
	MaxSize int64 `env:"MAX_SIZE" default:"10485760"`

	// MaxWidth caps the width of resized images
	MaxWidth int `env:"MAX_WIDTH" default:"2048"`

	// Interpolator specifies the image scaling algorithm to use.
	// Valid values are: "nearestneighbor", "catmullrom", "bilinear", "approxbilinear"
	Interpolator string `env:"INTERPOLATOR" default:"catmullrom"`
}

// DefaultConfig returns the configuration used when no environment overrides are set.
func DefaultConfig() Config {
	return Config{
		PublicBaseURL: "http://localhost:8080",
		MaxSize:       10 << 20,
		MaxWidth:      2048,
		Interpolator:  "catmullrom",
	}
}

// Validate implements config.Validator.
func (cfg Config) Validate() error {
	var errs []error

	if u, err := url.Parse(cfg.PublicBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ErrPublicBaseURLInvalid)
	}

	if cfg.MaxSize <= 0 {
		errs = append(errs, ErrMaxSizeInvalid)
	}

	if cfg.MaxWidth <= 0 {
		errs = append(errs, ErrMaxWidthInvalid)
	}

	if _, err := getInterpolatorByName(cfg.Interpolator); err != nil {
		errs = append(errs, fmt.Errorf("MEDIA_INTERPOLATOR %q: %w", cfg.Interpolator, err))
	}

	return errors.Join(errs...)
}
