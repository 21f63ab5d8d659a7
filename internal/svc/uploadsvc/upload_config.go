package uploadsvc

import (
	"errors"
	"fmt"

	"github.com/mkrupp/promptbank/internal/domain"
)

// Config holds the per-request upload limits.
type Config struct {
	// MaxFiles is the maximum number of files accepted in one request
	MaxFiles int `env:"MAX_FILES" default:"5"`
	// MaxFileMB is the size ceiling of a single file in megabytes
	MaxFileMB int `env:"MAX_FILE_MB" default:"10"`
	// MaxTotalMB is the size ceiling of all files of one request in megabytes
	MaxTotalMB int `env:"MAX_TOTAL_MB" default:"50"`
}

// DefaultConfig returns the standard limits: 5 files, 10MB each, 50MB in total.
func DefaultConfig() Config {
	return Config{MaxFiles: 5, MaxFileMB: 10, MaxTotalMB: 50}
}

// Validate implements config.Validator.
func (cfg Config) Validate() error {
	if cfg.MaxFiles < 1 || cfg.MaxFileMB < 1 || cfg.MaxTotalMB < cfg.MaxFileMB {
		return errors.New("upload limits must be positive and the total must cover one file")
	}

	return nil
}

// MaxRequestBytes is the largest multipart body worth reading for one request.
func (cfg Config) MaxRequestBytes() int64 {
	// headroom for the text fields and multipart framing
	return int64(cfg.MaxTotalMB)*megabyte + megabyte
}

// CheckBatch enforces the file count and aggregate size limits of one request.
func (cfg Config) CheckBatch(uploads []domain.Upload) error {
	if len(uploads) > cfg.MaxFiles {
		return domain.NewValidationError(fmt.Sprintf("Maximum %d files allowed", cfg.MaxFiles))
	}

	var total int64
	for _, upload := range uploads {
		total += upload.Size
	}

	if total > int64(cfg.MaxTotalMB)*megabyte {
		return domain.NewValidationError(fmt.Sprintf("Total upload size exceeds %dMB", cfg.MaxTotalMB))
	}

	return nil
}
