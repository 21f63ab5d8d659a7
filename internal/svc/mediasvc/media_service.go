// Package mediasvc stores uploaded files as objects in named buckets and serves
// them under public URLs, resizing images on request.
package mediasvc

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/mkrupp/promptbank/internal/domain"
)

const (
	BucketPromptResults = "prompt-results"
	BucketToolExamples  = "tool-examples"

	mediaPathPrefix = "/media/"
)

//nolint:gochecknoglobals
var objectNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,254}$`)

// Storage is the object storage used by the record services.
type Storage interface {
	// Upload stores data as bucket/name and returns its public URL.
	// Fails with domain.ErrObjectExists if the name is taken.
	Upload(ctx context.Context, bucket, name, contentType string, data []byte) (string, error)

	// Remove deletes bucket/name. Returns an error wrapping domain.ErrNotFound if it does not exist.
	Remove(ctx context.Context, bucket, name string) error

	// Fetch returns bucket/name. A positive width requests an image scaled down to that width.
	Fetch(ctx context.Context, bucket, name string, width int) (domain.Object, error)

	// PublicURL returns the URL under which bucket/name is served.
	PublicURL(bucket, name string) string

	// Locate is the inverse of PublicURL. ok is false for URLs served elsewhere.
	Locate(url string) (bucket, name string, ok bool)
}

// ValidateName checks that name is usable as a bucket or object name.
func ValidateName(name string) error {
	if !objectNamePattern.MatchString(name) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", domain.ErrInvalidObjectName, name)
	}

	return nil
}

// publicURL joins base with the media path of bucket/name.
func publicURL(base, bucket, name string) string {
	return strings.TrimRight(base, "/") + mediaPathPrefix + url.PathEscape(bucket) + "/" + url.PathEscape(name)
}

// ParsePublicURL extracts bucket and object name from a URL built by PublicURL.
// URLs pointing elsewhere are reported with ok == false.
func ParsePublicURL(base, rawURL string) (bucket, name string, ok bool) {
	prefix := strings.TrimRight(base, "/") + mediaPathPrefix
	if !strings.HasPrefix(rawURL, prefix) {
		return "", "", false
	}

	bucket, name, ok = strings.Cut(strings.TrimPrefix(rawURL, prefix), "/")
	if !ok || ValidateName(bucket) != nil || ValidateName(name) != nil {
		return "", "", false
	}

	return bucket, name, true
}
