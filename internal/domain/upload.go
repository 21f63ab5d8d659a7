package domain

import (
	"bytes"
	"io"
)

// Upload is an uploaded file as received at the boundary.
type Upload struct {
	Name    string    // Client supplied filename
	Type    string    // Declared MIME type
	Size    int64     // Declared size in bytes
	Content io.Reader // File content
}

// NewUpload creates an Upload backed by an in-memory buffer.
func NewUpload(name, mimeType string, data []byte) Upload {
	return Upload{
		Name:    name,
		Type:    mimeType,
		Size:    int64(len(data)),
		Content: bytes.NewReader(data),
	}
}

// ValidationResult is the outcome of validating one Upload.
type ValidationResult struct {
	Valid             bool     `json:"valid"`
	Errors            []string `json:"errors"`
	SanitizedFilename string   `json:"sanitizedFilename"`

	// Suspicious is set when a violation suggests a disguised or malicious file.
	Suspicious bool `json:"-"`
}

// FirstError returns the first violation, or an empty string for valid results.
func (r ValidationResult) FirstError() string {
	if len(r.Errors) == 0 {
		return ""
	}

	return r.Errors[0]
}
