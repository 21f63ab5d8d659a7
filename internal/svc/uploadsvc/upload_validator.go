// Package uploadsvc checks uploaded files before they reach storage.
package uploadsvc

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/mkrupp/promptbank/internal/domain"
)

const (
	megabyte = 1024 * 1024

	// MinFileSize is the smallest accepted upload in bytes.
	MinFileSize = 100
	// MaxFilenameLength is the length sanitized filenames are cut to.
	MaxFilenameLength = 255

	// headerSize is how much content is inspected for signatures and embedded markup.
	headerSize = 1024
)

//nolint:gochecknoglobals
var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
	repeatedDots        = regexp.MustCompile(`\.+`)

	suspiciousMarkers = [][]byte{[]byte("<script"), []byte("<?php")}
)

// SanitizeFilename replaces every character outside [A-Za-z0-9._-] with an
// underscore, collapses runs of dots and cuts the result to 255 characters.
func SanitizeFilename(name string) string {
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = repeatedDots.ReplaceAllString(name, ".")

	if len(name) > MaxFilenameLength {
		name = name[:MaxFilenameLength]
	}

	return name
}

// Extension returns the lower-cased text after the last dot of a sanitized filename.
// A name without dots is returned whole.
func Extension(filename string) string {
	return strings.ToLower(filename[strings.LastIndex(filename, ".")+1:])
}

// Validate runs every check against upload and reports all violations at once.
// It never fails: unreadable content is reported as a violation.
//
// The checks are, in order: size ceiling (maxSizeMB), size floor, allowed MIME
// type, extension matching the MIME type, double extensions, leading signature
// bytes and, for images, embedded script or PHP markers in the first kilobyte.
func Validate(upload domain.Upload, maxSizeMB int) domain.ValidationResult {
	var (
		errs       []string
		suspicious bool
	)

	if upload.Size > int64(maxSizeMB)*megabyte {
		errs = append(errs, fmt.Sprintf("File too large. Maximum size: %dMB", maxSizeMB))
	}

	if upload.Size < MinFileSize {
		errs = append(errs, "File too small or empty")
	}

	if !IsAllowedType(upload.Type) {
		errs = append(errs, "Invalid file type. Allowed: JPG, PNG, GIF, WebP, MP4, WebM, MOV")
	}

	filename := SanitizeFilename(upload.Name)

	if ext := Extension(filename); ext == "" || !extensionAllowed(upload.Type, ext) {
		errs = append(errs, fmt.Sprintf("File extension .%s does not match file type %s", ext, upload.Type))
	}

	if strings.Count(filename, ".") > 1 {
		errs = append(errs, "Multiple file extensions detected. Possible malicious file.")
		suspicious = true
	}

	header, err := readHeader(upload.Content)
	if err != nil {
		errs = append(errs, "Failed to validate file content")
	} else {
		if !matchesSignature(header, upload.Type) {
			errs = append(errs, "File content does not match declared file type. Possible malicious file.")
			suspicious = suspicious || IsAllowedType(upload.Type)
		}

		if IsImageType(upload.Type) && containsMarkup(header) {
			errs = append(errs, "File contains suspicious content")
			suspicious = true
		}
	}

	return domain.ValidationResult{
		Valid:             len(errs) == 0,
		Errors:            errs,
		SanitizedFilename: filename,
		Suspicious:        suspicious,
	}
}

func readHeader(content io.Reader) ([]byte, error) {
	if content == nil {
		return nil, io.ErrUnexpectedEOF
	}

	header, err := io.ReadAll(io.LimitReader(content, headerSize))
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	return header, nil
}

func containsMarkup(header []byte) bool {
	header = bytes.ToLower(header)

	for _, marker := range suspiciousMarkers {
		if bytes.Contains(header, marker) {
			return true
		}
	}

	return false
}
