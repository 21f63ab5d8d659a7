package uploadsvc_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/promptbank/internal/domain"
	"github.com/mkrupp/promptbank/internal/svc/uploadsvc"
)

const (
	pngMagic  = "\x89PNG\r\n\x1a\n"
	jpegMagic = "\xFF\xD8\xFF\xE0"
)

func content(prefix string, size int) []byte {
	data := bytes.Repeat([]byte{0}, size)
	copy(data, prefix)

	return data
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		upload     domain.Upload
		wantErrors []string
		suspicious bool
	}{
		{
			name:   "valid png",
			upload: domain.NewUpload("photo.png", "image/png", content(pngMagic, 1000)),
		},
		{
			name:   "valid jpeg with upper-case extension",
			upload: domain.NewUpload("Photo.JPG", "image/jpeg", content(jpegMagic, 1000)),
		},
		{
			name:   "valid mp4",
			upload: domain.NewUpload("clip.mp4", "video/mp4", content("\x00\x00\x00\x18ftypmp42", 2000)),
		},
		{
			name:   "valid quicktime",
			upload: domain.NewUpload("clip.mov", "video/quicktime", content("\x00\x00\x00\x14ftypqt  ", 2000)),
		},
		{
			name:       "double extension",
			upload:     domain.NewUpload("photo.png.exe", "image/png", content(pngMagic, 1000)),
			wantErrors: []string{"File extension .exe does not match file type image/png", "Multiple file extensions detected. Possible malicious file."},
			suspicious: true,
		},
		{
			name:       "signature mismatch",
			upload:     domain.NewUpload("photo.jpg", "image/jpeg", content(pngMagic, 1000)),
			wantErrors: []string{"File content does not match declared file type. Possible malicious file."},
			suspicious: true,
		},
		{
			name:       "too small",
			upload:     domain.NewUpload("photo.png", "image/png", content(pngMagic, 50)),
			wantErrors: []string{"File too small or empty"},
		},
		{
			name:   "disallowed type",
			upload: domain.NewUpload("doc.pdf", "application/pdf", content("%PDF-1.7", 1000)),
			wantErrors: []string{
				"Invalid file type. Allowed: JPG, PNG, GIF, WebP, MP4, WebM, MOV",
				"File extension .pdf does not match file type application/pdf",
				"File content does not match declared file type. Possible malicious file.",
			},
		},
		{
			name:   "too large",
			upload: domain.Upload{Name: "big.png", Type: "image/png", Size: 11 * 1024 * 1024, Content: bytes.NewReader(content(pngMagic, 1000))},
			wantErrors: []string{"File too large. Maximum size: 10MB"},
		},
		{
			name:       "embedded script",
			upload:     domain.NewUpload("x.gif", "image/gif", content("GIF89a<SCRIPT>alert(1)</script>", 500)),
			wantErrors: []string{"File contains suspicious content"},
			suspicious: true,
		},
		{
			name:       "truncated content",
			upload:     domain.Upload{Name: "photo.png", Type: "image/png", Size: 1000, Content: bytes.NewReader([]byte(pngMagic[:4]))},
			wantErrors: []string{"File content does not match declared file type. Possible malicious file."},
			suspicious: true,
		},
		{
			name:       "unreadable content",
			upload:     domain.Upload{Name: "photo.png", Type: "image/png", Size: 1000, Content: failingReader{}},
			wantErrors: []string{"Failed to validate file content"},
		},
		{
			name:       "no extension",
			upload:     domain.NewUpload("photo", "image/png", content(pngMagic, 1000)),
			wantErrors: []string{"File extension .photo does not match file type image/png"},
		},
		{
			name:   "script check applies to images only",
			upload: domain.NewUpload("clip.webm", "video/webm", content("\x1A\x45\xDF\xA3<?php", 500)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := uploadsvc.Validate(tt.upload, 10)

			assert.Equal(t, len(tt.wantErrors) == 0, result.Valid)
			assert.Equal(t, tt.wantErrors, result.Errors)
			assert.Equal(t, tt.suspicious, result.Suspicious)
		})
	}
}

func TestValidate_SanitizedFilename(t *testing.T) {
	result := uploadsvc.Validate(domain.NewUpload("../../etc/my photo.png", "image/png", content(pngMagic, 1000)), 10)

	assert.Equal(t, "._._etc_my_photo.png", result.SanitizedFilename)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors, "Multiple file extensions detected. Possible malicious file.")
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"report.png":        "report.png",
		"a b&c.png":         "a_b_c.png",
		"x...png":           "x.png",
		"über.gif":          "_ber.gif",
		"semi;colon.jpg":    "semi_colon.jpg",
		"keep-dash_und.mp4": "keep-dash_und.mp4",
	}

	for in, want := range tests {
		assert.Equal(t, want, uploadsvc.SanitizeFilename(in), in)
	}

	long := uploadsvc.SanitizeFilename(string(bytes.Repeat([]byte("a"), 300)) + ".png")
	assert.Len(t, long, uploadsvc.MaxFilenameLength)
}

func TestValidate_ReadsOnlyHeader(t *testing.T) {
	data := content(pngMagic, 4096)
	reader := bytes.NewReader(data)

	result := uploadsvc.Validate(domain.Upload{Name: "a.png", Type: "image/png", Size: 4096, Content: reader}, 10)
	require.True(t, result.Valid)

	rest, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Len(t, rest, 4096-1024)
}

func TestConfig_CheckBatch(t *testing.T) {
	cfg := uploadsvc.DefaultConfig()
	require.NoError(t, cfg.Validate())

	small := domain.Upload{Size: 1024}
	require.NoError(t, cfg.CheckBatch([]domain.Upload{small, small}))

	var verr *domain.ValidationError

	err := cfg.CheckBatch(make([]domain.Upload, 6))
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Maximum 5 files allowed", verr.Reason)

	big := domain.Upload{Size: 10 * 1024 * 1024}
	err = cfg.CheckBatch([]domain.Upload{big, big, big, big, big, small})
	require.ErrorAs(t, err, &verr)

	err = cfg.CheckBatch([]domain.Upload{big, big, big, big, {Size: 10*1024*1024 + 1}})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Total upload size exceeds 50MB", verr.Reason)
}
