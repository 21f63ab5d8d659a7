package uploadsvc

import "strings"

const (
	MIMETypeJPEG      = "image/jpeg"
	MIMETypePNG       = "image/png"
	MIMETypeGIF       = "image/gif"
	MIMETypeWebP      = "image/webp"
	MIMETypeMP4       = "video/mp4"
	MIMETypeWebM      = "video/webm"
	MIMETypeQuickTime = "video/quicktime"
)

// signature is a byte sequence expected at a fixed offset of the content.
type signature struct {
	offset int
	magic  string
}

//nolint:gochecknoglobals
var (
	allowedExtensions = map[string][]string{
		MIMETypeJPEG:      {"jpg", "jpeg"},
		MIMETypePNG:       {"png"},
		MIMETypeGIF:       {"gif"},
		MIMETypeWebP:      {"webp"},
		MIMETypeMP4:       {"mp4"},
		MIMETypeWebM:      {"webm"},
		MIMETypeQuickTime: {"mov"},
	}

	fileSignatures = map[string]signature{
		MIMETypeJPEG:      {0, "\xFF\xD8\xFF"},
		MIMETypePNG:       {0, "\x89\x50\x4E\x47\x0D\x0A\x1A\x0A"},
		MIMETypeGIF:       {0, "GIF8"},
		MIMETypeWebP:      {0, "RIFF"},
		MIMETypeMP4:       {4, "ftyp"},
		MIMETypeWebM:      {0, "\x1A\x45\xDF\xA3"},
		MIMETypeQuickTime: {4, "ftypqt"},
	}
)

// IsAllowedType reports whether mimeType may be uploaded at all.
func IsAllowedType(mimeType string) bool {
	_, ok := allowedExtensions[mimeType]

	return ok
}

// IsImageType reports whether mimeType is one of the allowed image types.
func IsImageType(mimeType string) bool {
	return IsAllowedType(mimeType) && strings.HasPrefix(mimeType, "image/")
}

func extensionAllowed(mimeType, ext string) bool {
	for _, allowed := range allowedExtensions[mimeType] {
		if allowed == ext {
			return true
		}
	}

	return false
}

func matchesSignature(header []byte, mimeType string) bool {
	sig, ok := fileSignatures[mimeType]
	if !ok || len(header) < sig.offset+len(sig.magic) {
		return false
	}

	return string(header[sig.offset:sig.offset+len(sig.magic)]) == sig.magic
}
