// Package sanitize neutralizes untrusted text before it is stored or rendered.
package sanitize

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Field length limits shared by the record services.
const (
	MaxPromptLength      = 5000
	MaxToolNameLength    = 100
	MaxResultTextLength  = 10000
	MaxNotesLength       = 5000
	MaxTagLength         = 50
	MaxModelLength       = 100
	MaxDescriptionLength = 2000
	MaxTitleLength       = 200
)

//nolint:gochecknoglobals
var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

// Input converts raw into a string safe for storage and HTML rendering.
//
// Anything that is not a string yields "". Strings are cut to maxLength runes,
// trimmed, stripped of NUL bytes and HTML-escaped (& < > " ' /). Escaping grows
// the text, so the result is clamped to maxLength runes again without ever
// cutting an entity in half.
func Input(raw any, maxLength int) string {
	s, ok := raw.(string)
	if !ok || maxLength <= 0 {
		return ""
	}

	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}

	s = truncate(s, maxLength)
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\x00", "")

	return clampEscaped(htmlEscaper.Replace(s), maxLength)
}

// Tags splits a comma separated list and sanitizes every non-empty entry.
func Tags(raw any, maxLength int) []string {
	s, ok := raw.(string)
	if !ok {
		return []string{}
	}

	tags := []string{}

	for _, tag := range strings.Split(s, ",") {
		if tag = Input(strings.TrimSpace(tag), maxLength); tag != "" {
			tags = append(tags, tag)
		}
	}

	return tags
}

func truncate(s string, maxLength int) string {
	if utf8.RuneCountInString(s) <= maxLength {
		return s
	}

	return string([]rune(s)[:maxLength])
}

// clampEscaped cuts escaped text to maxLength runes. A cut that lands inside an
// entity drops the whole entity.
func clampEscaped(s string, maxLength int) string {
	if utf8.RuneCountInString(s) <= maxLength {
		return s
	}

	s = string([]rune(s)[:maxLength])

	if amp := strings.LastIndexByte(s, '&'); amp >= 0 && !strings.Contains(s[amp:], ";") {
		s = s[:amp]
	}

	return strings.TrimRightFunc(s, unicode.IsSpace)
}
