package sanitize_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/mkrupp/promptbank/internal/util/sanitize"
)

func TestInput(t *testing.T) {
	tests := []struct {
		name      string
		raw       any
		maxLength int
		want      string
	}{
		{name: "non-string", raw: 42, maxLength: 10, want: ""},
		{name: "nil", raw: nil, maxLength: 10, want: ""},
		{name: "plain", raw: "hello", maxLength: 10, want: "hello"},
		{name: "trimmed", raw: "  hi  ", maxLength: 10, want: "hi"},
		{name: "null bytes", raw: "a\x00b", maxLength: 10, want: "ab"},
		{name: "truncated before trim", raw: "abc   def", maxLength: 5, want: "abc"},
		{name: "ampersand first", raw: "&lt;", maxLength: 20, want: "&amp;lt;"},
		{name: "all specials", raw: `<a href="x">'/`, maxLength: 100,
			want: "&lt;a href=&quot;x&quot;&gt;&#x27;&#x2F;"},
		{name: "entity not split", raw: "ab<", maxLength: 5, want: "ab"},
		{name: "space before dropped entity", raw: "a <", maxLength: 3, want: "a"},
		{name: "multibyte", raw: "héllo wörld", maxLength: 5, want: "héllo"},
		{name: "zero length", raw: "abc", maxLength: 0, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitize.Input(tt.raw, tt.maxLength))
		})
	}
}

func TestInput_Properties(t *testing.T) {
	inputs := []string{
		"<script>alert('x')</script>",
		strings.Repeat("&", 40),
		strings.Repeat("a/", 33),
		"\x00\x00<\x00>",
		`"quoted" & 'single'`,
		strings.Repeat("ü<", 20),
	}

	for _, in := range inputs {
		for _, maxLength := range []int{1, 3, 7, 16, 64} {
			out := sanitize.Input(in, maxLength)

			assert.LessOrEqual(t, utf8.RuneCountInString(out), maxLength, "input %q", in)
			assert.NotContains(t, out, "\x00")
			assert.Equal(t, strings.TrimSpace(out), out, "input %q", in)

			for _, forbidden := range []string{"<", ">", `"`, "'", "/"} {
				assert.NotContains(t, out, forbidden, "input %q", in)
			}

			// every ampersand starts a complete entity
			for i := strings.IndexByte(out, '&'); i >= 0; {
				assert.Contains(t, out[i:], ";", "input %q", in)

				next := strings.IndexByte(out[i+1:], '&')
				if next < 0 {
					break
				}

				i += next + 1
			}
		}
	}
}

func TestTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b&amp;c"}, sanitize.Tags(" a , ,b&c,", 50))
	assert.Equal(t, []string{}, sanitize.Tags(nil, 50))
	assert.Equal(t, []string{"abc"}, sanitize.Tags("abcdef", 3))
}
