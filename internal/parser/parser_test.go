package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCode(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"hyphenated lower", "sone-760 english subbed the same commute train.mp4", "SONE-760"},
		{"bracketed", "[SONE-760] The Same Commute Train.mp4", "SONE-760"},
		{"code repeated in title", "SONE-760 SONE-760 extra copy.mp4", "SONE-760"},
		{"short letters", "AB-1 title.mp4", "AB-1"},
		{"max letters", "ABCDEF-12345 title.mp4", "ABCDEF-12345"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractCode(tc.input)
			require.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExtractCode_NoMatch(t *testing.T) {
	_, ok := ExtractCode("just a plain filename.mp4")
	assert.False(t, ok)
}

func TestExtractCode_MissingHyphenDoesNotMatch(t *testing.T) {
	_, ok := ExtractCode("SONE760 something.mp4")
	assert.False(t, ok)
}

func TestDetectSubtitle(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"english", "SONE-760 English Subbed Movie.mp4", "English Sub"},
		{"chinese", "movie Chinese sub.mkv", "Chinese Sub"},
		{"korean", "movie korean-sub.mkv", "Korean Sub"},
		{"japanese", "movie Japanese Sub.mkv", "Japanese Sub"},
		{"none", "movie raw.mkv", "No Sub"},
		{"priority order", "english and chinese both present.mp4", "English Sub"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DetectSubtitle(tc.input))
		})
	}
}
