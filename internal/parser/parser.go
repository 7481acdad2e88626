// Package parser extracts a movie code and a subtitle tag from a filename.
// Both functions are pure: no I/O, no panics, only string matching.
package parser

import (
	"regexp"
	"strings"
)

var codePattern = regexp.MustCompile(`[A-Za-z]{2,6}-\d{1,5}`)

// subtitleKeywords is checked in order; the first match wins.
var subtitleKeywords = []struct {
	keyword string
	tag     string
}{
	{"english", "English Sub"},
	{"chinese", "Chinese Sub"},
	{"korean", "Korean Sub"},
	{"japanese", "Japanese Sub"},
}

const noSubtitleTag = "No Sub"

// ExtractCode returns the first substring matching [A-Za-z]{2,6}-\d{1,5},
// normalized to upper-case. The second return value is false if no code is
// present anywhere in name. A missing hyphen (e.g. "SONE760") does not
// match — the hyphen is required.
func ExtractCode(name string) (string, bool) {
	match := codePattern.FindString(name)
	if match == "" {
		return "", false
	}
	return strings.ToUpper(match), true
}

// DetectSubtitle lower-cases name and scans for the first keyword match from
// a fixed priority list, returning "No Sub" if none match.
func DetectSubtitle(name string) string {
	lower := strings.ToLower(name)
	for _, kw := range subtitleKeywords {
		if strings.Contains(lower, kw.keyword) {
			return kw.tag
		}
	}
	return noSubtitleTag
}
