package text

import (
	"strings"
	"unicode/utf8"
)

// MergeLines groups consecutive segments greedily: the next segment is
// appended to the current line while the combined length, in characters,
// stays at or below maxChars. Otherwise the current line is flushed and the
// segment starts a new one. A segment longer than maxChars becomes its own
// line. If maxChars is 0, no merging is performed.
func MergeLines(segments []string, maxChars int, joiner string) []string {
	if maxChars <= 0 {
		return append([]string(nil), segments...)
	}

	var lines []string
	var current strings.Builder
	currentLen := 0
	joinLen := utf8.RuneCountInString(joiner)

	for _, s := range segments {
		n := utf8.RuneCountInString(s)
		if current.Len() == 0 {
			current.WriteString(s)
			currentLen = n
			continue
		}
		// Would appending this segment exceed the limit?
		if currentLen+joinLen+n > maxChars {
			lines = append(lines, current.String())
			current.Reset()
			current.WriteString(s)
			currentLen = n
		} else {
			current.WriteString(joiner)
			current.WriteString(s)
			currentLen += joinLen + n
		}
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}

	return lines
}
