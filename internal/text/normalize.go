package text

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// ErrEmptyText is returned when the input text is empty or whitespace-only.
var ErrEmptyText = errors.New("text is empty")

const bom = "\ufeff"

// NormalizeNewlines strips a leading byte-order mark and converts CRLF and
// bare CR line endings to \n.
func NormalizeNewlines(s string) string {
	s = strings.TrimPrefix(s, bom)
	s = strings.ReplaceAll(s, "\r\n", "\n")

	return strings.ReplaceAll(s, "\r", "\n")
}

// Normalize is NormalizeNewlines followed by trimming surrounding
// whitespace. Empty results are rejected with ErrEmptyText.
func Normalize(s string) (string, error) {
	s = strings.TrimSpace(NormalizeNewlines(s))
	if s == "" {
		return "", ErrEmptyText
	}

	return s, nil
}

// Normalizer turns one raw corpus file into length-balanced sentence lines.
type Normalizer struct {
	// Encodings is the ordered candidate list handed to DecodeWithFallback.
	Encodings []string
	// FullStop ends a sentence; a line break is inserted after every occurrence.
	FullStop string
	// MergeThreshold is the greedy merge bound in characters (runes).
	MergeThreshold int
	// Joiner is placed between merged segments. Empty for CJK corpora.
	Joiner string
}

// DefaultNormalizer returns the settings used for Chinese chat corpora.
func DefaultNormalizer() Normalizer {
	return Normalizer{
		Encodings:      []string{"utf-8", "gb18030"},
		FullStop:       "。",
		MergeThreshold: 20,
	}
}

// NormalizeFile decodes path and returns its normalized lines joined by \n.
func (n Normalizer) NormalizeFile(path string) (string, error) {
	raw, err := ReadFile(path, n.Encodings)
	if err != nil {
		return "", err
	}

	return n.NormalizeText(raw), nil
}

// NormalizeText re-derives line breaks for a decoded document: whitespace runs
// become single breaks, every full stop ends a line, and consecutive short
// segments are merged greedily up to MergeThreshold characters.
func (n Normalizer) NormalizeText(s string) string {
	return strings.Join(n.Lines(s), "\n")
}

// Lines is NormalizeText without the final join.
func (n Normalizer) Lines(s string) []string {
	s, err := Normalize(s)
	if err != nil {
		return nil
	}

	s = strings.Join(strings.Fields(s), "\n")
	if n.FullStop != "" {
		s = strings.ReplaceAll(s, n.FullStop, n.FullStop+"\n")
	}

	var segments []string
	for _, seg := range strings.Split(s, "\n") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}

	return MergeLines(segments, n.MergeThreshold, n.Joiner)
}

// IsNumeric reports whether s is non-empty and made only of digits after
// compatibility folding, so full-width digits count as digits.
func IsNumeric(s string) bool {
	s = norm.NFKC.String(s)
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
