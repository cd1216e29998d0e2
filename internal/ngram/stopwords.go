package ngram

import (
	"strings"

	"github.com/example/spake/internal/text"
)

// LoadStopwords reads a stop-word list with one word per line, decoding it
// with the given candidate encodings.
func LoadStopwords(path string, encodings []string) ([]string, error) {
	raw, err := text.ReadFile(path, encodings)
	if err != nil {
		return nil, err
	}

	var words []string
	for _, line := range strings.Split(strings.TrimPrefix(raw, "\ufeff"), "\n") {
		if w := strings.TrimSpace(line); w != "" {
			words = append(words, w)
		}
	}

	return words, nil
}
