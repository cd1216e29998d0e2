package tokenizer

import "strings"

// Whitespace splits on Unicode whitespace runs.
type Whitespace struct{}

// Tokenize implements Tokenizer.
func (Whitespace) Tokenize(text string) ([]string, error) {
	return strings.Fields(text), nil
}
