package tokenizer

import (
	"errors"
	"fmt"
	"strings"

	gosp "github.com/vikesh-raj/go-sentencepiece-encoder/sentencepiece"
)

// ErrEmptyPath is returned when NewSentencePieceTokenizer is called with an empty path.
var ErrEmptyPath = errors.New("tokenizer model path must not be empty")

// wordStart is the SentencePiece word-boundary marker (U+2581).
const wordStart = "▁"

// SentencePieceTokenizer implements Tokenizer using a pure-Go UNIGRAM SentencePiece model.
// Pieces are returned as text with the word-boundary marker removed.
type SentencePieceTokenizer struct {
	proc gosp.Sentencepiece
}

// NewSentencePieceTokenizer loads a SentencePiece model from the given path.
func NewSentencePieceTokenizer(modelPath string) (*SentencePieceTokenizer, error) {
	if modelPath == "" {
		return nil, ErrEmptyPath
	}

	proc, err := gosp.NewSentencepieceFromFile(modelPath, false)
	if err != nil {
		return nil, fmt.Errorf("load sentencepiece model %q: %w", modelPath, err)
	}

	return &SentencePieceTokenizer{proc: proc}, nil
}

// Tokenize implements Tokenizer.
func (t *SentencePieceTokenizer) Tokenize(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	pieces := t.proc.Tokenize(text)

	tokens := make([]string, 0, len(pieces))
	for _, p := range pieces {
		s := strings.ReplaceAll(p.Text, wordStart, "")
		if s == "" {
			continue
		}
		tokens = append(tokens, s)
	}

	return tokens, nil
}
