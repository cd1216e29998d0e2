// Package tokenizer splits sentences into word tokens for n-gram training.
// The trainer only depends on the Tokenizer interface; the concrete
// segmenters here cover whitespace-delimited text, jieba-style Chinese word
// segmentation and SentencePiece models.
package tokenizer

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownKind is returned by New for an unsupported tokenizer kind.
var ErrUnknownKind = errors.New("unknown tokenizer kind")

// Tokenizer segments a sentence into tokens. Implementations must be
// deterministic and must not return empty tokens.
type Tokenizer interface {
	Tokenize(text string) ([]string, error)
}

// Func adapts a plain segmentation function to Tokenizer.
type Func func(text string) []string

// Tokenize implements Tokenizer.
func (f Func) Tokenize(text string) ([]string, error) {
	return f(text), nil
}

// Options carries the resources a tokenizer kind may need.
type Options struct {
	// SentencePieceModel is the .model file for the sentencepiece kind.
	SentencePieceModel string
	// Dictionary is an optional user word list for the dict kind.
	Dictionary string
}

// New builds the tokenizer named by kind ("dict", "whitespace" or
// "sentencepiece").
func New(kind string, opts Options) (Tokenizer, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "dict", "dictionary":
		var (
			d   *Dict
			err error
		)
		if opts.Dictionary == "" {
			d, err = NewDict()
		} else {
			d, err = LoadDict(opts.Dictionary)
		}
		if err != nil {
			return nil, err
		}
		return d, nil
	case "whitespace", "space":
		return Whitespace{}, nil
	case "sentencepiece", "sp":
		sp, err := NewSentencePieceTokenizer(opts.SentencePieceModel)
		if err != nil {
			return nil, err
		}
		return sp, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}
