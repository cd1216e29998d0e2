package config

import (
	"fmt"
	"strings"
)

const (
	Bigram  = "2-gram"
	Trigram = "3-gram"
)

const (
	PolicyWeighted = "weighted"
	PolicyUniform  = "uniform"
)

const (
	TokenizerDict          = "dict"
	TokenizerWhitespace    = "whitespace"
	TokenizerSentencePiece = "sentencepiece"
)

// NormalizeOrder maps user spellings of the generation order onto Bigram or Trigram.
func NormalizeOrder(raw string) (string, error) {
	order := strings.ToLower(strings.TrimSpace(raw))
	switch order {
	case "", Bigram, "bigram", "2":
		return Bigram, nil
	case Trigram, "trigram", "3":
		return Trigram, nil
	default:
		return "", fmt.Errorf("invalid order %q (expected %s|%s)", raw, Bigram, Trigram)
	}
}

func NormalizePolicy(raw string) (string, error) {
	policy := strings.ToLower(strings.TrimSpace(raw))
	switch policy {
	case "", PolicyWeighted:
		return PolicyWeighted, nil
	case PolicyUniform:
		return PolicyUniform, nil
	default:
		return "", fmt.Errorf("invalid policy %q (expected %s|%s)", raw, PolicyWeighted, PolicyUniform)
	}
}

func NormalizeTokenizer(raw string) (string, error) {
	kind := strings.ToLower(strings.TrimSpace(raw))
	switch kind {
	case "", TokenizerDict, "dictionary":
		return TokenizerDict, nil
	case TokenizerWhitespace, "space":
		return TokenizerWhitespace, nil
	case TokenizerSentencePiece, "sp":
		return TokenizerSentencePiece, nil
	default:
		return "", fmt.Errorf(
			"invalid tokenizer %q (expected %s|%s|%s)",
			raw,
			TokenizerDict,
			TokenizerWhitespace,
			TokenizerSentencePiece,
		)
	}
}
