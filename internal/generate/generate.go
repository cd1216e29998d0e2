// Package generate produces sentences by random walks over a trained n-gram
// model.
package generate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/example/spake/internal/config"
	"github.com/example/spake/internal/ngram"
)

var (
	// ErrEmptyModel is returned when the model has no initial tokens.
	ErrEmptyModel = errors.New("generate: model has no initial tokens")
	// ErrMissingContext is returned for a trigram walk when no initial token
	// has a recorded follower.
	ErrMissingContext = errors.New("generate: no initial token has a trigram follower")
	// ErrWalkLimit is returned when a walk exceeds MaxTokens.
	ErrWalkLimit = errors.New("generate: walk exceeded token limit")
)

// Order is the n-gram order of a walk.
type Order int

const (
	Bigram  Order = 2
	Trigram Order = 3
)

// ParseOrder accepts the order names understood by the configuration.
func ParseOrder(raw string) (Order, error) {
	name, err := config.NormalizeOrder(raw)
	if err != nil {
		return 0, err
	}

	if name == config.Trigram {
		return Trigram, nil
	}

	return Bigram, nil
}

func (o Order) String() string {
	switch o {
	case Bigram:
		return config.Bigram
	case Trigram:
		return config.Trigram
	default:
		return fmt.Sprintf("Order(%d)", int(o))
	}
}

// DefaultRetries is how often a trigram walk re-draws an initial token that
// has no follower before restricting the draw to tokens that do.
const DefaultRetries = 8

// Generator walks a model. The zero value of Order is not valid; use Bigram
// or Trigram.
type Generator struct {
	Model  *ngram.Model
	Order  Order
	Policy Policy
	// Source defaults to a clock-seeded PCG source.
	Source Source
	// MaxTokens caps a sentence; 0 means unbounded.
	MaxTokens int
	// Retries bounds re-draws of a trigram start token.
	Retries int
	// Joiner is placed between emitted tokens. Empty for CJK text.
	Joiner string
	// EmitTail appends the pending context token when a trigram walk ends.
	EmitTail bool
}

// New builds a generator for m from configuration values.
func New(m *ngram.Model, cfg config.GenerateConfig) (*Generator, error) {
	order, err := ParseOrder(cfg.Order)
	if err != nil {
		return nil, err
	}

	policy, err := ParsePolicy(cfg.Policy)
	if err != nil {
		return nil, err
	}

	if cfg.MaxTokens < 0 {
		return nil, fmt.Errorf("generate: max tokens must be >= 0, got %d", cfg.MaxTokens)
	}

	return &Generator{
		Model:     m,
		Order:     order,
		Policy:    policy,
		Source:    NewSource(cfg.Seed),
		MaxTokens: cfg.MaxTokens,
		Retries:   cfg.Retries,
		Joiner:    cfg.Joiner,
		EmitTail:  cfg.EmitTail,
	}, nil
}

// Generate returns one sentence, the emitted tokens joined by Joiner.
func (g *Generator) Generate() (string, error) {
	toks, err := g.Tokens()
	if err != nil {
		return "", err
	}

	return strings.Join(toks, g.Joiner), nil
}

// Tokens runs one walk and returns the emitted tokens. On error no tokens
// are returned.
func (g *Generator) Tokens() ([]string, error) {
	if g.Model.Empty() {
		return nil, ErrEmptyModel
	}

	if g.Source == nil {
		g.Source = NewSource(0)
	}

	switch g.Order {
	case Bigram:
		return g.walkBigram()
	case Trigram:
		return g.walkTrigram()
	default:
		return nil, fmt.Errorf("generate: unsupported order %v", g.Order)
	}
}

func (g *Generator) walkBigram() ([]string, error) {
	pi := g.Model.Initial
	x := pi[g.Source.IntN(len(pi))]

	var out []string
	for {
		out = append(out, x)
		if g.MaxTokens > 0 && len(out) > g.MaxTokens {
			return nil, ErrWalkLimit
		}

		next, ok := g.Policy.Sample(g.Model.Successors2(x), g.Source)
		if !ok {
			return out, nil
		}
		x = next
	}
}

func (g *Generator) walkTrigram() ([]string, error) {
	x, err := g.trigramStart()
	if err != nil {
		return nil, err
	}

	ys := g.Model.Followers(x)
	y := ys[g.Source.IntN(len(ys))]

	var out []string
	for {
		out = append(out, x)
		if g.MaxTokens > 0 && len(out) > g.MaxTokens {
			return nil, ErrWalkLimit
		}

		z, ok := g.Policy.Sample(g.Model.Successors3(x, y), g.Source)
		if !ok {
			break
		}
		x, y = y, z
	}

	if g.EmitTail {
		out = append(out, y)
		if g.MaxTokens > 0 && len(out) > g.MaxTokens {
			return nil, ErrWalkLimit
		}
	}

	return out, nil
}

// trigramStart draws an initial token with at least one trigram follower.
// It re-draws from PI up to Retries times and then draws only among the
// initial tokens that qualify.
func (g *Generator) trigramStart() (string, error) {
	pi := g.Model.Initial

	for i := 0; i <= g.Retries; i++ {
		x := pi[g.Source.IntN(len(pi))]
		if len(g.Model.Followers(x)) > 0 {
			return x, nil
		}
	}

	var candidates []string
	for _, x := range pi {
		if len(g.Model.Followers(x)) > 0 {
			candidates = append(candidates, x)
		}
	}

	if len(candidates) == 0 {
		return "", ErrMissingContext
	}

	return candidates[g.Source.IntN(len(candidates))], nil
}
